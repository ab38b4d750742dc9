package wazero

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/reglet-dev/logabi/abi"
	"github.com/reglet-dev/logabi/fastlylog"
	"github.com/reglet-dev/logabi/internal/testutil"
	"github.com/reglet-dev/logabi/memory"
	"github.com/reglet-dev/logabi/session"
)

const (
	namePtr     = 0x100
	handleOut   = 0x200
	msgPtr      = 0x300
	nwrittenOut = 0x400
)

func newRuntime(t *testing.T, opts ...AdapterOption) (context.Context, wazero.Runtime) {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = rt.Close(ctx) })

	reg, err := abi.NewRegistry(
		abi.WithMiddleware(abi.TrapOnPanic()),
		abi.WithModule(fastlylog.New()),
	)
	require.NoError(t, err)
	require.NoError(t, RegisterWithRuntime(ctx, rt, reg, opts...))
	return ctx, rt
}

func instantiate(t *testing.T, ctx context.Context, rt wazero.Runtime, name string, wasm []byte) api.Module {
	t.Helper()
	mod, err := rt.InstantiateWithConfig(ctx, wasm, wazero.NewModuleConfig().WithName(name))
	require.NoError(t, err)
	return mod
}

func call(t *testing.T, ctx context.Context, mod api.Module, fn string, params ...uint64) (abi.Status, error) {
	t.Helper()
	f := mod.ExportedFunction(fn)
	require.NotNil(t, f, "guest does not export %q", fn)
	res, err := f.Call(ctx, params...)
	if err != nil {
		return 0, err
	}
	require.Len(t, res, 1)
	return abi.Status(api.DecodeI32(res[0])), nil
}

func readU32(t *testing.T, mod api.Module, offset uint32) uint32 {
	t.Helper()
	v, ok := mod.Memory().ReadUint32Le(offset)
	require.True(t, ok)
	return v
}

func TestDefaultAdapterConfig(t *testing.T) {
	cfg := defaultAdapterConfig()
	assert.NotNil(t, cfg.Resolver)
	assert.NotNil(t, cfg.Logger)
}

func TestRegisterWithRuntime_ExportsNamespace(t *testing.T) {
	ctx, rt := newRuntime(t)

	host := rt.Module(fastlylog.DefaultNamespace)
	require.NotNil(t, host)

	defs := host.ExportedFunctionDefinitions()
	require.Contains(t, defs, "endpoint_get")
	require.Contains(t, defs, "write")
	assert.Equal(t, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}, defs["endpoint_get"].ParamTypes())
	assert.Equal(t, []string{"endpoint_handle", "msg", "msg_len", "nwritten_out"}, defs["write"].ParamNames())
	assert.Equal(t, []api.ValueType{api.ValueTypeI32}, defs["write"].ResultTypes())

	// The guest links against the host module.
	instantiate(t, ctx, rt, "guest", testutil.LoggingGuest())
}

func TestGuest_EndpointGetAndWrite(t *testing.T) {
	ctx, rt := newRuntime(t)
	guest := instantiate(t, ctx, rt, "guest", testutil.LoggingGuest())

	sink := &testutil.RecordingSink{}
	sess := session.New(sink)
	ctx = session.WithSession(ctx, sess)

	require.True(t, guest.Memory().Write(namePtr, []byte("access_log")))
	status, err := call(t, ctx, guest, "endpoint_get", namePtr, 10, handleOut)
	require.NoError(t, err)
	assert.Equal(t, abi.StatusOK, status)
	assert.Equal(t, 1, sess.Endpoints.Len())
	assert.Equal(t, uint32(0), readU32(t, guest, handleOut))

	require.True(t, guest.Memory().Write(msgPtr, []byte("hello")))
	status, err = call(t, ctx, guest, "write", 0, msgPtr, 5, nwrittenOut)
	require.NoError(t, err)
	assert.Equal(t, abi.StatusOK, status)
	assert.Equal(t, uint32(5), readU32(t, guest, nwrittenOut))
	assert.Equal(t, []testutil.Record{{Endpoint: "access_log", Message: "hello"}}, sink.Records())
}

func TestGuest_BadHandle(t *testing.T) {
	ctx, rt := newRuntime(t)
	guest := instantiate(t, ctx, rt, "guest", testutil.LoggingGuest())
	sink := &testutil.RecordingSink{}
	ctx = session.WithSession(ctx, session.New(sink))

	require.True(t, guest.Memory().WriteUint32Le(nwrittenOut, 0xdeadbeef))
	status, err := call(t, ctx, guest, "write", 0, msgPtr, 5, nwrittenOut)
	require.NoError(t, err)
	assert.Equal(t, abi.StatusBadf, status)
	assert.Equal(t, uint32(0xdeadbeef), readU32(t, guest, nwrittenOut))
	assert.Empty(t, sink.Records())

	status, err = call(t, ctx, guest, "write", api.EncodeI32(-1), msgPtr, 5, nwrittenOut)
	require.NoError(t, err)
	assert.Equal(t, abi.StatusBadf, status)
}

func TestGuest_Traps(t *testing.T) {
	ctx, rt := newRuntime(t)
	guest := instantiate(t, ctx, rt, "guest", testutil.LoggingGuest())
	sink := &testutil.RecordingSink{}
	sess := session.New(sink)
	ctx = session.WithSession(ctx, sess)

	t.Run("name beyond memory", func(t *testing.T) {
		_, err := call(t, ctx, guest, "endpoint_get", namePtr, testutil.PageSize, handleOut)
		require.Error(t, err)
		assert.True(t, abi.IsTrap(err))
		assert.ErrorIs(t, err, memory.ErrOutOfBounds)
		assert.Contains(t, err.Error(), "failed to read endpoint name")
		assert.Zero(t, sess.Endpoints.Len())
	})

	t.Run("invalid utf-8 message", func(t *testing.T) {
		require.True(t, guest.Memory().Write(namePtr, []byte("access_log")))
		status, err := call(t, ctx, guest, "endpoint_get", namePtr, 10, handleOut)
		require.NoError(t, err)
		require.Equal(t, abi.StatusOK, status)

		require.True(t, guest.Memory().Write(msgPtr, []byte{0xff, 0xfe}))
		_, err = call(t, ctx, guest, "write", 0, msgPtr, 2, nwrittenOut)
		require.Error(t, err)
		assert.ErrorIs(t, err, memory.ErrInvalidUTF8)
		assert.Empty(t, sink.Records())
	})

	t.Run("guest remains usable after a trap", func(t *testing.T) {
		require.True(t, guest.Memory().Write(msgPtr, []byte("still here")))
		status, err := call(t, ctx, guest, "write", 0, msgPtr, 10, nwrittenOut)
		require.NoError(t, err)
		assert.Equal(t, abi.StatusOK, status)
		assert.Equal(t, []string{"still here"}, sink.Messages())
	})
}

func TestGuest_MissingMemoryExport(t *testing.T) {
	ctx, rt := newRuntime(t)
	guest := instantiate(t, ctx, rt, "nomem", testutil.LoggingGuestWithoutMemory())
	sess := session.New(nil)
	ctx = session.WithSession(ctx, sess)

	_, err := call(t, ctx, guest, "endpoint_get", namePtr, 3, handleOut)
	require.Error(t, err)
	assert.ErrorIs(t, err, memory.ErrNoMemory)
	assert.Zero(t, sess.Endpoints.Len())

	// An unknown handle is reported in-band before memory is needed.
	status, err := call(t, ctx, guest, "write", 0, msgPtr, 5, nwrittenOut)
	require.NoError(t, err)
	assert.Equal(t, abi.StatusBadf, status)
}

func TestGuest_MemoryExportedUnderOtherName(t *testing.T) {
	ctx, rt := newRuntime(t)
	guest := instantiate(t, ctx, rt, "heap", testutil.LoggingGuestWithMemoryExport("heap"))
	sess := session.New(nil)
	ctx = session.WithSession(ctx, sess)

	heap := guest.ExportedMemory("heap")
	require.NotNil(t, heap)
	require.Nil(t, guest.ExportedMemory(MemoryExport))
	require.True(t, heap.Write(namePtr, []byte("log")))

	_, err := call(t, ctx, guest, "endpoint_get", namePtr, 3, handleOut)
	require.Error(t, err)
	assert.True(t, abi.IsTrap(err))
	assert.ErrorIs(t, err, memory.ErrNoMemory)
	assert.Zero(t, sess.Endpoints.Len())

	v, ok := heap.ReadUint32Le(handleOut)
	require.True(t, ok)
	assert.Zero(t, v)
}

func TestGuest_NoSession(t *testing.T) {
	ctx, rt := newRuntime(t)
	guest := instantiate(t, ctx, rt, "guest", testutil.LoggingGuest())

	_, err := call(t, ctx, guest, "write", 0, msgPtr, 5, nwrittenOut)
	require.Error(t, err)
	assert.True(t, abi.IsTrap(err))
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestGuest_StoreResolverIsolatesInstances(t *testing.T) {
	store := session.NewStore()
	ctx, rt := newRuntime(t, WithSessionResolver(StoreResolver(store)))

	sinkA, sinkB := &testutil.RecordingSink{}, &testutil.RecordingSink{}
	sessA, sessB := session.New(sinkA), session.New(sinkB)
	store.Put("a", sessA)
	store.Put("b", sessB)

	a := instantiate(t, ctx, rt, "a", testutil.LoggingGuest())
	b := instantiate(t, ctx, rt, "b", testutil.LoggingGuest())

	require.True(t, a.Memory().Write(namePtr, []byte("only_a")))
	status, err := call(t, ctx, a, "endpoint_get", namePtr, 6, handleOut)
	require.NoError(t, err)
	require.Equal(t, abi.StatusOK, status)

	require.True(t, b.Memory().Write(msgPtr, []byte("hi")))
	status, err = call(t, ctx, b, "write", 0, msgPtr, 2, nwrittenOut)
	require.NoError(t, err)
	assert.Equal(t, abi.StatusBadf, status, "b must not see a's endpoint")

	require.True(t, a.Memory().Write(msgPtr, []byte("hi")))
	status, err = call(t, ctx, a, "write", 0, msgPtr, 2, nwrittenOut)
	require.NoError(t, err)
	assert.Equal(t, abi.StatusOK, status)

	assert.Equal(t, 1, sessA.Endpoints.Len())
	assert.Zero(t, sessB.Endpoints.Len())
	assert.Equal(t, []string{"hi"}, sinkA.Messages())
	assert.Empty(t, sinkB.Messages())
}

func TestAdapterOptions(t *testing.T) {
	cfg := defaultAdapterConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	WithLogger(logger)(&cfg)
	assert.Same(t, logger, cfg.Logger)

	store := session.NewStore()
	WithSessionResolver(StoreResolver(store))(&cfg)
	require.NotNil(t, cfg.Resolver)
}
