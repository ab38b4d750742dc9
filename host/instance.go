package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	wazeroinfra "github.com/reglet-dev/logabi/infrastructure/wazero"
	"github.com/reglet-dev/logabi/memory"
	"github.com/reglet-dev/logabi/session"
)

// ErrExportNotFound is returned by Call for a name the guest does not export.
var ErrExportNotFound = errors.New("export not found")

// Instance is one instantiated guest with its own endpoint table.
type Instance struct {
	exec    *Executor
	module  api.Module
	session *session.Session
	name    string
}

// LoadGuest instantiates wasmBytes under a unique module name and binds a
// fresh session to it. Host calls made during instantiation already see
// that session.
func (e *Executor) LoadGuest(ctx context.Context, wasmBytes []byte, opts ...GuestOption) (*Instance, error) {
	cfg := guestConfig{sink: e.sink}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.name == "" {
		cfg.name = "guest-" + uuid.NewString()
	}
	sess := session.New(cfg.sink)
	if !e.sessions.PutIfAbsent(cfg.name, sess) {
		return nil, fmt.Errorf("guest %q already loaded", cfg.name)
	}

	mod, err := e.runtime.InstantiateWithConfig(ctx, wasmBytes, wazero.NewModuleConfig().WithName(cfg.name))
	if err != nil {
		e.sessions.Delete(cfg.name)
		return nil, fmt.Errorf("failed to instantiate module: %w", err)
	}

	if init := mod.ExportedFunction("_initialize"); init != nil {
		if _, err := init.Call(session.WithSession(ctx, sess)); err != nil {
			_ = mod.Close(ctx)
			e.sessions.Delete(cfg.name)
			return nil, fmt.Errorf("failed to call _initialize: %w", err)
		}
	}

	e.logger.DebugContext(ctx, "guest loaded", "guest", cfg.name, "session", sess.ID)
	return &Instance{exec: e, module: mod, session: sess, name: cfg.name}, nil
}

// Name returns the module name the guest was instantiated under.
func (i *Instance) Name() string {
	return i.name
}

// Session returns the guest's session.
func (i *Instance) Session() *session.Session {
	return i.session
}

// Memory returns a bounds-checked view of the memory the guest exports as
// "memory". The view reports no memory when there is no such export.
func (i *Instance) Memory() *memory.View {
	if mem := i.module.ExportedMemory(wazeroinfra.MemoryExport); mem != nil {
		return memory.NewView(mem)
	}
	// A nil api.Memory must not become a non-nil memory.Memory.
	return memory.NewView(nil)
}

// Call invokes an exported guest function. A trap raised by a host function
// is returned as an error that matches abi.IsTrap.
func (i *Instance) Call(ctx context.Context, export string, params ...uint64) ([]uint64, error) {
	f := i.module.ExportedFunction(export)
	if f == nil {
		return nil, fmt.Errorf("%w: %q", ErrExportNotFound, export)
	}
	return f.Call(session.WithSession(ctx, i.session), params...)
}

// Close closes the guest module and drops its session.
func (i *Instance) Close(ctx context.Context) error {
	defer i.exec.sessions.Delete(i.name)

	if i.exec.logger.Enabled(ctx, slog.LevelDebug) {
		eps := i.session.Endpoints.Endpoints()
		names := make([]string, len(eps))
		for h, ep := range eps {
			names[h] = ep.Name()
		}
		i.exec.logger.DebugContext(ctx, "guest closed", "guest", i.name, "session", i.session.ID, "endpoints", names)
	}
	if err := i.module.Close(ctx); err != nil {
		return fmt.Errorf("close guest %s: %w", i.name, err)
	}
	return nil
}
