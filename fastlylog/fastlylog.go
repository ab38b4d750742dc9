// Package fastlylog implements the host side of the fastly_log ABI module,
// which lets a guest register named logging endpoints and write messages to
// them.
//
// The module exports two functions:
//
//	endpoint_get(name_ptr, name_len, handle_out_ptr i32) -> status
//	write(handle, msg_ptr, msg_len, nwritten_out_ptr i32) -> status
//
// Strings are UTF-8 with an explicit length. Integers written back to the
// guest are little-endian i32.
package fastlylog

import (
	"context"
	"log/slog"

	"github.com/reglet-dev/logabi/abi"
	"github.com/reglet-dev/logabi/endpoint"
	"github.com/reglet-dev/logabi/memory"
)

// DefaultNamespace is the import module name guests use.
const DefaultNamespace = "fastly_log"

// HandleMode selects the value endpoint_get writes to handle_out_ptr.
type HandleMode int

const (
	// HandleIndex writes the endpoint's real handle.
	HandleIndex HandleMode = iota
	// HandleZero always writes 0, matching hosts that never stored the
	// handle. Only the first endpoint a guest registers is then reachable.
	HandleZero
)

func (m HandleMode) String() string {
	switch m {
	case HandleIndex:
		return "index"
	case HandleZero:
		return "zero"
	default:
		return "unknown"
	}
}

// Option configures the module.
type Option func(*config)

type config struct {
	logger     *slog.Logger
	namespace  string
	handleMode HandleMode
}

func defaultConfig() config {
	return config{
		namespace:  DefaultNamespace,
		handleMode: HandleIndex,
	}
}

// WithNamespace overrides the import module name (default "fastly_log").
func WithNamespace(ns string) Option {
	return func(c *config) {
		c.namespace = ns
	}
}

// WithHandleMode selects what endpoint_get reports as the new handle.
func WithHandleMode(mode HandleMode) Option {
	return func(c *config) {
		c.handleMode = mode
	}
}

// WithLogger sets the logger used for sink failures. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// Module is the fastly_log ABI module. It is stateless: per-guest endpoint
// tables live in the session bound to each call.
type Module struct {
	cfg config
}

// New returns the module configured by opts.
func New(opts ...Option) *Module {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return &Module{cfg: cfg}
}

// Namespace implements abi.Module.
func (m *Module) Namespace() string {
	return m.cfg.namespace
}

// Functions implements abi.Module.
func (m *Module) Functions() []abi.Function {
	return []abi.Function{
		abi.I32Function("endpoint_get", m.EndpointGet, "name", "name_len", "endpoint_handle_out"),
		abi.I32Function("write", m.Write, "endpoint_handle", "msg", "msg_len", "nwritten_out"),
	}
}

// EndpointGet registers a new endpoint named by the guest string at
// (name_ptr, name_len) and writes its handle to handle_out_ptr.
//
// Every call creates a new endpoint; names are not deduplicated.
func (m *Module) EndpointGet(ctx context.Context, call *abi.Call) (abi.Status, error) {
	var (
		fn           = call.QualifiedName()
		namePtr      = call.U32(0)
		nameLen      = call.U32(1)
		handleOutPtr = call.U32(2)
	)
	if call.Session == nil {
		return 0, abi.NewTrap(fn, "no session", abi.ErrNoSession)
	}

	name, err := call.Memory.ReadString(namePtr, nameLen)
	if err != nil {
		if memory.IsFault(err) {
			return 0, abi.NewTrap(fn, "failed to read endpoint name", err)
		}
		return 0, abi.NewTrap(fn, "Invalid endpoint name", err)
	}

	// Validate the output slot before registering so a trap never leaves
	// an endpoint the guest was not told about.
	if err := call.Memory.Check(handleOutPtr, 4); err != nil {
		return 0, abi.NewTrap(fn, "failed to write endpoint handle", err)
	}

	handle := call.Session.Endpoints.Register(name)
	m.cfg.logger.DebugContext(ctx, fn, "endpoint", name, "handle", int32(handle), "session", call.Session.ID)

	out := handle
	if m.cfg.handleMode == HandleZero {
		out = 0
	}
	if err := call.Memory.WriteInt32(handleOutPtr, int32(out)); err != nil {
		return 0, abi.NewTrap(fn, "failed to write endpoint handle", err)
	}
	return abi.StatusOK, nil
}

// Write forwards the guest string at (msg_ptr, msg_len) to the endpoint
// identified by handle and writes the number of bytes logged to
// nwritten_out_ptr.
//
// An unknown handle yields StatusBadf without touching guest memory. A sink
// failure yields StatusError and leaves nwritten_out_ptr untouched.
func (m *Module) Write(ctx context.Context, call *abi.Call) (abi.Status, error) {
	var (
		fn          = call.QualifiedName()
		handle      = endpoint.Handle(call.I32(0))
		msgPtr      = call.U32(1)
		msgLen      = call.U32(2)
		nwrittenOut = call.U32(3)
	)
	if call.Session == nil {
		return 0, abi.NewTrap(fn, "no session", abi.ErrNoSession)
	}

	ep, ok := call.Session.Endpoints.Lookup(handle)
	if !ok {
		return abi.StatusBadf, nil
	}

	message, err := call.Memory.ReadString(msgPtr, msgLen)
	if err != nil {
		if memory.IsFault(err) {
			return 0, abi.NewTrap(fn, "failed to read log message", err)
		}
		return 0, abi.NewTrap(fn, "Invalid log message", err)
	}

	if err := call.Memory.Check(nwrittenOut, 4); err != nil {
		return 0, abi.NewTrap(fn, "failed to write byte count", err)
	}

	if err := ep.Log(ctx, message); err != nil {
		m.cfg.logger.ErrorContext(ctx, fn+": sink failed", "endpoint", ep.Name(), "error", err)
		return abi.StatusError, nil
	}

	if err := call.Memory.WriteUint32(nwrittenOut, uint32(len(message))); err != nil { //nolint:gosec // G115: bounded by msg_len
		return 0, abi.NewTrap(fn, "failed to write byte count", err)
	}
	return abi.StatusOK, nil
}
