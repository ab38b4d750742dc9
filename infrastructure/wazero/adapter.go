package wazero

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/reglet-dev/logabi/abi"
	"github.com/reglet-dev/logabi/memory"
)

// AdapterConfig holds configuration for the wazero adapter.
type AdapterConfig struct {
	// Resolver binds each call to a guest session. Default: ContextResolver.
	Resolver SessionResolver

	// Logger receives adapter diagnostics. Default: slog.Default().
	Logger *slog.Logger
}

// AdapterOption configures the adapter.
type AdapterOption func(*AdapterConfig)

// WithSessionResolver sets how calls are bound to guest sessions.
func WithSessionResolver(r SessionResolver) AdapterOption {
	return func(c *AdapterConfig) {
		c.Resolver = r
	}
}

// WithLogger sets the adapter logger.
func WithLogger(logger *slog.Logger) AdapterOption {
	return func(c *AdapterConfig) {
		c.Logger = logger
	}
}

// defaultAdapterConfig returns the default adapter configuration.
func defaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		Resolver: ContextResolver,
		Logger:   slog.Default(),
	}
}

// RegisterWithRuntime instantiates one wazero host module per namespace in
// registry and exports every function registered under it.
//
// Each exported function:
//   - resolves the calling guest's session,
//   - wraps the guest's exported memory in a bounds-checked memory.View,
//   - invokes the registry,
//   - returns the status as an i32, or aborts the guest call with the trap.
//
// Example:
//
//	registry, _ := abi.NewRegistry(abi.WithModule(fastlylog.New()))
//	err := wazero.RegisterWithRuntime(ctx, runtime, registry,
//	    wazero.WithSessionResolver(wazero.StoreResolver(store)),
//	)
func RegisterWithRuntime(ctx context.Context, runtime wazero.Runtime, registry *abi.Registry, opts ...AdapterOption) error {
	cfg := defaultAdapterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Resolver == nil {
		cfg.Resolver = ContextResolver
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	for _, ns := range registry.Namespaces() {
		builder := runtime.NewHostModuleBuilder(ns)
		for _, fn := range registry.Functions(ns) {
			namespace, name, nparams := ns, fn.Name, len(fn.Params) // capture for closure
			fb := builder.NewFunctionBuilder().
				WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
					handleCall(ctx, mod, stack, registry, namespace, name, nparams, cfg)
				}), valueTypes(fn.Params), valueTypes(fn.Results))
			if len(fn.ParamNames) > 0 {
				fb = fb.WithParameterNames(fn.ParamNames...)
			}
			fb.Export(name)
		}
		if _, err := builder.Instantiate(ctx); err != nil {
			return fmt.Errorf("instantiate host module %q: %w", ns, err)
		}
	}
	return nil
}

// handleCall services one guest call. Traps are raised by panicking with
// the *abi.Trap; wazero recovers it and returns it, wrapped, as the error
// of the guest's exported function call.
func handleCall(ctx context.Context, mod api.Module, stack []uint64, registry *abi.Registry, namespace, name string, nparams int, cfg AdapterConfig) {
	fn := abi.QualifiedName(namespace, name)

	sess, err := cfg.Resolver(ctx, mod)
	if err != nil {
		cfg.Logger.ErrorContext(ctx, "wazero: failed to resolve session", "function", fn, "module", mod.Name(), "error", err)
		panic(abi.NewTrap(fn, "failed to resolve session", err))
	}

	params := make([]uint64, nparams)
	copy(params, stack[:nparams])

	call := &abi.Call{
		Namespace: namespace,
		Name:      name,
		Params:    params,
		Memory:    memory.NewView(guestMemory(mod)),
		Session:   sess,
	}

	status, err := registry.Invoke(ctx, call)
	if err != nil {
		panic(abi.AsTrap(fn, err))
	}
	stack[0] = api.EncodeI32(status.Code())
}

// MemoryExport is the export name guests must give their linear memory.
const MemoryExport = "memory"

// guestMemory returns the memory the caller exports as "memory", or nil.
// A memory the guest defines but does not export under that name is not
// used. A nil interface keeps memory.View's "unavailable" path reachable.
func guestMemory(mod api.Module) memory.Memory {
	mem := mod.ExportedMemory(MemoryExport)
	if mem == nil {
		return nil
	}
	return mem
}

func valueTypes(in []abi.ValueType) []api.ValueType {
	out := make([]api.ValueType, len(in))
	for i, vt := range in {
		out[i] = api.ValueType(vt)
	}
	return out
}
