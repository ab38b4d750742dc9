// Package wazero links an abi.Registry into the wazero runtime.
//
// This package bridges the runtime-independent host functions in package abi
// and the wazero WebAssembly runtime. It handles:
//
//   - Creating one host module per ABI namespace
//   - Exporting each function with its i32 signature
//   - Binding each call to the calling guest's session
//   - Exposing guest memory through a bounds-checked memory.View
//   - Raising traps so that they abort the guest call
//
// # Basic Usage
//
//	registry, err := abi.NewRegistry(abi.WithModule(fastlylog.New()))
//	if err != nil {
//	    return err
//	}
//
//	runtime := wazero.NewRuntime(ctx)
//	store := session.NewStore()
//	err = adapter.RegisterWithRuntime(ctx, runtime, registry,
//	    adapter.WithSessionResolver(adapter.StoreResolver(store)),
//	)
//
// # Sessions
//
// Host modules are shared by every guest in a runtime, so each call must be
// bound to the caller's own state. StoreResolver looks the session up by the
// guest's module name; ContextResolver uses the context the guest function
// was invoked with.
package wazero
