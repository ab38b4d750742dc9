package abi

import (
	"context"
	"fmt"
	"sort"
)

// key identifies a function by namespace and name.
type key struct {
	namespace string
	name      string
}

// Registry is an immutable table of host functions keyed by
// (namespace, name). It is built once at link time via NewRegistry and
// cannot be modified afterwards, so lookups need no locking.
type Registry struct {
	functions  map[key]Function
	namespaces map[string][]string // sorted function names per namespace
	middleware []Middleware
}

// registryBuilder accumulates configuration during registry construction.
type registryBuilder struct {
	functions  map[key]Function
	middleware []Middleware
	errors     []error
}

// RegistryOption is a functional option for configuring a Registry.
type RegistryOption func(*registryBuilder)

// NewRegistry creates an immutable Registry with the given options.
// Returns an error if any (namespace, name) pair is registered twice.
//
// Example usage:
//
//	registry, err := abi.NewRegistry(
//	    abi.WithMiddleware(abi.TrapOnPanic()),
//	    abi.WithModule(fastlylog.New()),
//	)
func NewRegistry(opts ...RegistryOption) (*Registry, error) {
	b := &registryBuilder{
		functions: make(map[key]Function),
	}

	for _, opt := range opts {
		opt(b)
	}

	if len(b.errors) > 0 {
		return nil, b.errors[0]
	}

	namespaces := make(map[string][]string)
	wrapped := make(map[key]Function, len(b.functions))
	for k, fn := range b.functions {
		namespaces[k.namespace] = append(namespaces[k.namespace], k.name)

		// Apply middleware in reverse order so the first one wraps outermost.
		f := fn.Func
		for i := len(b.middleware) - 1; i >= 0; i-- {
			f = b.middleware[i](f)
		}
		fn.Func = f
		wrapped[k] = fn
	}
	for ns := range namespaces {
		sort.Strings(namespaces[ns])
	}

	return &Registry{
		functions:  wrapped,
		namespaces: namespaces,
		middleware: b.middleware,
	}, nil
}

// Namespaces returns the sorted list of namespaces with registered functions.
func (r *Registry) Namespaces() []string {
	out := make([]string, 0, len(r.namespaces))
	for ns := range r.namespaces {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// Functions returns the functions registered under namespace, sorted by name.
// Each returned Function has the registry's middleware applied.
func (r *Registry) Functions(namespace string) []Function {
	names := r.namespaces[namespace]
	out := make([]Function, 0, len(names))
	for _, name := range names {
		out = append(out, r.functions[key{namespace, name}])
	}
	return out
}

// Lookup returns the function registered under (namespace, name).
func (r *Registry) Lookup(namespace, name string) (Function, bool) {
	fn, ok := r.functions[key{namespace, name}]
	return fn, ok
}

// Has reports whether (namespace, name) is registered.
func (r *Registry) Has(namespace, name string) bool {
	_, ok := r.functions[key{namespace, name}]
	return ok
}

// Invoke dispatches call to the function named by call.Namespace and call.Name.
// Calling an unregistered function is a trap.
func (r *Registry) Invoke(ctx context.Context, call *Call) (Status, error) {
	fn, ok := r.Lookup(call.Namespace, call.Name)
	if !ok {
		return 0, NewTrap(call.QualifiedName(), "not registered", ErrUnknownFunction)
	}
	if len(call.Params) != len(fn.Params) {
		return 0, NewTrap(call.QualifiedName(),
			fmt.Sprintf("expected %d params, got %d", len(fn.Params), len(call.Params)), nil)
	}
	return fn.Func(ctx, call)
}

// addFunction registers fn under namespace.
// Returns an error if the pair is already registered or a name is empty.
func (b *registryBuilder) addFunction(namespace string, fn Function) error {
	if namespace == "" {
		return fmt.Errorf("namespace cannot be empty")
	}
	if fn.Name == "" {
		return fmt.Errorf("function name cannot be empty (namespace %q)", namespace)
	}
	if fn.Func == nil {
		return fmt.Errorf("function %s has no implementation", QualifiedName(namespace, fn.Name))
	}
	if len(fn.ParamNames) > 0 && len(fn.ParamNames) != len(fn.Params) {
		return fmt.Errorf("function %s: %d param names for %d params",
			QualifiedName(namespace, fn.Name), len(fn.ParamNames), len(fn.Params))
	}
	k := key{namespace, fn.Name}
	if _, exists := b.functions[k]; exists {
		return fmt.Errorf("duplicate host function: %s", QualifiedName(namespace, fn.Name))
	}
	b.functions[k] = fn
	return nil
}

// WithModule registers every function of m under m.Namespace().
func WithModule(m Module) RegistryOption {
	return func(b *registryBuilder) {
		for _, fn := range m.Functions() {
			if err := b.addFunction(m.Namespace(), fn); err != nil {
				b.errors = append(b.errors, err)
			}
		}
	}
}

// WithFunction registers a single function under namespace.
func WithFunction(namespace string, fn Function) RegistryOption {
	return func(b *registryBuilder) {
		if err := b.addFunction(namespace, fn); err != nil {
			b.errors = append(b.errors, err)
		}
	}
}

// WithMiddleware adds middleware to the registry.
// Middleware executes in FIFO order (first added wraps first).
func WithMiddleware(mw ...Middleware) RegistryOption {
	return func(b *registryBuilder) {
		b.middleware = append(b.middleware, mw...)
	}
}
