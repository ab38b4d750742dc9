package abi

import (
	"context"

	"github.com/reglet-dev/logabi/memory"
	"github.com/reglet-dev/logabi/session"
)

// ValueType is a WebAssembly value type used in function signatures.
type ValueType byte

// Value types understood by runtime adapters.
const (
	ValueTypeI32 ValueType = 0x7f
	ValueTypeI64 ValueType = 0x7e
)

// Call is one in-flight guest invocation of a host function.
type Call struct {
	Memory    *memory.View
	Session   *session.Session
	Namespace string
	Name      string
	Params    []uint64
}

// QualifiedName returns "namespace::name".
func (c *Call) QualifiedName() string {
	return QualifiedName(c.Namespace, c.Name)
}

// I32 decodes parameter i as a signed 32-bit integer.
func (c *Call) I32(i int) int32 {
	return int32(uint32(c.Params[i])) //nolint:gosec // G115: wasm i32 lives in the low 32 bits
}

// U32 decodes parameter i as an unsigned 32-bit integer, the form used for
// guest pointers and lengths.
func (c *Call) U32(i int) uint32 {
	return uint32(c.Params[i]) //nolint:gosec // G115: wasm i32 lives in the low 32 bits
}

// Func implements a host function. A non-nil error aborts the guest call
// as a trap; the status is ignored in that case.
type Func func(ctx context.Context, call *Call) (Status, error)

// Function describes one host function exported to guests.
type Function struct {
	Func       Func
	Name       string
	Params     []ValueType
	ParamNames []string
	Results    []ValueType
}

// I32Function returns a Function taking the named i32 parameters and
// returning one i32 status.
func I32Function(name string, fn Func, paramNames ...string) Function {
	params := make([]ValueType, len(paramNames))
	for i := range params {
		params[i] = ValueTypeI32
	}
	return Function{
		Name:       name,
		Func:       fn,
		Params:     params,
		ParamNames: paramNames,
		Results:    []ValueType{ValueTypeI32},
	}
}

// QualifiedName joins namespace and name the way traps and logs print them.
func QualifiedName(namespace, name string) string {
	return namespace + "::" + name
}
