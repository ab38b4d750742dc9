package abi

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSession is wrapped by traps raised when a call cannot be bound
	// to a guest session.
	ErrNoSession = errors.New("no session bound to guest")

	// ErrUnknownFunction is wrapped by traps raised for unregistered functions.
	ErrUnknownFunction = errors.New("unknown host function")
)

// Trap aborts the in-flight guest call. It is never returned to the guest
// as a status; runtimes surface it as the error of the guest invocation.
type Trap struct {
	Err  error
	Func string
	Msg  string
}

// NewTrap returns a trap raised by fn with message msg, wrapping cause.
func NewTrap(fn, msg string, cause error) *Trap {
	return &Trap{Func: fn, Msg: msg, Err: cause}
}

func (t *Trap) Error() string {
	switch {
	case t.Func != "" && t.Err != nil:
		return fmt.Sprintf("%s: %s: %v", t.Func, t.Msg, t.Err)
	case t.Func != "":
		return fmt.Sprintf("%s: %s", t.Func, t.Msg)
	case t.Err != nil:
		return fmt.Sprintf("%s: %v", t.Msg, t.Err)
	default:
		return t.Msg
	}
}

func (t *Trap) Unwrap() error {
	return t.Err
}

// IsTrap reports whether err is, or wraps, a Trap.
func IsTrap(err error) bool {
	var t *Trap
	return errors.As(err, &t)
}

// AsTrap converts err to a Trap raised by fn. Errors that already are traps
// are returned unchanged.
func AsTrap(fn string, err error) *Trap {
	if err == nil {
		return nil
	}
	var t *Trap
	if errors.As(err, &t) {
		return t
	}
	return NewTrap(fn, "host function failed", err)
}
