package abi

import (
	"context"
	"fmt"
	"log/slog"
)

// Middleware wraps a Func to add cross-cutting behavior.
// Middleware executes in FIFO order (first registered wraps first, onion model).
type Middleware func(next Func) Func

// TrapOnPanic returns a middleware that converts a panic inside a host
// function into a Trap, so a faulty handler aborts only the current call.
func TrapOnPanic() Middleware {
	return func(next Func) Func {
		return func(ctx context.Context, call *Call) (status Status, err error) {
			defer func() {
				if r := recover(); r != nil {
					status = 0
					err = NewTrap(call.QualifiedName(), "panic", panicError(r))
				}
			}()
			return next(ctx, call)
		}
	}
}

func panicError(v any) error {
	switch t := v.(type) {
	case error:
		return t
	case string:
		return fmt.Errorf("%s", t)
	default:
		return fmt.Errorf("%v", t)
	}
}

// LoggingMiddleware returns a middleware that logs every call at debug level
// with its raw parameters, and every trap at error level.
// A nil logger uses slog.Default().
func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Func) Func {
		return func(ctx context.Context, call *Call) (Status, error) {
			name := call.QualifiedName()
			if logger.Enabled(ctx, slog.LevelDebug) {
				logger.DebugContext(ctx, name, "params", call.Params)
			}
			status, err := next(ctx, call)
			if err != nil {
				logger.ErrorContext(ctx, name+" trapped", "error", err)
				return status, err
			}
			logger.DebugContext(ctx, name+" returned", "status", status.String())
			return status, nil
		}
	}
}
