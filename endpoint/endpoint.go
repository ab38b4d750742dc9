// Package endpoint holds the host-side logging destinations a guest can
// reference by handle.
package endpoint

import (
	"context"
)

// Sink is the destination an endpoint forwards messages to.
type Sink interface {
	Log(ctx context.Context, endpoint, message string) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, endpoint, message string) error

// Log calls f.
func (f SinkFunc) Log(ctx context.Context, endpoint, message string) error {
	return f(ctx, endpoint, message)
}

// Endpoint is a named logging destination. It is immutable after creation.
type Endpoint struct {
	sink Sink
	name string
}

// New returns an endpoint called name that forwards to sink.
// A nil sink discards messages.
func New(name string, sink Sink) *Endpoint {
	if sink == nil {
		sink = Discard
	}
	return &Endpoint{name: name, sink: sink}
}

// Name returns the name the guest registered the endpoint under.
func (e *Endpoint) Name() string {
	return e.name
}

// Log forwards message to the backing sink exactly once.
func (e *Endpoint) Log(ctx context.Context, message string) error {
	return e.sink.Log(ctx, e.name, message)
}
