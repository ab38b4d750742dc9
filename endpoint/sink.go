package endpoint

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Discard is a Sink that drops every message.
var Discard Sink = SinkFunc(func(context.Context, string, string) error { return nil })

// SlogSink writes each message as an info record on a structured logger.
type SlogSink struct {
	logger *slog.Logger
	level  slog.Level
}

// NewSlogSink returns a sink that logs to logger at info level.
// A nil logger uses slog.Default().
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger, level: slog.LevelInfo}
}

// WithLevel returns a copy of the sink that logs at level.
func (s *SlogSink) WithLevel(level slog.Level) *SlogSink {
	c := *s
	c.level = level
	return &c
}

// Log implements Sink.
func (s *SlogSink) Log(ctx context.Context, endpoint, message string) error {
	s.logger.Log(ctx, s.level, message, slog.String("endpoint", endpoint))
	return nil
}

// WriterSink writes one line per message to an io.Writer.
type WriterSink struct {
	w      io.Writer
	prefix bool
	mu     sync.Mutex
}

// WriterOption configures a WriterSink.
type WriterOption func(*WriterSink)

// WithEndpointPrefix prefixes each line with "<endpoint>: ".
func WithEndpointPrefix(enabled bool) WriterOption {
	return func(s *WriterSink) {
		s.prefix = enabled
	}
}

// NewWriterSink returns a sink writing to w.
func NewWriterSink(w io.Writer, opts ...WriterOption) *WriterSink {
	s := &WriterSink{w: w}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Log implements Sink.
func (s *WriterSink) Log(_ context.Context, endpoint, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.prefix {
		_, err = fmt.Fprintf(s.w, "%s: %s\n", endpoint, message)
	} else {
		_, err = fmt.Fprintln(s.w, message)
	}
	if err != nil {
		return fmt.Errorf("write to endpoint %q: %w", endpoint, err)
	}
	return nil
}

// Router dispatches messages to a per-endpoint sink, falling back to a
// default for names without a route.
type Router struct {
	fallback Sink
	routes   map[string]Sink
}

// NewRouter returns a Router. A nil fallback discards unrouted messages.
func NewRouter(fallback Sink, routes map[string]Sink) *Router {
	if fallback == nil {
		fallback = Discard
	}
	r := &Router{fallback: fallback, routes: make(map[string]Sink, len(routes))}
	for name, sink := range routes {
		r.routes[name] = sink
	}
	return r
}

// Log implements Sink.
func (r *Router) Log(ctx context.Context, endpoint, message string) error {
	if sink, ok := r.routes[endpoint]; ok {
		return sink.Log(ctx, endpoint, message)
	}
	return r.fallback.Log(ctx, endpoint, message)
}
