package host

import (
	"log/slog"

	"github.com/reglet-dev/logabi/abi"
	"github.com/reglet-dev/logabi/config"
	"github.com/reglet-dev/logabi/endpoint"
)

type executorConfig struct {
	registry         *abi.Registry
	sink             endpoint.Sink
	logger           *slog.Logger
	config           *config.Config
	memoryLimitPages uint32
}

// Option defines a functional option for configuring the Executor.
type Option func(*executorConfig)

// WithRegistry replaces the default registry (the fastly_log module with
// panic recovery and call logging) with a caller-built one.
func WithRegistry(registry *abi.Registry) Option {
	return func(c *executorConfig) {
		c.registry = registry
	}
}

// WithSink sets the sink every guest's endpoints write to.
// It takes precedence over the sinks described by WithConfig.
func WithSink(sink endpoint.Sink) Option {
	return func(c *executorConfig) {
		c.sink = sink
	}
}

// WithLogger sets the host logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *executorConfig) {
		c.logger = logger
	}
}

// WithConfig applies a loaded configuration: namespace, handle mode,
// memory limit and sinks.
func WithConfig(cfg *config.Config) Option {
	return func(c *executorConfig) {
		c.config = cfg
	}
}

// WithMemoryLimitPages caps each guest's linear memory.
func WithMemoryLimitPages(pages uint32) Option {
	return func(c *executorConfig) {
		c.memoryLimitPages = pages
	}
}

type guestConfig struct {
	name string
	sink endpoint.Sink
}

// GuestOption configures a single LoadGuest call.
type GuestOption func(*guestConfig)

// WithGuestName overrides the generated module name.
func WithGuestName(name string) GuestOption {
	return func(c *guestConfig) {
		c.name = name
	}
}

// WithGuestSink routes this guest's endpoints to sink instead of the
// executor's sink.
func WithGuestSink(sink endpoint.Sink) GuestOption {
	return func(c *guestConfig) {
		c.sink = sink
	}
}
