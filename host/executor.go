package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/reglet-dev/logabi/abi"
	"github.com/reglet-dev/logabi/endpoint"
	"github.com/reglet-dev/logabi/fastlylog"
	wazeroinfra "github.com/reglet-dev/logabi/infrastructure/wazero"
	"github.com/reglet-dev/logabi/session"
)

// Executor manages the runtime shared by guest instances.
type Executor struct {
	runtime  wazero.Runtime
	registry *abi.Registry
	sessions *session.Store
	sink     endpoint.Sink
	logger   *slog.Logger
	closer   io.Closer
}

// NewExecutor creates a new executor with the given options.
func NewExecutor(ctx context.Context, opts ...Option) (*Executor, error) {
	cfg := executorConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	e := &Executor{
		registry: cfg.registry,
		sessions: session.NewStore(),
		sink:     cfg.sink,
		logger:   cfg.logger,
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}

	var moduleOpts []fastlylog.Option
	pages := cfg.memoryLimitPages
	if cfg.config != nil {
		if err := cfg.config.Validate(); err != nil {
			return nil, err
		}
		moduleOpts = cfg.config.ModuleOptions()
		if pages == 0 {
			pages = cfg.config.MemoryLimitPages
		}
		if e.sink == nil {
			sink, closer, err := cfg.config.BuildSink(e.logger)
			if err != nil {
				return nil, fmt.Errorf("failed to build sink: %w", err)
			}
			e.sink, e.closer = sink, closer
		}
	}
	if e.sink == nil {
		e.sink = endpoint.NewSlogSink(e.logger)
	}

	// Default registry if not provided
	if e.registry == nil {
		moduleOpts = append(moduleOpts, fastlylog.WithLogger(e.logger))
		reg, err := abi.NewRegistry(
			abi.WithModule(fastlylog.New(moduleOpts...)),
			abi.WithMiddleware(defaultMiddleware(e.logger)...),
		)
		if err != nil {
			e.closeSinks()
			return nil, fmt.Errorf("failed to create default registry: %w", err)
		}
		e.registry = reg
	}

	rc := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if pages > 0 {
		rc = rc.WithMemoryLimitPages(pages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, rc)
	e.runtime = rt

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		_ = e.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}

	err := wazeroinfra.RegisterWithRuntime(ctx, rt, e.registry,
		wazeroinfra.WithSessionResolver(wazeroinfra.StoreResolver(e.sessions)),
		wazeroinfra.WithLogger(e.logger),
	)
	if err != nil {
		_ = e.Close(ctx)
		return nil, fmt.Errorf("failed to register host functions: %w", err)
	}

	return e, nil
}

// defaultMiddleware logs outside panic recovery so a recovered panic is
// logged like any other trap.
func defaultMiddleware(logger *slog.Logger) []abi.Middleware {
	return []abi.Middleware{abi.LoggingMiddleware(logger), abi.TrapOnPanic()}
}

// Registry returns the registry the executor exposes to guests.
func (e *Executor) Registry() *abi.Registry {
	return e.registry
}

// Guests returns the number of live instances.
func (e *Executor) Guests() int {
	return e.sessions.Len()
}

// Close releases the runtime, every instance and any sink files.
func (e *Executor) Close(ctx context.Context) error {
	var errs []error
	if e.runtime != nil {
		if err := e.runtime.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close runtime: %w", err))
		}
	}
	if err := e.closeSinks(); err != nil {
		errs = append(errs, fmt.Errorf("close sinks: %w", err))
	}
	return errors.Join(errs...)
}

func (e *Executor) closeSinks() error {
	if e.closer == nil {
		return nil
	}
	err := e.closer.Close()
	e.closer = nil
	return err
}
