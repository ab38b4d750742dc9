package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/reglet-dev/logabi/endpoint"
	hostlog "github.com/reglet-dev/logabi/log"
)

// BuildSink constructs the sink tree described by c.Sink and c.Endpoints.
// The returned closer releases any files that were opened; it is never nil.
func (c *Config) BuildSink(logger *slog.Logger) (endpoint.Sink, io.Closer, error) {
	closers := &multiCloser{}

	fallback, err := buildSink(c.Sink, logger, closers)
	if err != nil {
		_ = closers.Close()
		return nil, nil, fmt.Errorf("sink: %w", err)
	}
	if len(c.Endpoints) == 0 {
		return fallback, closers, nil
	}

	names := make([]string, 0, len(c.Endpoints))
	for name := range c.Endpoints {
		names = append(names, name)
	}
	sort.Strings(names)

	routes := make(map[string]endpoint.Sink, len(names))
	for _, name := range names {
		s, err := buildSink(c.Endpoints[name], logger, closers)
		if err != nil {
			_ = closers.Close()
			return nil, nil, fmt.Errorf("endpoint %q: %w", name, err)
		}
		routes[name] = s
	}
	return endpoint.NewRouter(fallback, routes), closers, nil
}

func buildSink(sc SinkConfig, logger *slog.Logger, closers *multiCloser) (endpoint.Sink, error) {
	prefix := endpoint.WithEndpointPrefix(sc.Prefix)
	switch sc.Type {
	case SinkSlog, "":
		level, err := hostlog.ParseLevel(sc.Level)
		if err != nil {
			return nil, err
		}
		return endpoint.NewSlogSink(logger).WithLevel(level), nil
	case SinkStdout:
		return endpoint.NewWriterSink(os.Stdout, prefix), nil
	case SinkStderr:
		return endpoint.NewWriterSink(os.Stderr, prefix), nil
	case SinkDiscard:
		return endpoint.Discard, nil
	case SinkFile:
		f, err := os.OpenFile(sc.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", sc.Path, err)
		}
		closers.add(f)
		return endpoint.NewWriterSink(f, prefix), nil
	default:
		return nil, fmt.Errorf("unknown sink type %q", sc.Type)
	}
}

type multiCloser struct {
	closers []io.Closer
}

func (m *multiCloser) add(c io.Closer) {
	m.closers = append(m.closers, c)
}

func (m *multiCloser) Close() error {
	var errs []error
	for _, c := range m.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.closers = nil
	return errors.Join(errs...)
}
