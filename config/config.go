// Package config loads and validates the host configuration.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/reglet-dev/logabi/fastlylog"
	hostlog "github.com/reglet-dev/logabi/log"
)

// validate is a package-level singleton; building a validator is expensive.
var validate = validator.New()

// Sink types.
const (
	SinkSlog    = "slog"
	SinkStdout  = "stdout"
	SinkStderr  = "stderr"
	SinkFile    = "file"
	SinkDiscard = "discard"
)

// Config is the host configuration.
type Config struct {
	// Endpoints routes individual endpoint names to their own sink.
	// Unrouted endpoints use Sink.
	Endpoints map[string]SinkConfig `yaml:"endpoints,omitempty" json:"endpoints,omitempty" validate:"dive,keys,required,endkeys"`

	// Namespace is the import module name guests link against.
	Namespace string `yaml:"namespace" json:"namespace" validate:"required,max=64,printascii"`

	// HandleMode is "index" (report real handles) or "zero" (always report 0).
	HandleMode string `yaml:"handle_mode,omitempty" json:"handle_mode,omitempty" validate:"omitempty,oneof=index zero" jsonschema:"enum=index,enum=zero"`

	Log  LogConfig  `yaml:"log,omitempty" json:"log,omitempty"`
	Sink SinkConfig `yaml:"sink,omitempty" json:"sink,omitempty"`

	// MemoryLimitPages caps guest linear memory, in 64 KiB pages. Zero keeps
	// the runtime default.
	MemoryLimitPages uint32 `yaml:"memory_limit_pages,omitempty" json:"memory_limit_pages,omitempty" validate:"lte=65536"`
}

// LogConfig configures the host logger.
type LogConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty" validate:"omitempty,oneof=debug info warn error" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format string `yaml:"format,omitempty" json:"format,omitempty" validate:"omitempty,oneof=text json" jsonschema:"enum=text,enum=json"`
	Source bool   `yaml:"source,omitempty" json:"source,omitempty"`
}

// SinkConfig describes where endpoint messages go.
type SinkConfig struct {
	Type string `yaml:"type" json:"type" validate:"required,oneof=slog stdout stderr file discard" jsonschema:"enum=slog,enum=stdout,enum=stderr,enum=file,enum=discard"`
	// Path is the file to append to when Type is "file".
	Path string `yaml:"path,omitempty" json:"path,omitempty" validate:"required_if=Type file"`
	// Level is the record level of slog sinks. Defaults to info.
	Level string `yaml:"level,omitempty" json:"level,omitempty" validate:"omitempty,oneof=debug info warn error" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	// Prefix prepends "<endpoint>: " to each line of stream and file sinks.
	Prefix bool `yaml:"prefix,omitempty" json:"prefix,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Namespace:  fastlylog.DefaultNamespace,
		HandleMode: fastlylog.HandleIndex.String(),
		Log:        LogConfig{Level: "info", Format: string(hostlog.FormatText)},
		Sink:       SinkConfig{Type: SinkSlog},
	}
}

// Load reads, parses and validates the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Schema returns the JSON Schema describing the configuration file.
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{FieldNameTag: "yaml"}
	s := r.Reflect(&Config{})
	s.Title = "logabi host configuration"
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config schema: %w", err)
	}
	return data, nil
}

// ModuleOptions returns the fastlylog options this configuration selects.
func (c *Config) ModuleOptions() []fastlylog.Option {
	opts := []fastlylog.Option{fastlylog.WithNamespace(c.Namespace)}
	if c.HandleMode == fastlylog.HandleZero.String() {
		opts = append(opts, fastlylog.WithHandleMode(fastlylog.HandleZero))
	} else {
		opts = append(opts, fastlylog.WithHandleMode(fastlylog.HandleIndex))
	}
	return opts
}

// NewLogger builds the host logger described by c.Log, writing to w.
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := hostlog.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	format := hostlog.FormatText
	if c.Log.Format == string(hostlog.FormatJSON) {
		format = hostlog.FormatJSON
	}
	return hostlog.New(w,
		hostlog.WithLevel(level),
		hostlog.WithFormat(format),
		hostlog.WithSource(c.Log.Source),
	), nil
}
