package config

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/logabi/fastlylog"
	hostlog "github.com/reglet-dev/logabi/log"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, fastlylog.DefaultNamespace, cfg.Namespace)
	assert.Equal(t, "index", cfg.HandleMode)
	assert.Equal(t, SinkSlog, cfg.Sink.Type)
}

func TestParse(t *testing.T) {
	t.Run("empty document keeps defaults", func(t *testing.T) {
		cfg, err := Parse(nil)
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("overrides", func(t *testing.T) {
		cfg, err := Parse([]byte(`
namespace: custom_log
handle_mode: zero
memory_limit_pages: 16
log:
  level: debug
  format: json
sink:
  type: stderr
  prefix: true
endpoints:
  audit:
    type: discard
`))
		require.NoError(t, err)
		assert.Equal(t, "custom_log", cfg.Namespace)
		assert.Equal(t, "zero", cfg.HandleMode)
		assert.Equal(t, uint32(16), cfg.MemoryLimitPages)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Equal(t, SinkConfig{Type: SinkStderr, Prefix: true}, cfg.Sink)
		assert.Equal(t, SinkConfig{Type: SinkDiscard}, cfg.Endpoints["audit"])
	})

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unknown key", "bogus: 1\n", "bogus"},
		{"bad handle mode", "handle_mode: sometimes\n", "HandleMode"},
		{"bad log level", "log:\n  level: loud\n", "Level"},
		{"empty namespace", "namespace: \"\"\n", "Namespace"},
		{"file sink without path", "sink:\n  type: file\n", "required_if"},
		{"bad endpoint sink", "endpoints:\n  audit:\n    type: kafka\n", "Endpoints[audit]"},
		{"bad slog sink level", "sink:\n  type: slog\n  level: loud\n", "Sink.Level"},
		{"memory limit too large", "memory_limit_pages: 70000\n", "MemoryLimitPages"},
		{"malformed", "namespace: [\n", "failed to parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "host.yaml")
	require.NoError(t, os.WriteFile(path, []byte("namespace: from_file\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from_file", cfg.Namespace)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("handle_mode: x\n"), 0o600))
	_, err = Load(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), bad)
}

func TestSchema(t *testing.T) {
	data, err := Schema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	defs, ok := doc["$defs"].(map[string]any)
	require.True(t, ok, "schema has $defs")
	cfgDef, ok := defs["Config"].(map[string]any)
	require.True(t, ok, "schema defines Config")
	props, ok := cfgDef["properties"].(map[string]any)
	require.True(t, ok)

	for _, name := range []string{"namespace", "handle_mode", "memory_limit_pages", "log", "sink", "endpoints"} {
		assert.Contains(t, props, name)
	}
	mode := props["handle_mode"].(map[string]any)
	assert.Equal(t, []any{"index", "zero"}, mode["enum"])
}

func TestModuleOptions(t *testing.T) {
	cfg := Default()
	cfg.Namespace = "edge_log"
	m := fastlylog.New(cfg.ModuleOptions()...)
	assert.Equal(t, "edge_log", m.Namespace())
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.Log = LogConfig{Level: "debug", Format: string(hostlog.FormatJSON)}

	var buf bytes.Buffer
	logger, err := cfg.NewLogger(&buf)
	require.NoError(t, err)
	logger.Debug("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	cfg.Log.Level = "loud"
	_, err = cfg.NewLogger(&buf)
	assert.Error(t, err)
}

func TestBuildSink(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	auditPath := filepath.Join(dir, "audit.log")
	mainPath := filepath.Join(dir, "main.log")

	cfg := Default()
	cfg.Sink = SinkConfig{Type: SinkFile, Path: mainPath, Prefix: true}
	cfg.Endpoints = map[string]SinkConfig{
		"audit": {Type: SinkFile, Path: auditPath},
		"noise": {Type: SinkDiscard},
	}
	require.NoError(t, cfg.Validate())

	sink, closer, err := cfg.BuildSink(hostlog.Discard())
	require.NoError(t, err)

	require.NoError(t, sink.Log(ctx, "audit", "user login"))
	require.NoError(t, sink.Log(ctx, "noise", "dropped"))
	require.NoError(t, sink.Log(ctx, "access", "GET /"))
	require.NoError(t, closer.Close())

	audit, err := os.ReadFile(auditPath)
	require.NoError(t, err)
	assert.Equal(t, "user login\n", string(audit))

	main, err := os.ReadFile(mainPath)
	require.NoError(t, err)
	assert.Equal(t, "access: GET /\n", string(main))
}

func TestBuildSink_SlogLevel(t *testing.T) {
	cfg := Default()
	cfg.Sink = SinkConfig{Type: SinkSlog, Level: "warn"}
	require.NoError(t, cfg.Validate())

	var buf bytes.Buffer
	logger := hostlog.New(&buf, hostlog.WithFormat(hostlog.FormatJSON))
	sink, closer, err := cfg.BuildSink(logger)
	require.NoError(t, err)
	defer func() { _ = closer.Close() }()

	require.NoError(t, sink.Log(context.Background(), "audit", "user login"))
	out := buf.String()
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, `"msg":"user login"`)
	assert.Contains(t, out, `"endpoint":"audit"`)
}

func TestBuildSink_OpenFailure(t *testing.T) {
	cfg := Default()
	cfg.Sink = SinkConfig{Type: SinkFile, Path: filepath.Join(t.TempDir(), "missing", "dir", "x.log")}

	_, _, err := cfg.BuildSink(hostlog.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink:")
}
