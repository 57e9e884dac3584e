package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/grovetools/wagate/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromBytesDefaults(t *testing.T) {
	t.Setenv("WAGATE_HOME", t.TempDir())
	t.Setenv("PORT", "")
	t.Setenv("WAGATE_LISTEN", "")
	t.Setenv("WAGATE_STORE_PATH", "")

	cfg, err := LoadFromBytes([]byte(""), "yaml")
	require.NoError(t, err)

	assert.Equal(t, DefaultListen, cfg.Server.Listen)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout.Duration)
	assert.Equal(t, "file", cfg.Store.Driver)
	assert.Equal(t, "sessions.json", filepath.Base(cfg.Store.Path))
	assert.Equal(t, DefaultMarker, cfg.Gateway.Marker)
	assert.Equal(t, DefaultHistoryWindow, cfg.Gateway.HistoryWindow)
	assert.Equal(t, DefaultScanWorkers, cfg.Gateway.ScanWorkers)
}

func TestLoadFromBytesYAML(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("WAGATE_LISTEN", "")
	t.Setenv("WAGATE_STORE_PATH", "")
	t.Setenv("WAGATE_TEST_DIR", "/srv/wagate")

	cfg, err := LoadFromBytes([]byte(`
server:
  listen: 127.0.0.1:9000
  read_timeout: 3s
  allowed_origins: ["https://example.com"]
store:
  driver: sqlite
  path: ${WAGATE_TEST_DIR}/sessions.db
client:
  data_dir: ${WAGATE_TEST_DIR:-/tmp}/devices
gateway:
  marker: /join
  history_window: 20
logging:
  level: debug
  format:
    preset: json
`), "yaml")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Listen)
	assert.Equal(t, 3*time.Second, cfg.Server.ReadTimeout.Duration)
	assert.Equal(t, []string{"https://example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/srv/wagate/sessions.db", cfg.Store.Path)
	assert.Equal(t, "/srv/wagate/devices", cfg.Client.DataDir)
	assert.Equal(t, "/join", cfg.Gateway.Marker)
	assert.Equal(t, 20, cfg.Gateway.HistoryWindow)

	type loggingSection struct {
		Level  string `yaml:"level"`
		Format struct {
			Preset string `yaml:"preset"`
		} `yaml:"format"`
	}
	var logCfg loggingSection
	require.NoError(t, cfg.UnmarshalExtension("logging", &logCfg))
	assert.Equal(t, "debug", logCfg.Level)
	assert.Equal(t, "json", logCfg.Format.Preset)

	var missing loggingSection
	require.NoError(t, cfg.UnmarshalExtension("absent", &missing))
	assert.Empty(t, missing.Level)
}

func TestLoadFromBytesTOML(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("WAGATE_LISTEN", "")
	t.Setenv("WAGATE_STORE_PATH", "")

	cfg, err := LoadFromBytes([]byte(`
[server]
listen = ":7000"
write_timeout = "30s"

[gateway]
scan_workers = 2
`), "toml")
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Listen)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout.Duration)
	assert.Equal(t, 2, cfg.Gateway.ScanWorkers)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WAGATE_LISTEN", "")
	t.Setenv("WAGATE_STORE_PATH", "/data/s.json")
	t.Setenv("PORT", "8123")

	cfg, err := LoadFromBytes([]byte("server:\n  listen: :9999\n"), "yaml")
	require.NoError(t, err)
	assert.Equal(t, ":8123", cfg.Server.Listen)
	assert.Equal(t, "/data/s.json", cfg.Store.Path)

	t.Setenv("WAGATE_LISTEN", "0.0.0.0:1")
	cfg = Default()
	assert.Equal(t, "0.0.0.0:1", cfg.Server.Listen)
}

func TestSchemaRejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown store driver", "store:\n  driver: redis\n"},
		{"unknown server key", "server:\n  port: 80\n"},
		{"bad duration", "server:\n  read_timeout: soon\n"},
		{"zero workers", "gateway:\n  scan_workers: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.yaml), "yaml")
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrCodeConfigInvalid))
		})
	}
}

func TestValidateHistoryLimit(t *testing.T) {
	cfg := Default()
	cfg.Client.HistoryLimit = 10
	cfg.Gateway.HistoryWindow = 50
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigInvalid))
}

func TestFindConfigFile(t *testing.T) {
	t.Setenv("WAGATE_HOME", t.TempDir())
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	_, err := FindConfigFile(nested)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigNotFound))

	path := filepath.Join(root, "wagate.toml")
	require.NoError(t, os.WriteFile(path, []byte("[store]\ndriver = \"file\"\n"), 0644))

	found, err := FindConfigFile(nested)
	require.NoError(t, err)
	assert.Equal(t, path, found)

	cfg, err := Load(found)
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.Store.Driver)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.True(t, errors.Is(err, errors.ErrCodeConfigNotFound))
}

func TestGenerateSchema(t *testing.T) {
	doc, err := GenerateSchema()
	require.NoError(t, err)
	assert.Contains(t, string(doc), `"recover_corrupt"`)
	assert.Contains(t, string(doc), `"scan_workers"`)
	assert.NotContains(t, string(doc), `"Extensions"`)
}
