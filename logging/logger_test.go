package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reset(t *testing.T) {
	t.Helper()
	loggersMu.Lock()
	loggers = make(map[string]*logrus.Entry)
	active = nil
	loggersMu.Unlock()
	t.Cleanup(func() {
		loggersMu.Lock()
		loggers = make(map[string]*logrus.Entry)
		active = nil
		loggersMu.Unlock()
	})
}

func TestNewLoggerCachesPerComponent(t *testing.T) {
	reset(t)
	t.Setenv("WAGATE_HOME", t.TempDir())
	Configure(Config{})

	logger := NewLogger("test-component")
	require.NotNil(t, logger)
	assert.Equal(t, "test-component", logger.Data["component"])
	assert.Same(t, logger, NewLogger("test-component"))
	assert.NotSame(t, logger, NewLogger("other"))
}

func TestTextFormatter(t *testing.T) {
	tests := []struct {
		name    string
		config  FormatConfig
		level   logrus.Level
		data    logrus.Fields
		want    []string
		notWant []string
	}{
		{
			name:  "default",
			level: logrus.InfoLevel,
			data:  logrus.Fields{"component": "sessions", "id": "alice"},
			want:  []string{"2026-01-02 03:04:05", "[INFO]", "sessions", "hello", "id=alice"},
		},
		{
			name:    "no timestamp or component",
			config:  FormatConfig{DisableTimestamp: true, DisableComponent: true},
			level:   logrus.WarnLevel,
			data:    logrus.Fields{"component": "store"},
			want:    []string{"[WARN]", "hello"},
			notWant: []string{"2026-01-02", "store"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &TextFormatter{Config: tt.config}
			entry := &logrus.Entry{
				Time:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
				Level:   tt.level,
				Message: "hello",
				Data:    tt.data,
			}
			out, err := f.Format(entry)
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, string(out), w)
			}
			for _, nw := range tt.notWant {
				assert.NotContains(t, string(out), nw)
			}
			assert.True(t, strings.HasSuffix(string(out), "\n"))
		})
	}
}

func TestFormatterSortsFields(t *testing.T) {
	f := &TextFormatter{Config: FormatConfig{DisableTimestamp: true}}
	out, err := f.Format(&logrus.Entry{
		Level:   logrus.InfoLevel,
		Message: "m",
		Data:    logrus.Fields{"b": 2, "a": 1, "c": 3},
	})
	require.NoError(t, err)
	assert.Contains(t, string(out), "a=1 b=2 c=3")
}

func TestEnvironmentVariables(t *testing.T) {
	reset(t)
	t.Setenv("WAGATE_HOME", t.TempDir())
	t.Setenv("WAGATE_LOG_LEVEL", "debug")
	t.Setenv("WAGATE_LOG_CALLER", "true")
	Configure(Config{Level: "error"})

	logger := NewLogger("env-test")
	assert.Equal(t, logrus.DebugLevel, logger.Logger.Level)
	assert.True(t, logger.Logger.ReportCaller)
}

func TestSetLevelAppliesToExistingLoggers(t *testing.T) {
	reset(t)
	t.Setenv("WAGATE_HOME", t.TempDir())
	t.Setenv("WAGATE_LOG_LEVEL", "")
	Configure(Config{Level: "info"})

	a := NewLogger("a")
	b := NewLogger("b")
	require.NoError(t, SetLevel("warn"))
	assert.Equal(t, logrus.WarnLevel, a.Logger.Level)
	assert.Equal(t, logrus.WarnLevel, b.Logger.Level)
	assert.Equal(t, logrus.WarnLevel, NewLogger("c").Logger.Level)

	assert.Error(t, SetLevel("loud"))
}

func TestFileSinkAndStderr(t *testing.T) {
	reset(t)
	t.Setenv("WAGATE_LOG_LEVEL", "")
	path := filepath.Join(t.TempDir(), "logs", "wagate.log")

	var buf bytes.Buffer
	SetGlobalOutput(&buf)
	t.Cleanup(func() { SetGlobalOutput(os.Stderr) })

	Configure(Config{
		File:   FileSinkConfig{Path: path},
		Format: FormatConfig{Preset: "simple", StructuredToStderr: "always"},
	})

	NewLogger("sink").Info("written twice")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[INFO] written twice")
	assert.Contains(t, buf.String(), "[INFO] written twice")
}

func TestFilePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("WAGATE_HOME", home)

	assert.Empty(t, FilePath(Config{File: FileSinkConfig{Disabled: true}}))
	assert.Equal(t, "/var/log/w.log", FilePath(Config{File: FileSinkConfig{Path: "/var/log/w.log"}}))

	def := FilePath(Config{})
	assert.Equal(t, filepath.Join(home, "state", "logs"), filepath.Dir(def))
	assert.True(t, strings.HasPrefix(filepath.Base(def), "wagate-"))
}
