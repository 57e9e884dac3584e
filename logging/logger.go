// Package logging provides component-scoped logrus loggers configured from
// the `logging` section of wagate.yml and the WAGATE_LOG_* environment variables.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/grovetools/wagate/config"
	"github.com/grovetools/wagate/pkg/paths"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex

	// active is nil until Configure is called or the first logger loads wagate.yml.
	active *Config

	// sinks shares one open file per path across components.
	sinks = make(map[string]*os.File)
)

// Configure sets the configuration for loggers created afterwards and applies
// the resulting level to loggers that already exist.
func Configure(cfg Config) {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	active = &cfg
	level := resolveLevel(cfg)
	for _, entry := range loggers {
		entry.Logger.SetLevel(level)
	}
}

// ConfigFrom extracts the logging section from a loaded configuration.
func ConfigFrom(cfg *config.Config) Config {
	var logCfg Config
	if cfg == nil {
		return logCfg
	}
	if err := cfg.UnmarshalExtension("logging", &logCfg); err != nil {
		logrus.Warnf("Failed to parse 'logging' config: %v", err)
	}
	return logCfg
}

// SetLevel changes the level of every logger. WAGATE_LOG_LEVEL still wins.
func SetLevel(levelStr string) error {
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		return err
	}
	if env := os.Getenv("WAGATE_LOG_LEVEL"); env != "" {
		if envLevel, err := logrus.ParseLevel(env); err == nil {
			level = envLevel
		}
	}

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if active != nil {
		active.Level = level.String()
	}
	for _, entry := range loggers {
		entry.Logger.SetLevel(level)
	}
	return nil
}

// NewLogger creates and returns a pre-configured logger for a specific component.
// Loggers are cached per component.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	if active == nil {
		cfg, _, err := config.LoadDefault()
		logCfg := Config{}
		if err == nil {
			logCfg = ConfigFrom(cfg)
		}
		active = &logCfg
	}
	logCfg := *active

	logger := logrus.New()
	logger.SetLevel(resolveLevel(logCfg))

	if os.Getenv("WAGATE_LOG_CALLER") == "true" || logCfg.ReportCaller {
		logger.SetReportCaller(true)
	}

	switch logCfg.Format.Preset {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "simple":
		logger.SetFormatter(&TextFormatter{Config: FormatConfig{
			DisableTimestamp: true,
			DisableComponent: true,
		}})
	default:
		logger.SetFormatter(&TextFormatter{Config: logCfg.Format})
	}

	var writers []io.Writer
	if file := openSink(logCfg, logger); file != nil {
		writers = append(writers, file)
	}
	if shouldLogToStderr(logCfg, logger.GetLevel()) {
		writers = append(writers, GetGlobalOutput())
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}

	entry := logger.WithField("component", component)
	loggers[component] = entry
	return entry
}

// FilePath returns the log file the current configuration writes to, or "" if
// the file sink is disabled.
func FilePath(cfg Config) string {
	if cfg.File.Disabled {
		return ""
	}
	if cfg.File.Path != "" {
		return expandPath(cfg.File.Path)
	}
	if paths.StateDir() == "" {
		return ""
	}
	return filepath.Join(paths.LogDir(), fmt.Sprintf("wagate-%s.log", time.Now().Format("2006-01-02")))
}

func resolveLevel(cfg Config) logrus.Level {
	levelStr := "info"
	if env := os.Getenv("WAGATE_LOG_LEVEL"); env != "" {
		levelStr = env
	} else if cfg.Level != "" {
		levelStr = cfg.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// openSink must be called with loggersMu held.
func openSink(cfg Config, logger *logrus.Logger) *os.File {
	path := FilePath(cfg)
	if path == "" {
		return nil
	}
	if file, ok := sinks[path]; ok {
		return file
	}

	explicit := cfg.File.Path != ""
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		if explicit {
			logger.Warnf("Failed to create log directory %s: %v", filepath.Dir(path), err)
		}
		return nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		if explicit {
			logger.Warnf("Failed to open log file %s: %v", path, err)
		}
		return nil
	}
	sinks[path] = file
	return file
}

func shouldLogToStderr(cfg Config, level logrus.Level) bool {
	switch cfg.Format.StructuredToStderr {
	case "always":
		return true
	case "never":
		return false
	default:
		// auto: structured logs go to stderr when debugging or when stderr is not
		// an interactive terminal (service managers, pipes, CI).
		isInteractive := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
		return level >= logrus.DebugLevel || !isInteractive
	}
}

// expandPath expands tilde in file paths
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
