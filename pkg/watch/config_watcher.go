// Package watch reloads the configuration file when it changes on disk.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/grovetools/wagate/config"
	"github.com/grovetools/wagate/logging"
	"github.com/sirupsen/logrus"
)

const defaultDebounce = 200 * time.Millisecond

// ConfigWatcher watches one configuration file and calls onReload with the
// freshly loaded configuration after every change. Invalid files are logged
// and skipped; the previous configuration stays in effect.
type ConfigWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	target   string
	debounce time.Duration
	onReload func(*config.Config)
	logger   *logrus.Entry

	mu    sync.Mutex
	timer *time.Timer
}

// NewConfigWatcher watches the directory of path, and the directory of its
// target when path is a symlink, since fsnotify does not follow links and
// editors often replace files instead of writing them in place.
func NewConfigWatcher(path string, debounce time.Duration, onReload func(*config.Config)) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	logger := logging.NewLogger("config-watcher")

	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, err
	}

	target := abs
	if info, err := os.Lstat(abs); err == nil && info.Mode()&os.ModeSymlink != 0 {
		if resolved, err := filepath.EvalSymlinks(abs); err == nil {
			target = resolved
			if filepath.Dir(resolved) != filepath.Dir(abs) {
				if err := watcher.Add(filepath.Dir(resolved)); err != nil {
					logger.WithError(err).Warnf("Failed to watch symlink target dir %s", filepath.Dir(resolved))
				}
			}
		} else {
			logger.WithError(err).Warnf("Failed to resolve symlink %s", abs)
		}
	}

	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &ConfigWatcher{
		watcher:  watcher,
		path:     abs,
		target:   target,
		debounce: debounce,
		onReload: onReload,
		logger:   logger,
	}, nil
}

// Start processes file events. It blocks until the context is cancelled.
func (w *ConfigWatcher) Start(ctx context.Context) {
	defer w.stopTimer()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if event.Name != w.path && event.Name != w.target {
				continue
			}
			w.schedule()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("Watcher error: %v", err)
		case <-ctx.Done():
			w.watcher.Close()
			return
		}
	}
}

// schedule coalesces bursts of writes into one reload after the debounce window.
func (w *ConfigWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *ConfigWatcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *ConfigWatcher) reload() {
	cfg, err := config.Load(w.path)
	if err != nil {
		w.logger.WithError(err).Warn("Ignoring invalid configuration change")
		return
	}
	w.logger.Infof("Config changed: %s", filepath.Base(w.path))
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

// Close stops the watcher and releases resources.
func (w *ConfigWatcher) Close() error {
	w.stopTimer()
	return w.watcher.Close()
}

// ApplyLogLevel is an onReload callback that applies the logging level of
// the new configuration. It is the only setting that changes without restart.
func ApplyLogLevel(cfg *config.Config) {
	logCfg := logging.ConfigFrom(cfg)
	if logCfg.Level == "" {
		return
	}
	if err := logging.SetLevel(logCfg.Level); err != nil {
		logging.NewLogger("config-watcher").WithError(err).Warn("Invalid log level in configuration")
	}
}
