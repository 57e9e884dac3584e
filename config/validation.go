package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/grovetools/wagate/errors"
)

// Validate checks the configuration after defaults are applied.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "file", "sqlite":
	default:
		return errors.ConfigInvalid(fmt.Sprintf("unknown store driver %q (want file or sqlite)", c.Store.Driver)).
			WithDetail("driver", c.Store.Driver)
	}

	if c.Store.Path == "" {
		return errors.ConfigInvalid("store.path cannot be empty")
	}
	if c.Client.DataDir == "" {
		return errors.ConfigInvalid("client.data_dir cannot be empty")
	}

	if c.Gateway.HistoryWindow < 1 {
		return errors.ConfigInvalid("gateway.history_window must be at least 1")
	}
	if c.Gateway.ScanWorkers < 1 {
		return errors.ConfigInvalid("gateway.scan_workers must be at least 1")
	}
	if c.Client.HistoryLimit < c.Gateway.HistoryWindow {
		return errors.ConfigInvalid("client.history_limit must not be smaller than gateway.history_window").
			WithDetail("history_limit", c.Client.HistoryLimit).
			WithDetail("history_window", c.Gateway.HistoryWindow)
	}

	return nil
}

// expandPath expands a leading tilde.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
