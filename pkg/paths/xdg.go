// Package paths resolves where wagate keeps its config, credentials and runtime state.
//
// Resolution order:
// 1. WAGATE_HOME (portable root) → $WAGATE_HOME/{config,data,state}
// 2. XDG env vars → $XDG_*_HOME/wagate
// 3. Platform defaults → ~/.config/wagate, ~/.local/share/wagate, ~/.local/state/wagate
package paths

import (
	"os"
	"path/filepath"
)

const appName = "wagate"

func baseDir(homeSub, xdgVar string, fallback ...string) string {
	if home := os.Getenv("WAGATE_HOME"); home != "" {
		return filepath.Join(home, homeSub)
	}
	if xdg := os.Getenv(xdgVar); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(append(append([]string{homeDir}, fallback...), appName)...)
	}
	return ""
}

// ConfigDir returns the directory searched for wagate.yml.
func ConfigDir() string {
	return baseDir("config", "XDG_CONFIG_HOME", ".config")
}

// DataDir returns the directory holding the session collection and per-id credential stores.
func DataDir() string {
	return baseDir("data", "XDG_DATA_HOME", ".local", "share")
}

// StateDir returns the directory for runtime state: pid file and logs.
func StateDir() string {
	return baseDir("state", "XDG_STATE_HOME", ".local", "state")
}

// LogDir returns the directory for log files.
func LogDir() string {
	return filepath.Join(StateDir(), "logs")
}

// PidFilePath returns the path to the gateway PID file.
func PidFilePath() string {
	return filepath.Join(StateDir(), "wagate.pid")
}

// StorePath returns the default location of the session collection.
func StorePath() string {
	return filepath.Join(DataDir(), "sessions.json")
}

// DeviceDir returns the default root for per-session credential stores.
func DeviceDir() string {
	return filepath.Join(DataDir(), "devices")
}

// EnsureDirs creates all wagate directories if they don't exist.
func EnsureDirs() error {
	if StateDir() == "" || DataDir() == "" {
		return nil
	}
	for _, dir := range []string{ConfigDir(), DataDir(), StateDir(), LogDir(), DeviceDir()} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
