package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/grovetools/wagate/pkg/paths"
)

const (
	DefaultListen        = ":8000"
	DefaultStoreDriver   = "file"
	DefaultMarker        = "/register"
	DefaultHistoryWindow = 50
	DefaultHistoryLimit  = 200
	DefaultScanWorkers   = 8
)

// SetDefaults fills every unset field.
func (c *Config) SetDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}
	if c.Server.ReadTimeout.Duration == 0 {
		c.Server.ReadTimeout.Duration = 15 * time.Second
	}
	if c.Server.WriteTimeout.Duration == 0 {
		c.Server.WriteTimeout.Duration = 60 * time.Second
	}
	if c.Server.ShutdownTimeout.Duration == 0 {
		c.Server.ShutdownTimeout.Duration = 5 * time.Second
	}

	if c.Store.Driver == "" {
		c.Store.Driver = DefaultStoreDriver
	}
	if c.Store.Path == "" {
		c.Store.Path = paths.StorePath()
		if c.Store.Driver == "sqlite" {
			c.Store.Path = strings.TrimSuffix(c.Store.Path, filepath.Ext(c.Store.Path)) + ".db"
		}
	}
	c.Store.Path = expandPath(c.Store.Path)

	if c.Client.DataDir == "" {
		c.Client.DataDir = paths.DeviceDir()
	}
	c.Client.DataDir = expandPath(c.Client.DataDir)
	if c.Client.HistoryLimit == 0 {
		c.Client.HistoryLimit = DefaultHistoryLimit
	}
	if c.Client.RetryMaxInterval.Duration == 0 {
		c.Client.RetryMaxInterval.Duration = time.Minute
	}

	if c.Gateway.Marker == "" {
		c.Gateway.Marker = DefaultMarker
	}
	if c.Gateway.HistoryWindow == 0 {
		c.Gateway.HistoryWindow = DefaultHistoryWindow
	}
	if c.Gateway.ScanWorkers == 0 {
		c.Gateway.ScanWorkers = DefaultScanWorkers
	}
}
