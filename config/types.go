package config

import (
	"fmt"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config is the root of wagate.yml.
type Config struct {
	Server  ServerConfig  `yaml:"server,omitempty" jsonschema:"description=HTTP and notification channel listener"`
	Store   StoreConfig   `yaml:"store,omitempty" jsonschema:"description=Where session records are persisted"`
	Client  ClientConfig  `yaml:"client,omitempty" jsonschema:"description=Messaging client settings shared by every session"`
	Gateway GatewayConfig `yaml:"gateway,omitempty" jsonschema:"description=Messaging gateway behaviour"`

	// Extensions captures all other top-level keys, e.g. logging.
	Extensions map[string]interface{} `yaml:",inline" jsonschema:"-"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Listen          string   `yaml:"listen,omitempty" jsonschema:"description=Listen address (default :8000; PORT and WAGATE_LISTEN override it)"`
	ReadTimeout     Duration `yaml:"read_timeout,omitempty" jsonschema:"description=Maximum duration for reading a request"`
	WriteTimeout    Duration `yaml:"write_timeout,omitempty" jsonschema:"description=Maximum duration before timing out a response write"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout,omitempty" jsonschema:"description=Grace period for in-flight requests on shutdown"`
	AllowedOrigins  []string `yaml:"allowed_origins,omitempty" jsonschema:"description=Origins allowed by CORS and the websocket upgrader (empty allows all)"`
}

// StoreConfig selects the session store backend.
type StoreConfig struct {
	Driver         string `yaml:"driver,omitempty" jsonschema:"enum=file,enum=sqlite,description=Store backend"`
	Path           string `yaml:"path,omitempty" jsonschema:"description=Path of the session collection (JSON file or SQLite database)"`
	RecoverCorrupt bool   `yaml:"recover_corrupt,omitempty" jsonschema:"description=Reset an unreadable store to empty instead of refusing to start"`
}

// ClientConfig configures every messaging client the gateway creates.
type ClientConfig struct {
	DataDir          string   `yaml:"data_dir,omitempty" jsonschema:"description=Root directory of the per-session credential stores"`
	HistoryLimit     int      `yaml:"history_limit,omitempty" jsonschema:"minimum=1,description=Messages buffered per chat for history lookups"`
	RetryMaxInterval Duration `yaml:"retry_max_interval,omitempty" jsonschema:"description=Upper bound of the reconnect backoff"`
}

// GatewayConfig tunes the messaging operations.
type GatewayConfig struct {
	Marker        string `yaml:"marker,omitempty" jsonschema:"description=Message body that makes a group qualify for /list-group"`
	HistoryWindow int    `yaml:"history_window,omitempty" jsonschema:"minimum=1,description=Number of recent messages inspected per group"`
	ScanWorkers   int    `yaml:"scan_workers,omitempty" jsonschema:"minimum=1,description=Concurrent group history fetches"`
}

// Duration is a time.Duration written as a Go duration string ("10s", "2m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// MarshalJSON renders the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", d.String())), nil
}

// JSONSchema describes the duration for the generated schema.
func (Duration) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
		Description: "Go duration string, e.g. 10s or 1m30s",
	}
}

// UnmarshalExtension decodes the configuration for a given extension key from
// the loaded wagate.yml into the provided target struct. The target must be a pointer.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		// The target simply stays zero-valued.
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
