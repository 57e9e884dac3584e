// Package config loads wagate.yml (or wagate.toml), validates it against the
// generated schema and applies defaults and environment overrides.
package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/grovetools/wagate/errors"
	"github.com/grovetools/wagate/pkg/paths"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// configNames lists the file names searched for, in order.
var configNames = []string{
	"wagate.yml",
	"wagate.yaml",
	"wagate.toml",
	".wagate.yml",
	".wagate.yaml",
}

// Default returns a configuration with every default applied and environment
// overrides honored. It is used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	cfg.applyEnvOverrides()
	return cfg
}

// Load reads and parses a configuration file. The format is chosen from the extension.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}
	cfg, err := LoadFromBytes(data, formatFor(path))
	if err != nil {
		if ge, ok := err.(*errors.GatewayError); ok {
			return nil, ge.WithDetail("path", path)
		}
		return nil, err
	}
	return cfg, nil
}

// LoadDefault finds the configuration file starting from the working directory
// and loads it. It returns a CONFIG_NOT_FOUND error when there is none.
func LoadDefault() (*Config, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to get current directory")
	}
	path, err := FindConfigFile(cwd)
	if err != nil {
		return nil, "", err
	}
	cfg, err := Load(path)
	return cfg, path, err
}

// LoadOrDefault loads the file at path, or the discovered file when path is
// empty, falling back to Default when no file exists.
func LoadOrDefault(path string) (*Config, string, error) {
	if path != "" {
		cfg, err := Load(path)
		return cfg, path, err
	}
	cfg, found, err := LoadDefault()
	if errors.Is(err, errors.ErrCodeConfigNotFound) {
		return Default(), "", nil
	}
	return cfg, found, err
}

// LoadFromBytes parses configuration from a byte array. format is "yaml" or "toml".
func LoadFromBytes(data []byte, format string) (*Config, error) {
	expanded := []byte(expandEnvVars(string(data)))

	raw := map[string]interface{}{}
	var err error
	if format == "toml" {
		err = toml.Unmarshal(expanded, &raw)
	} else {
		err = yaml.Unmarshal(expanded, &raw)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse configuration")
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}

	validator, err := NewSchemaValidator()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to create validator")
	}
	if err := validator.Validate(raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "schema validation failed")
	}

	// Both formats decode through YAML so extensions and durations behave the same.
	normalized, err := yaml.Marshal(raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to normalize configuration")
	}
	var config Config
	if err := yaml.Unmarshal(normalized, &config); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to decode configuration")
	}

	config.SetDefaults()
	config.applyEnvOverrides()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// FindConfigFile searches for a configuration file with the following precedence:
// 1. startDir up to the filesystem root
// 2. the wagate config directory (paths.ConfigDir)
func FindConfigFile(startDir string) (string, error) {
	dir := startDir
	for {
		if path := firstExisting(dir); path != "" {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if configDir := paths.ConfigDir(); configDir != "" {
		if path := firstExisting(configDir); path != "" {
			return path, nil
		}
	}

	return "", errors.ConfigNotFound(startDir).WithDetail("searchPath", startDir)
}

func firstExisting(dir string) string {
	for _, name := range configNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

func formatFor(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return "toml"
	}
	return "yaml"
}

// expandEnvVars replaces ${VAR} with environment variable values.
// ${VAR:-default} falls back to default when VAR is unset or empty.
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		varName := envVarRegex.FindStringSubmatch(match)[1]
		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]
		defaultValue := ""
		if len(parts) > 1 {
			defaultValue = parts[1]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// applyEnvOverrides lets the environment win over the file. PORT is honored
// for deployments that only set a port.
func (c *Config) applyEnvOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Listen = ":" + port
	}
	if listen := os.Getenv("WAGATE_LISTEN"); listen != "" {
		c.Server.Listen = listen
	}
	if storePath := os.Getenv("WAGATE_STORE_PATH"); storePath != "" {
		c.Store.Path = storePath
	}
}
