// Package config holds all latus configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"latus/internal/logging"
)

// Config is the single source of truth for a node's configuration,
// stored as YAML in the application directory.
type Config struct {
	// NodeID identifies this machine in the shared nodedb folder.
	// Generated once by `latus init` and never changed afterwards;
	// the per-node event database is named after it.
	NodeID string `yaml:"node_id"`

	// LatusFolder is the local folder being synchronized.
	LatusFolder string `yaml:"latus_folder"`

	// CloudRoot is the locally mounted folder replicated by the cloud
	// service. The hidden metadata tree lives underneath it.
	CloudRoot string `yaml:"cloud_root"`

	// KeyPath points at the armored encryption key file.
	KeyPath string `yaml:"key_path"`

	// Logging configures diagnostic file logging.
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig configures the categorized diagnostic logs.
// This is developer-facing output; the CLI --verbose flag is independent.
type LoggingConfig struct {
	Enabled    bool            `yaml:"enabled"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	Categories map[string]bool `yaml:"categories,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Enabled: false,
			Level:   "info",
		},
	}
}

// Load reads the configuration from path. A missing file yields the
// defaults rather than an error so first runs work without `init`.
// Environment overrides (LATUS_*) are applied after the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks that everything sync needs is present.
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return fmt.Errorf("node_id is not set (run `latus init`)")
	}
	if c.LatusFolder == "" {
		return fmt.Errorf("latus_folder is not set")
	}
	if c.CloudRoot == "" {
		return fmt.Errorf("cloud_root is not set")
	}
	if c.KeyPath == "" {
		return fmt.Errorf("key_path is not set")
	}
	return nil
}

// LoggingSettings converts the config section into logging settings.
func (c *Config) LoggingSettings() logging.Settings {
	return logging.Settings{
		Enabled:    c.Logging.Enabled,
		Level:      c.Logging.Level,
		Categories: c.Logging.Categories,
	}
}

// applyEnvOverrides lets environment variables win over the file,
// which keeps tests and one-off runs away from the real config.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LATUS_NODE_ID"); v != "" {
		c.NodeID = v
	}
	if v := os.Getenv("LATUS_FOLDER"); v != "" {
		c.LatusFolder = v
	}
	if v := os.Getenv("LATUS_CLOUD_ROOT"); v != "" {
		c.CloudRoot = v
	}
	if v := os.Getenv("LATUS_KEY_PATH"); v != "" {
		c.KeyPath = v
	}
	if v := os.Getenv("LATUS_LOG_LEVEL"); v != "" {
		c.Logging.Enabled = true
		c.Logging.Level = v
	}
}
