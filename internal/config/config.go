package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the process configuration. Values come from the optional
// config file first, then environment variables override.
type Config struct {
	DBPath   string `yaml:"db_path"`
	LogLevel string `yaml:"log_level"`
}

// Load builds the configuration: defaults, then ~/.config/recall/config.yaml
// (or $RECALL_CONFIG) when present, then RECALL_* environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:   defaultDBPath(),
		LogLevel: "info",
	}

	if path := configFilePath(); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.DBPath = envStr("RECALL_DB_PATH", cfg.DBPath)
	cfg.LogLevel = envStr("RECALL_LOG_LEVEL", cfg.LogLevel)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug/info/warn/error, got %q", c.LogLevel)
	}
	return nil
}

// configFilePath returns $RECALL_CONFIG, or the per-user default location.
func configFilePath() string {
	if v := os.Getenv("RECALL_CONFIG"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "recall", "config.yaml")
}

// defaultDBPath is the fixed, well-known per-user database location. The
// file is the only persistence contract with earlier runs.
func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "recall.db"
	}
	return filepath.Join(home, ".recall", "recall.db")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
