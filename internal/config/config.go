// Package config loads the CLI configuration from a YAML file under the
// user config directory, with GIAOAN_* environment overrides on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

const fileName = "config.yaml"

// History selects where generated plans are persisted.
type History struct {
	Backend string `yaml:"backend"` // "sqlite" (default) or "json"
	Path    string `yaml:"path"`
}

// Config mirrors config.yaml. Zero values for model, endpoint and timeout
// mean "use the provider defaults".
type Config struct {
	Model        string  `yaml:"model"`
	Endpoint     string  `yaml:"endpoint"`
	TimeoutSec   int     `yaml:"timeout_seconds"`
	MaxDocuments int     `yaml:"max_documents"`
	Verbose      bool    `yaml:"verbose"`
	History      History `yaml:"history"`
}

func Default() Config {
	return Config{
		History: History{Backend: "sqlite"},
	}
}

// Dir returns the directory holding config.yaml, keys.json and the default
// history database. GIAOAN_CONFIG_DIR overrides it, mainly for tests.
func Dir() (string, error) {
	if dir := os.Getenv("GIAOAN_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "giaoan"), nil
}

// Load reads config.yaml when present and applies environment overrides.
// A missing file is not an error.
func Load() (Config, error) {
	cfg := Default()

	dir, err := Dir()
	if err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(filepath.Join(dir, fileName))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", fileName, err)
		}
	case !os.IsNotExist(err):
		return cfg, err
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("GIAOAN_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("GIAOAN_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv("GIAOAN_TIMEOUT"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil {
			cfg.TimeoutSec = sec
		}
	}
	if v := os.Getenv("GIAOAN_MAX_DOCUMENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxDocuments = n
		}
	}
	if v := os.Getenv("GIAOAN_HISTORY_BACKEND"); v != "" {
		cfg.History.Backend = v
	}
	if v := os.Getenv("GIAOAN_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}
	if v := os.Getenv("GIAOAN_VERBOSE"); v != "" {
		if verbose, err := strconv.ParseBool(v); err == nil {
			cfg.Verbose = verbose
		}
	}
}

// HistoryPath resolves where the selected history backend stores its data.
func (c Config) HistoryPath() (string, error) {
	if c.History.Path != "" {
		return c.History.Path, nil
	}

	dir, err := Dir()
	if err != nil {
		return "", err
	}
	name := "history.db"
	if c.History.Backend == "json" {
		name = "history.json"
	}
	return filepath.Join(dir, name), nil
}
