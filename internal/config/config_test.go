package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("GIAOAN_CONFIG_DIR", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.History.Backend != "sqlite" {
		t.Errorf("History.Backend = %q, want sqlite", cfg.History.Backend)
	}
	if cfg.Model != "" {
		t.Errorf("Model = %q, want empty (provider default)", cfg.Model)
	}
}

func TestLoadReadsYAML(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GIAOAN_CONFIG_DIR", dir)

	yaml := "model: gemini-2.5-pro\ntimeout_seconds: 60\nhistory:\n  backend: json\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Model != "gemini-2.5-pro" {
		t.Errorf("Model = %q", cfg.Model)
	}
	if cfg.TimeoutSec != 60 {
		t.Errorf("TimeoutSec = %d", cfg.TimeoutSec)
	}
	if cfg.History.Backend != "json" {
		t.Errorf("History.Backend = %q", cfg.History.Backend)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GIAOAN_CONFIG_DIR", dir)

	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("model: from-file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GIAOAN_MODEL", "from-env")
	t.Setenv("GIAOAN_VERBOSE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Model != "from-env" {
		t.Errorf("Model = %q, want the environment value", cfg.Model)
	}
	if !cfg.Verbose {
		t.Error("Verbose should follow GIAOAN_VERBOSE")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GIAOAN_CONFIG_DIR", dir)

	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(":\n :bad"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(); err == nil {
		t.Error("Load() should reject malformed YAML")
	}
}

func TestHistoryPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GIAOAN_CONFIG_DIR", dir)

	cfg := Default()
	path, err := cfg.HistoryPath()
	if err != nil {
		t.Fatalf("HistoryPath() error = %v", err)
	}
	if path != filepath.Join(dir, "history.db") {
		t.Errorf("HistoryPath() = %q", path)
	}

	cfg.History.Backend = "json"
	path, _ = cfg.HistoryPath()
	if path != filepath.Join(dir, "history.json") {
		t.Errorf("HistoryPath() with json backend = %q", path)
	}

	cfg.History.Path = "/tmp/custom.db"
	if path, _ = cfg.HistoryPath(); path != "/tmp/custom.db" {
		t.Errorf("explicit path not honored: %q", path)
	}
}
