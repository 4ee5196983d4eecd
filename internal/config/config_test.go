package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
storage:
  database_path: ./data/docs.db
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("host default = %q", cfg.Server.Host)
	}
	if cfg.Producer.Dimensions != 384 {
		t.Errorf("dimensions default = %d", cfg.Producer.Dimensions)
	}
	if cfg.Coordinator.Workers != 4 {
		t.Errorf("workers default = %d", cfg.Coordinator.Workers)
	}
	if cfg.Search.DefaultLimit != 10 || cfg.Search.MaxLimit != 100 {
		t.Errorf("search defaults = %+v", cfg.Search)
	}
	want := filepath.Join(dir, "data/docs.db")
	if cfg.Storage.DatabasePath != want {
		t.Errorf("database_path = %q, want %q", cfg.Storage.DatabasePath, want)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config")
	}
}

func TestApplyDefaultsExtensions(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)
	if len(cfg.Corpus.Extensions) == 0 {
		t.Error("extensions default not applied")
	}
}
