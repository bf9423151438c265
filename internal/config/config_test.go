package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"mcpql/internal/config"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DefaultRowLimit != 100 {
		t.Errorf("default row limit = %d, want 100", cfg.DefaultRowLimit)
	}
	if cfg.Health.Schedule != "@every 1m" {
		t.Errorf("health schedule = %q", cfg.Health.Schedule)
	}
	if cfg.API.Addr != "127.0.0.1:8480" {
		t.Errorf("api addr = %q", cfg.API.Addr)
	}
}

func TestLoad_FileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
defaultRowLimit: 25
health:
  schedule: ""
sources:
  kusto:
    cluster: https://cluster.example
    database: Telemetry
  database:
    disabled: true
    driver: postgres
    host: db.example
    port: 5432
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DefaultRowLimit != 25 {
		t.Errorf("default row limit = %d, want 25", cfg.DefaultRowLimit)
	}
	if cfg.Health.Schedule != "" {
		t.Errorf("health schedule = %q, want disabled", cfg.Health.Schedule)
	}
	if cfg.Sources.Kusto.Cluster != "https://cluster.example" {
		t.Errorf("kusto cluster = %q", cfg.Sources.Kusto.Cluster)
	}
	if !cfg.Sources.Database.Disabled || cfg.Sources.Database.Port != 5432 {
		t.Errorf("database config = %+v", cfg.Sources.Database)
	}
	// untouched sections keep their defaults
	if cfg.History.Keep != 500 {
		t.Errorf("history keep = %d, want the default 500", cfg.History.Keep)
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("defaultRowLimit: [not a number"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := config.Load(path); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestLoad_NonPositiveLimitFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("defaultRowLimit: -5"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DefaultRowLimit != 100 {
		t.Errorf("default row limit = %d, want 100", cfg.DefaultRowLimit)
	}
}
