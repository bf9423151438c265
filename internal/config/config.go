// Package config loads the YAML configuration describing the registered
// data sources and runtime defaults, and can watch the file for edits.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	DefaultRowLimit int           `yaml:"defaultRowLimit"`
	History         HistoryConfig `yaml:"history"`
	Health          HealthConfig  `yaml:"health"`
	API             APIConfig     `yaml:"api"`
	Sources         SourcesConfig `yaml:"sources"`
}

// HistoryConfig controls the local query-history database.
type HistoryConfig struct {
	Path string `yaml:"path"` // empty disables history
	Keep int    `yaml:"keep"` // rows retained by pruning
}

// HealthConfig controls the connection health monitor.
type HealthConfig struct {
	Schedule string `yaml:"schedule"` // cron expression, empty disables
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// SourcesConfig holds per-backend settings. A backend with Disabled=true
// is registered but excluded from listing and sniffing.
type SourcesConfig struct {
	Kusto     KustoConfig     `yaml:"kusto"`
	WorkItems WorkItemsConfig `yaml:"workitems"`
	MailStore MailStoreConfig `yaml:"mailstore"`
	MCPTool   MCPToolConfig   `yaml:"mcptool"`
	Database  DatabaseConfig  `yaml:"database"`
}

// KustoConfig targets a cloud analytics cluster.
type KustoConfig struct {
	Disabled bool   `yaml:"disabled"`
	Cluster  string `yaml:"cluster"`
	Database string `yaml:"database"`
}

// WorkItemsConfig targets a work-item tracker organization.
type WorkItemsConfig struct {
	Disabled bool   `yaml:"disabled"`
	OrgURL   string `yaml:"orgUrl"`
	Project  string `yaml:"project"`
	PAT      string `yaml:"pat"`
}

// MailStoreConfig points at the local mailbox database file.
type MailStoreConfig struct {
	Disabled bool   `yaml:"disabled"`
	Path     string `yaml:"path"`
}

// MCPToolConfig describes the MCP server process for the generic
// tool-invocation backend. An empty command leaves the backend in
// payload-resubmission mode.
type MCPToolConfig struct {
	Disabled bool     `yaml:"disabled"`
	Command  string   `yaml:"command"`
	Args     []string `yaml:"args"`
	Env      []string `yaml:"env"`
}

// DatabaseConfig configures the relational/document passthrough backend.
type DatabaseConfig struct {
	Disabled bool   `yaml:"disabled"`
	Driver   string `yaml:"driver"` // sqlite | mysql | postgres | mongodb
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		DefaultRowLimit: 100,
		History: HistoryConfig{
			Path: filepath.Join(home, ".local", "share", "mcpql", "history.db"),
			Keep: 500,
		},
		Health: HealthConfig{Schedule: "@every 1m"},
		API:    APIConfig{Addr: "127.0.0.1:8480"},
	}
}

// Load reads the YAML file at path, layered over the defaults. A missing
// file is not an error — the defaults come back as-is.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.DefaultRowLimit <= 0 {
		cfg.DefaultRowLimit = 100
	}
	return cfg, nil
}
