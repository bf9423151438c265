// Package dbclient abstracts interaction with external databases behind
// one small connector contract, with implementations for SQLite, MySQL,
// Postgres, and MongoDB.
package dbclient

import (
	"context"
	"fmt"
)

// Config describes one database target.
type Config struct {
	Driver   string // sqlite | mysql | postgres | mongodb
	Host     string // host, file path (sqlite), or full mongodb:// URI
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string
}

// Result is one executed query's rows, every cell stringified.
type Result struct {
	Columns []string
	Rows    [][]string
}

// TableInfo describes a table/collection for introspection.
type TableInfo struct {
	Name    string
	Columns []string
}

// Connector abstracts interaction with an external database.
type Connector interface {
	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// Execute runs a read query and returns up to limit rows.
	Execute(ctx context.Context, query string, limit int) (*Result, error)

	// Introspect lists tables/collections with their columns.
	Introspect(ctx context.Context) ([]TableInfo, error)

	// Close closes the connection.
	Close() error
}

// New creates a Connector for the configured driver.
func New(cfg Config) (Connector, error) {
	switch cfg.Driver {
	case "sqlite":
		return newSQLiteConnector(cfg)
	case "mysql":
		return newSQLConnector("mysql", buildMySQLDSN(cfg))
	case "postgres":
		return newSQLConnector("postgres", buildPostgresDSN(cfg))
	case "mongodb":
		return newMongoConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}
}
