package dbclient

import (
	_ "modernc.org/sqlite"
)

// newSQLiteConnector opens a local SQLite file. WAL mode with a busy
// timeout keeps concurrent readers happy.
func newSQLiteConnector(cfg Config) (*sqlConnector, error) {
	dsn := cfg.Host + "?_journal_mode=WAL&_busy_timeout=5000"
	return newSQLConnector("sqlite", dsn)
}
