package backends

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"mcpql/internal/config"
	"mcpql/internal/datasource"
	"mcpql/internal/dbclient"
	"mcpql/internal/domain"
)

// databaseSource passes queries through to an external database via the
// dbclient connector layer (SQLite, MySQL, Postgres, or MongoDB).
type databaseSource struct {
	datasource.StateTracker

	cfg    config.DatabaseConfig
	logger *slog.Logger

	mu   sync.Mutex
	conn dbclient.Connector
}

func newDatabaseSource(cfg config.DatabaseConfig, logger *slog.Logger) *databaseSource {
	return &databaseSource{
		StateTracker: datasource.NewStateTracker("database"),
		cfg:          cfg,
		logger:       logger.With("source", "database", "driver", cfg.Driver),
	}
}

func (s *databaseSource) ID() string          { return "database" }
func (s *databaseSource) DisplayName() string { return "Database" }
func (s *databaseSource) QueryLanguage() string {
	if s.cfg.Driver == "mongodb" {
		return "mongodb"
	}
	return "sql"
}
func (s *databaseSource) DefaultLimit() int { return 100 }

func (s *databaseSource) ConnectionInfo() string {
	if s.cfg.Driver == "" {
		return "not configured"
	}
	return fmt.Sprintf("%s://%s/%s", s.cfg.Driver, s.cfg.Host, s.cfg.Database)
}

func (s *databaseSource) Connect(ctx context.Context) error {
	if s.cfg.Driver == "" {
		s.SetState(datasource.StateError)
		return fmt.Errorf("database driver is not configured")
	}
	s.SetState(datasource.StateConnecting)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		conn, err := dbclient.New(dbclient.Config{
			Driver:   s.cfg.Driver,
			Host:     s.cfg.Host,
			Port:     s.cfg.Port,
			Database: s.cfg.Database,
			Username: s.cfg.Username,
			Password: s.cfg.Password,
			SSLMode:  s.cfg.SSLMode,
		})
		if err != nil {
			s.SetState(datasource.StateError)
			return err
		}
		s.conn = conn
	}
	if err := s.conn.Ping(ctx); err != nil {
		s.SetState(datasource.StateError)
		return fmt.Errorf("ping database: %w", err)
	}
	s.SetState(datasource.StateConnected)
	return nil
}

func (s *databaseSource) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.SetState(datasource.StateDisconnected)
	return nil
}

func (s *databaseSource) Ping(ctx context.Context) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	return conn.Ping(ctx)
}

func (s *databaseSource) ExecuteQuery(ctx context.Context, req *domain.QueryRequest) (*domain.TabularResult, error) {
	if s.State() != datasource.StateConnected {
		if err := s.Connect(ctx); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	limit := req.Limit
	if limit <= 0 {
		limit = s.DefaultLimit()
	}

	res, err := conn.Execute(ctx, req.Query, limit)
	if err != nil {
		return nil, err
	}
	return domain.NewTabularResult(res.Columns, res.Rows), nil
}

var sqlReadPrefixes = []string{"SELECT", "WITH", "SHOW", "DESCRIBE", "EXPLAIN", "PRAGMA"}

func (s *databaseSource) CanHandleQuery(text string) bool {
	trimmed := strings.TrimSpace(text)
	if s.cfg.Driver == "mongodb" {
		var mq struct {
			Collection string `json:"collection"`
		}
		return json.Unmarshal([]byte(trimmed), &mq) == nil && mq.Collection != ""
	}
	upper := strings.ToUpper(trimmed)
	for _, prefix := range sqlReadPrefixes {
		if strings.HasPrefix(upper, prefix) && !wiqlRe.MatchString(text) {
			return true
		}
	}
	return false
}

func (s *databaseSource) ValidateQuery(text string) []string {
	var errs []string
	if strings.TrimSpace(text) == "" {
		errs = append(errs, "query is empty")
		return errs
	}
	if s.cfg.Driver == "mongodb" {
		if !json.Valid([]byte(text)) {
			errs = append(errs, "mongo queries must be JSON documents")
		}
		return errs
	}
	if !s.CanHandleQuery(text) {
		errs = append(errs, "only read queries are supported (SELECT, WITH, SHOW, DESCRIBE, EXPLAIN, PRAGMA)")
	}
	return errs
}

func (s *databaseSource) FormatQuery(text string) (string, error) {
	if s.cfg.Driver == "mongodb" {
		var v any
		if err := json.Unmarshal([]byte(text), &v); err != nil {
			return "", fmt.Errorf("not a JSON query: %w", err)
		}
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
	return strings.TrimSpace(text), nil
}

func (s *databaseSource) Introspect(ctx context.Context) (*datasource.Schema, error) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("not connected")
	}
	tables, err := conn.Introspect(ctx)
	if err != nil {
		return nil, err
	}
	schema := &datasource.Schema{}
	for _, t := range tables {
		schema.Entities = append(schema.Entities, datasource.Entity{Name: t.Name, Columns: t.Columns})
	}
	return schema, nil
}

func (s *databaseSource) Close() error {
	return s.Disconnect(context.Background())
}
