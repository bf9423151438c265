package backends

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"mcpql/internal/config"
	"mcpql/internal/datasource"
	"mcpql/internal/domain"
	"mcpql/internal/mcpql"
)

// mailStoreSource queries a local mailbox kept in a SQLite database. Its
// query language is MCPQL itself: the invocation names one of the calls
// below and the operator chain is applied downstream.
type mailStoreSource struct {
	datasource.StateTracker

	cfg    config.MailStoreConfig
	logger *slog.Logger

	mu sync.Mutex
	db *sql.DB
}

func newMailStoreSource(cfg config.MailStoreConfig, logger *slog.Logger) *mailStoreSource {
	return &mailStoreSource{
		StateTracker: datasource.NewStateTracker("mailstore"),
		cfg:          cfg,
		logger:       logger.With("source", "mailstore"),
	}
}

func (s *mailStoreSource) ID() string            { return "mailstore" }
func (s *mailStoreSource) DisplayName() string   { return "Local Mail" }
func (s *mailStoreSource) QueryLanguage() string { return "mcpql" }
func (s *mailStoreSource) DefaultLimit() int     { return 100 }

func (s *mailStoreSource) ConnectionInfo() string {
	if s.cfg.Path == "" {
		return "not configured"
	}
	return s.cfg.Path
}

func (s *mailStoreSource) Connect(ctx context.Context) error {
	if s.cfg.Path == "" {
		s.SetState(datasource.StateError)
		return fmt.Errorf("mailbox path is not configured")
	}
	s.SetState(datasource.StateConnecting)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		db, err := sql.Open("sqlite", s.cfg.Path+"?_journal_mode=WAL&_busy_timeout=5000")
		if err != nil {
			s.SetState(datasource.StateError)
			return fmt.Errorf("open mailbox: %w", err)
		}
		db.SetMaxOpenConns(1)
		s.db = db
	}
	if err := s.db.PingContext(ctx); err != nil {
		s.SetState(datasource.StateError)
		return fmt.Errorf("open mailbox: %w", err)
	}
	s.SetState(datasource.StateConnected)
	return nil
}

func (s *mailStoreSource) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
	s.SetState(datasource.StateDisconnected)
	return nil
}

func (s *mailStoreSource) Ping(ctx context.Context) error {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return fmt.Errorf("mailbox not open")
	}
	return db.PingContext(ctx)
}

func (s *mailStoreSource) ExecuteQuery(ctx context.Context, req *domain.QueryRequest) (*domain.TabularResult, error) {
	if s.State() != datasource.StateConnected {
		if err := s.Connect(ctx); err != nil {
			return nil, err
		}
	}

	q, err := mcpql.Parse(req.Query)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.DefaultLimit()
	}
	if v, ok := q.Param("limit"); ok {
		if n, convErr := strconv.Atoi(v); convErr == nil && n > 0 {
			limit = n
		}
	}

	switch q.Call {
	case "list_folders":
		return s.queryTable(ctx,
			`SELECT name, message_count, unread_count FROM folders ORDER BY name LIMIT ?`, limit)
	case "list_messages":
		folder, _ := q.Param("folder")
		if folder == "" {
			folder = "Inbox"
		}
		return s.queryTable(ctx,
			`SELECT m.id, m.sender, m.subject, m.sent_at, m.unread
			 FROM messages m JOIN folders f ON m.folder_id = f.id
			 WHERE f.name = ? ORDER BY m.sent_at DESC LIMIT ?`, folder, limit)
	case "search":
		text, ok := q.Param("text")
		if !ok {
			return nil, fmt.Errorf("search requires a text parameter")
		}
		pattern := "%" + text + "%"
		return s.queryTable(ctx,
			`SELECT m.id, f.name AS folder, m.sender, m.subject, m.sent_at
			 FROM messages m JOIN folders f ON m.folder_id = f.id
			 WHERE m.subject LIKE ? OR m.body LIKE ? OR m.sender LIKE ?
			 ORDER BY m.sent_at DESC LIMIT ?`, pattern, pattern, pattern, limit)
	case "unread":
		return s.queryTable(ctx,
			`SELECT m.id, f.name AS folder, m.sender, m.subject, m.sent_at
			 FROM messages m JOIN folders f ON m.folder_id = f.id
			 WHERE m.unread = 1 ORDER BY m.sent_at DESC LIMIT ?`, limit)
	case "get_message":
		id, ok := q.Param("id")
		if !ok {
			return nil, fmt.Errorf("get_message requires an id parameter")
		}
		return s.queryTable(ctx,
			`SELECT id, sender, recipient, subject, body, sent_at FROM messages WHERE id = ?`, id)
	default:
		return nil, fmt.Errorf("unknown mail call %q", q.Call)
	}
}

func (s *mailStoreSource) queryTable(ctx context.Context, query string, args ...any) (*domain.TabularResult, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("mailbox not open")
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query mailbox: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out [][]string
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		row := make([]string, len(cols))
		for i, v := range values {
			row[i] = anyToCell(v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return domain.NewTabularResult(cols, out), nil
}

var mailBackendNames = map[string]bool{"mail": true, "mailstore": true, "outlook": true}

func (s *mailStoreSource) CanHandleQuery(text string) bool {
	if !mcpql.LooksLikeMcpql(text) {
		return false
	}
	q, err := mcpql.Parse(text)
	if err != nil {
		return false
	}
	return mailBackendNames[strings.ToLower(q.Backend)]
}

func (s *mailStoreSource) ValidateQuery(text string) []string {
	return mcpql.ValidateText(text)
}

func (s *mailStoreSource) FormatQuery(text string) (string, error) {
	return mcpql.FormatText(text)
}

func (s *mailStoreSource) Introspect(ctx context.Context) (*datasource.Schema, error) {
	return &datasource.Schema{Entities: []datasource.Entity{
		{Name: "folders", Columns: []string{"id", "name", "message_count", "unread_count"}},
		{Name: "messages", Columns: []string{"id", "folder_id", "sender", "recipient", "subject", "body", "sent_at", "unread"}},
	}}, nil
}

func (s *mailStoreSource) Examples() string {
	return strings.Join([]string{
		"// newest unread mail",
		"mail | unread() | take 10",
		"",
		"// search, then narrow client-side",
		`mail | search(text="invoice") | where sender contains "billing" | sort by sent_at desc`,
	}, "\n")
}

func (s *mailStoreSource) Close() error {
	return s.Disconnect(context.Background())
}
