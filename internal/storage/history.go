package storage

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// HistoryEntry is one executed query with its outcome.
type HistoryEntry struct {
	ID         string    `json:"id"`
	Query      string    `json:"query"`
	SourceID   string    `json:"sourceId"`
	Success    bool      `json:"success"`
	RowCount   int       `json:"rowCount"`
	DurationMs int64     `json:"durationMs"`
	Error      string    `json:"error,omitempty"`
	ExecutedAt time.Time `json:"executedAt"`
}

// HistoryStore manages the query history table.
type HistoryStore struct {
	db *DB
}

// NewHistoryStore creates a new HistoryStore.
func NewHistoryStore(db *DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Record inserts an entry, assigning an id and timestamp when missing.
func (s *HistoryStore) Record(e *HistoryEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.ExecutedAt.IsZero() {
		e.ExecutedAt = time.Now()
	}
	success := 0
	if e.Success {
		success = 1
	}
	_, err := s.db.Conn().Exec(
		`INSERT INTO query_history (id, query, source_id, success, row_count, duration_ms, error, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Query, e.SourceID, success, e.RowCount, e.DurationMs, e.Error, e.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first.
func (s *HistoryStore) List(limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Conn().Query(
		`SELECT id, query, source_id, success, row_count, duration_ms, error, executed_at
		 FROM query_history ORDER BY executed_at DESC, id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var success int
		if err := rows.Scan(&e.ID, &e.Query, &e.SourceID, &success, &e.RowCount,
			&e.DurationMs, &e.Error, &e.ExecutedAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		e.Success = success == 1
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes everything but the newest keep entries.
func (s *HistoryStore) Prune(keep int) error {
	if keep <= 0 {
		return nil
	}
	_, err := s.db.Conn().Exec(
		`DELETE FROM query_history WHERE id NOT IN (
			SELECT id FROM query_history ORDER BY executed_at DESC, id LIMIT ?
		)`, keep,
	)
	if err != nil {
		return fmt.Errorf("prune history: %w", err)
	}
	return nil
}
