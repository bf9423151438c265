// Package service orchestrates end-to-end query handling: request
// validation, backend resolution, execution with timing and cancellation,
// client-side post-processing, and history recording.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"mcpql/internal/datasource"
	"mcpql/internal/domain"
	"mcpql/internal/engine"
	"mcpql/internal/mcpql"
	"mcpql/internal/storage"
)

// DefaultTargets carries the configured fallback connection targets for
// backends that dial a remote address.
type DefaultTargets struct {
	Kusto     string
	WorkItems string
}

// QueryService runs the pipeline for one process. It holds a single
// "current query" cancellation handle: starting a new query replaces it,
// and Cancel stops whichever query is tracked right now, independent of
// the caller's own context.
type QueryService struct {
	registry     *datasource.Registry
	history      *storage.HistoryStore // nil disables history
	historyKeep  int
	defaultLimit int
	targets      DefaultTargets
	logger       *slog.Logger

	mu      sync.Mutex
	current *inflight
}

// inflight tracks one running query's cancel handle. Cleanup compares
// identity so an older query finishing late cannot clear a newer query's
// handle.
type inflight struct {
	cancel context.CancelFunc
}

// NewQueryService wires the orchestrator. history may be nil.
func NewQueryService(registry *datasource.Registry, history *storage.HistoryStore, historyKeep, defaultLimit int, targets DefaultTargets, logger *slog.Logger) *QueryService {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultLimit <= 0 {
		defaultLimit = 100
	}
	return &QueryService{
		registry:     registry,
		history:      history,
		historyKeep:  historyKeep,
		defaultLimit: defaultLimit,
		targets:      targets,
		logger:       logger.With("component", "query-service"),
	}
}

// connectionRequired reports whether the request targets a backend that
// dials a remote address but supplies none, with no configured fallback.
// This is a request-shape check and runs before backend resolution.
func (s *QueryService) connectionRequired(req *domain.QueryRequest) bool {
	if req.Connection != "" {
		return false
	}
	switch strings.ToLower(req.SourceType) {
	case "kusto":
		return s.targets.Kusto == ""
	case "workitems":
		return s.targets.WorkItems == ""
	default:
		return false
	}
}

// Execute runs one query end to end. Every failure — validation, backend,
// cancellation — comes back as a failure-shaped table, never a panic or a
// naked error.
func (s *QueryService) Execute(ctx context.Context, req *domain.QueryRequest) *domain.TabularResult {
	if req == nil || strings.TrimSpace(req.Query) == "" {
		return domain.FailureResult("query text is empty")
	}
	if s.connectionRequired(req) {
		return domain.FailureResult("a connection target is required for this data source")
	}

	ds, err := s.registry.GetForQuery(req.SourceType, req.Query)
	if err != nil {
		return domain.FailureResult(err.Error())
	}
	if ds == nil {
		return domain.FailureResult("No data source available")
	}

	effective := *req
	if effective.Limit <= 0 {
		effective.Limit = ds.DefaultLimit()
	}
	if effective.Limit <= 0 {
		effective.Limit = s.defaultLimit
	}

	execCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	handle := &inflight{cancel: cancel}
	s.mu.Lock()
	s.current = handle
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		// only clear our own handle; a newer query may have replaced it
		if s.current == handle {
			s.current = nil
		}
		s.mu.Unlock()
	}()

	start := time.Now()
	result, execErr := ds.ExecuteQuery(execCtx, &effective)

	if execCtx.Err() != nil || errors.Is(execErr, context.Canceled) {
		s.logger.Info("query cancelled", "source", ds.ID())
		res := domain.FailureResult("query was cancelled")
		s.record(req, ds.ID(), res, time.Since(start))
		return res
	}
	if execErr != nil {
		res := domain.FailureResult(execErr.Error())
		s.record(req, ds.ID(), res, time.Since(start))
		return res
	}

	result = s.postProcess(req.Query, result)

	// stamp our own measurement — the backend's internal timing is not trusted
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	s.record(req, ds.ID(), result, time.Since(start))
	s.logger.Info("query executed", "source", ds.ID(), "rows", result.RowCount, "ms", result.ExecutionTimeMs)
	return result
}

// SubmitPayload completes a payload-mode exchange: the backend asked the
// caller to invoke the tool itself and resubmit the raw JSON. The payload
// is cached under the query's fingerprint, normalized, and run through the
// same operator chain Execute would apply.
func (s *QueryService) SubmitPayload(typeHint, queryText, raw string) *domain.TabularResult {
	if strings.TrimSpace(queryText) == "" {
		return domain.FailureResult("query text is empty")
	}
	ds, err := s.registry.GetForQuery(typeHint, queryText)
	if err != nil {
		return domain.FailureResult(err.Error())
	}
	if ds == nil {
		return domain.FailureResult("No data source available")
	}
	sub, ok := ds.(datasource.PayloadSubmitter)
	if !ok {
		return domain.FailureResult(fmt.Sprintf("data source %q does not accept raw payloads", ds.ID()))
	}

	start := time.Now()
	result, err := sub.SubmitPayload(queryText, raw)
	if err != nil {
		return domain.FailureResult(err.Error())
	}
	result = s.postProcess(queryText, result)
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	s.record(&domain.QueryRequest{Query: queryText, SourceType: typeHint}, ds.ID(), result, time.Since(start))
	return result
}

// postProcess applies the MCPQL operator chain when the query text parses
// as MCPQL. Backend-native languages (KQL, WIQL, SQL) don't parse and
// pass through untouched.
func (s *QueryService) postProcess(queryText string, result *domain.TabularResult) *domain.TabularResult {
	if !result.Success {
		return result
	}
	q, err := mcpql.Parse(queryText)
	if err != nil || len(q.Operators) == 0 {
		return result
	}
	return engine.Apply(result, q.Operators)
}

func (s *QueryService) record(req *domain.QueryRequest, sourceID string, res *domain.TabularResult, elapsed time.Duration) {
	if s.history == nil {
		return
	}
	entry := &storage.HistoryEntry{
		Query:      req.Query,
		SourceID:   sourceID,
		Success:    res.Success,
		RowCount:   res.RowCount,
		DurationMs: elapsed.Milliseconds(),
		Error:      res.Error,
	}
	if err := s.history.Record(entry); err != nil {
		s.logger.Warn("record history failed", "error", err)
		return
	}
	if s.historyKeep > 0 {
		if err := s.history.Prune(s.historyKeep); err != nil {
			s.logger.Warn("prune history failed", "error", err)
		}
	}
}

// Cancel stops the currently tracked in-flight query, if any. It works
// out of band: the canceller does not need the token the query started
// with.
func (s *QueryService) Cancel() {
	s.mu.Lock()
	handle := s.current
	s.mu.Unlock()
	if handle != nil {
		handle.cancel()
	}
}

// GetDataSources lists the enabled backends as display descriptors.
func (s *QueryService) GetDataSources() []domain.DataSourceDescriptor {
	regs := s.registry.GetAll()
	out := make([]domain.DataSourceDescriptor, 0, len(regs))
	for _, r := range regs {
		out = append(out, r.Descriptor())
	}
	return out
}

// SwitchTo changes the active backend.
func (s *QueryService) SwitchTo(ctx context.Context, id string) error {
	return s.registry.SwitchTo(ctx, id)
}

// Validate resolves a backend for the text and runs its syntax check.
func (s *QueryService) Validate(typeHint, text string) []string {
	ds, err := s.registry.GetForQuery(typeHint, text)
	if err != nil {
		return []string{err.Error()}
	}
	if ds == nil {
		return []string{"No data source available"}
	}
	return ds.ValidateQuery(text)
}

// Format resolves a backend for the text and pretty-prints the query.
func (s *QueryService) Format(typeHint, text string) (string, error) {
	ds, err := s.registry.GetForQuery(typeHint, text)
	if err != nil {
		return "", err
	}
	if ds == nil {
		return "", errors.New("No data source available")
	}
	return ds.FormatQuery(text)
}

// History returns the most recent executed queries, newest first.
func (s *QueryService) History(limit int) ([]storage.HistoryEntry, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.List(limit)
}
