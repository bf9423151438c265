// Package api exposes the query pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"mcpql/internal/config"
	"mcpql/internal/domain"
	"mcpql/internal/service"
	"mcpql/internal/storage"
)

// Server wraps the HTTP surface around the query service.
type Server struct {
	query  *service.QueryService
	cfg    config.APIConfig
	logger *slog.Logger
	http   *http.Server
}

// NewServer builds the server; call ListenAndServe to start it.
func NewServer(query *service.QueryService, cfg config.APIConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		query:  query,
		cfg:    cfg,
		logger: logger.With("component", "api"),
	}
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router assembles the chi route tree. Exposed separately so tests can
// drive it with httptest.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/query", s.handleQuery)
		r.Post("/query/cancel", s.handleCancel)
		r.Post("/query/payload", s.handlePayload)
		r.Get("/datasources", s.handleDataSources)
		r.Post("/datasources/{id}/switch", s.handleSwitch)
		r.Post("/validate", s.handleValidate)
		r.Post("/format", s.handleFormat)
		r.Get("/history", s.handleHistory)
	})
	return r
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP API listening", "addr", s.cfg.Addr)
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req domain.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, domain.FailureResult("invalid request body: "+err.Error()))
		return
	}
	result := s.query.Execute(r.Context(), &req)
	// failures still ship as 200 — the result shape carries success/error
	s.respondJSON(w, http.StatusOK, result)
}

type payloadRequest struct {
	Type    string `json:"type,omitempty"`
	Query   string `json:"query"`
	Payload string `json:"payload"`
}

// handlePayload completes a payload-mode exchange: the client ran the tool
// itself and posts the raw JSON back for the query it belongs to.
func (s *Server) handlePayload(w http.ResponseWriter, r *http.Request) {
	var req payloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, domain.FailureResult("invalid request body: "+err.Error()))
		return
	}
	result := s.query.SubmitPayload(req.Type, req.Query, req.Payload)
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.query.Cancel()
	s.respondJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

func (s *Server) handleDataSources(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.query.GetDataSources())
}

func (s *Server) handleSwitch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.query.SwitchTo(r.Context(), id); err != nil {
		s.respondJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"current": id})
}

type textRequest struct {
	Type  string `json:"type,omitempty"`
	Query string `json:"query"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	errs := s.query.Validate(req.Type, req.Query)
	if errs == nil {
		errs = []string{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"valid": len(errs) == 0, "errors": errs})
}

func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	formatted, err := s.query.Format(req.Type, req.Query)
	if err != nil {
		s.respondJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"formatted": formatted})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	entries, err := s.query.History(limit)
	if err != nil {
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if entries == nil {
		entries = []storage.HistoryEntry{}
	}
	s.respondJSON(w, http.StatusOK, entries)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encode response failed", "error", err)
	}
}
