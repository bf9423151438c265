// Package mcpserver exposes the query pipeline as MCP tools, so AI agents
// can run, validate, and format queries over stdio.
package mcpserver

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"mcpql/internal/service"
)

// Server is the MCP server around the query service.
type Server struct {
	mcp    *server.MCPServer
	query  *service.QueryService
	logger *slog.Logger
}

// New creates and configures the server with all tools registered.
func New(query *service.QueryService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		query:  query,
		logger: logger.With("component", "mcp"),
	}

	s.mcp = server.NewMCPServer(
		"mcpql",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerQueryTools()
	s.registerSourceTools()

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.logger.Info("starting stdio server")
	return server.ServeStdio(s.mcp)
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

// getFloat reads a numeric argument with a fallback.
func getFloat(args map[string]any, key string, fallback float64) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return fallback
}
