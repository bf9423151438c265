package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"mcpql/internal/domain"
)

func (s *Server) registerQueryTools() {
	s.mcp.AddTool(mcp.NewTool("execute_query",
		mcp.WithDescription("Run a query against a data source. MCPQL operator chains (where/project/take/sort/count/extend) are applied to the result."),
		mcp.WithString("query", mcp.Description("Query text (MCPQL, KQL, WIQL, or SQL)"), mcp.Required()),
		mcp.WithString("type", mcp.Description("Data source id to route to (optional; sniffed from the text otherwise)")),
		mcp.WithString("connection", mcp.Description("Connection target override (cluster URL, org URL, file path)")),
		mcp.WithString("database", mcp.Description("Database / project override")),
		mcp.WithNumber("limit", mcp.Description("Row limit (defaults to the backend's own limit)")),
	), s.handleExecuteQuery)

	s.mcp.AddTool(mcp.NewTool("submit_payload",
		mcp.WithDescription("Resubmit a raw JSON payload for a query whose backend asked for one ('no cached result yet'). The payload is normalized into a table and the query's operator chain is applied."),
		mcp.WithString("query", mcp.Description("The query text the payload answers"), mcp.Required()),
		mcp.WithString("payload", mcp.Description("Raw JSON obtained by invoking the tool out of band"), mcp.Required()),
		mcp.WithString("type", mcp.Description("Data source id (optional)")),
	), s.handleSubmitPayload)

	s.mcp.AddTool(mcp.NewTool("validate_query",
		mcp.WithDescription("Check a query's syntax without executing it"),
		mcp.WithString("query", mcp.Description("Query text"), mcp.Required()),
		mcp.WithString("type", mcp.Description("Data source id (optional)")),
	), s.handleValidateQuery)

	s.mcp.AddTool(mcp.NewTool("format_query",
		mcp.WithDescription("Pretty-print a query in its language's canonical form"),
		mcp.WithString("query", mcp.Description("Query text"), mcp.Required()),
		mcp.WithString("type", mcp.Description("Data source id (optional)")),
	), s.handleFormatQuery)
}

func (s *Server) handleExecuteQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	typeHint, _ := args["type"].(string)
	connection, _ := args["connection"].(string)
	database, _ := args["database"].(string)
	limit := int(getFloat(args, "limit", 0))

	result := s.query.Execute(ctx, &domain.QueryRequest{
		Query:      query,
		SourceType: typeHint,
		Connection: connection,
		Database:   database,
		Limit:      limit,
	})
	return jsonResult(result)
}

func (s *Server) handleSubmitPayload(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	payload := req.GetString("payload", "")
	if payload == "" {
		return nil, fmt.Errorf("payload is required")
	}
	typeHint := req.GetString("type", "")
	return jsonResult(s.query.SubmitPayload(typeHint, query, payload))
}

func (s *Server) handleValidateQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	typeHint := req.GetString("type", "")
	errs := s.query.Validate(typeHint, query)
	if len(errs) == 0 {
		return textResult("query is valid"), nil
	}
	return jsonResult(map[string]any{"valid": false, "errors": errs})
}

func (s *Server) handleFormatQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	typeHint := req.GetString("type", "")
	formatted, err := s.query.Format(typeHint, query)
	if err != nil {
		return nil, fmt.Errorf("format: %w", err)
	}
	return textResult(formatted), nil
}
