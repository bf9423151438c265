package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerSourceTools() {
	s.mcp.AddTool(mcp.NewTool("list_data_sources",
		mcp.WithDescription("List the enabled data sources"),
	), s.handleListDataSources)

	s.mcp.AddTool(mcp.NewTool("switch_data_source",
		mcp.WithDescription("Make a data source the active one; it becomes the routing fallback"),
		mcp.WithString("id", mcp.Description("Data source id"), mcp.Required()),
	), s.handleSwitchDataSource)

	s.mcp.AddTool(mcp.NewTool("query_history",
		mcp.WithDescription("List recently executed queries with their outcomes"),
		mcp.WithNumber("limit", mcp.Description("Number of entries (default 20)")),
	), s.handleQueryHistory)
}

func (s *Server) handleListDataSources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.query.GetDataSources())
}

func (s *Server) handleSwitchDataSource(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return nil, fmt.Errorf("id is required")
	}
	if err := s.query.SwitchTo(ctx, id); err != nil {
		return nil, fmt.Errorf("switch: %w", err)
	}
	return textResult(fmt.Sprintf("current data source set to %s", id)), nil
}

func (s *Server) handleQueryHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := int(getFloat(req.GetArguments(), "limit", 20))
	entries, err := s.query.History(limit)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return jsonResult(entries)
}
