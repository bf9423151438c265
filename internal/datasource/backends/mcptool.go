package backends

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"mcpql/internal/config"
	"mcpql/internal/datasource"
	"mcpql/internal/domain"
	"mcpql/internal/mcpql"
	"mcpql/internal/normalize"
)

// ErrAwaitingPayload signals that the backend has no cached result for a
// query and the caller should re-invoke the tool and resubmit its raw
// JSON payload through SubmitPayload.
var ErrAwaitingPayload = errors.New("no cached result yet — invoke the tool and resubmit the raw JSON payload")

// mcpToolSource is the generic tool-invocation backend. With a configured
// server command it spawns an MCP stdio client and calls tools directly;
// without one it runs in payload-resubmission mode, serving raw JSON the
// caller obtained out of band.
type mcpToolSource struct {
	datasource.StateTracker

	cfg    config.MCPToolConfig
	logger *slog.Logger

	mu     sync.Mutex
	client *client.Client
	cache  map[string]string // query fingerprint → raw JSON payload
}

func newMCPToolSource(cfg config.MCPToolConfig, logger *slog.Logger) *mcpToolSource {
	return &mcpToolSource{
		StateTracker: datasource.NewStateTracker("mcptool"),
		cfg:          cfg,
		logger:       logger.With("source", "mcptool"),
		cache:        map[string]string{},
	}
}

func (s *mcpToolSource) ID() string            { return "mcptool" }
func (s *mcpToolSource) DisplayName() string   { return "MCP Tools" }
func (s *mcpToolSource) QueryLanguage() string { return "mcpql" }
func (s *mcpToolSource) DefaultLimit() int     { return 100 }

func (s *mcpToolSource) ConnectionInfo() string {
	if s.cfg.Command == "" {
		return "payload mode (no server configured)"
	}
	return s.cfg.Command + " " + strings.Join(s.cfg.Args, " ")
}

func (s *mcpToolSource) Connect(ctx context.Context) error {
	if s.cfg.Command == "" {
		// payload mode needs no process; stay formally connected
		s.SetState(datasource.StateConnected)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return nil
	}
	s.SetState(datasource.StateConnecting)

	c, err := client.NewStdioMCPClient(s.cfg.Command, s.cfg.Env, s.cfg.Args...)
	if err != nil {
		s.SetState(datasource.StateError)
		return fmt.Errorf("start MCP server: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "mcpql", Version: "1.0.0"}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		c.Close()
		s.SetState(datasource.StateError)
		return fmt.Errorf("initialize MCP session: %w", err)
	}

	s.client = c
	s.SetState(datasource.StateConnected)
	s.logger.Info("MCP server started", "command", s.cfg.Command)
	return nil
}

func (s *mcpToolSource) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
	s.SetState(datasource.StateDisconnected)
	return nil
}

func (s *mcpToolSource) ExecuteQuery(ctx context.Context, req *domain.QueryRequest) (*domain.TabularResult, error) {
	q, err := mcpql.Parse(req.Query)
	if err != nil {
		return nil, err
	}

	if s.State() != datasource.StateConnected {
		if err := s.Connect(ctx); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	c := s.client
	s.mu.Unlock()

	if c == nil {
		// payload mode: serve the resubmitted result or ask for one
		s.mu.Lock()
		raw, ok := s.cache[fingerprint(q)]
		s.mu.Unlock()
		if !ok {
			return nil, ErrAwaitingPayload
		}
		return normalize.ToTable([]byte(raw)), nil
	}

	callReq := mcp.CallToolRequest{}
	callReq.Params.Name = q.Call
	callReq.Params.Arguments = typedArguments(q.Params)

	res, err := c.CallTool(ctx, callReq)
	if err != nil {
		return nil, fmt.Errorf("call tool %q: %w", q.Call, err)
	}

	raw := contentText(res.Content)
	if res.IsError {
		return nil, fmt.Errorf("tool %q failed: %s", q.Call, raw)
	}

	s.mu.Lock()
	s.cache[fingerprint(q)] = raw
	s.mu.Unlock()

	if json.Valid([]byte(raw)) {
		return normalize.ToTable([]byte(raw)), nil
	}
	// non-JSON tool output still becomes a one-cell table
	return domain.NewTabularResult([]string{"value"}, [][]string{{raw}}), nil
}

// SubmitPayload stores a caller-supplied raw JSON payload for a query and
// returns its normalized table. This completes the two-step exchange
// started by ErrAwaitingPayload.
func (s *mcpToolSource) SubmitPayload(queryText, raw string) (*domain.TabularResult, error) {
	q, err := mcpql.Parse(queryText)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cache[fingerprint(q)] = raw
	s.mu.Unlock()
	return normalize.ToTable([]byte(raw)), nil
}

// fingerprint keys the result cache by the canonical invocation only —
// two spellings of one call share a cache slot, operator chains don't
// split it.
func fingerprint(q *mcpql.Query) string {
	inv := &mcpql.Query{Backend: q.Backend, Call: q.Call, Params: q.Params}
	sum := sha256.Sum256([]byte(mcpql.Format(inv)))
	return hex.EncodeToString(sum[:])
}

// typedArguments converts literal parameter text into JSON-typed tool
// arguments: numbers and booleans become typed, everything else stays a
// string.
func typedArguments(params []mcpql.Param) map[string]any {
	args := make(map[string]any, len(params))
	for _, p := range params {
		switch {
		case p.Value == "true":
			args[p.Key] = true
		case p.Value == "false":
			args[p.Key] = false
		default:
			if n, err := strconv.ParseFloat(p.Value, 64); err == nil && p.Value != "" {
				args[p.Key] = n
			} else {
				args[p.Key] = p.Value
			}
		}
	}
	return args
}

func contentText(content []mcp.Content) string {
	var parts []string
	for _, c := range content {
		switch t := c.(type) {
		case mcp.TextContent:
			parts = append(parts, t.Text)
		case *mcp.TextContent:
			parts = append(parts, t.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func (s *mcpToolSource) CanHandleQuery(text string) bool {
	return mcpql.LooksLikeMcpql(text)
}

func (s *mcpToolSource) ValidateQuery(text string) []string {
	return mcpql.ValidateText(text)
}

func (s *mcpToolSource) FormatQuery(text string) (string, error) {
	return mcpql.FormatText(text)
}

// Introspect lists the connected server's tools as entities.
func (s *mcpToolSource) Introspect(ctx context.Context) (*datasource.Schema, error) {
	s.mu.Lock()
	c := s.client
	s.mu.Unlock()
	if c == nil {
		return nil, fmt.Errorf("no MCP server connected")
	}

	res, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	schema := &datasource.Schema{}
	for _, tool := range res.Tools {
		entity := datasource.Entity{Name: tool.Name}
		for prop := range tool.InputSchema.Properties {
			entity.Columns = append(entity.Columns, prop)
		}
		schema.Entities = append(schema.Entities, entity)
	}
	return schema, nil
}

func (s *mcpToolSource) Examples() string {
	return strings.Join([]string{
		"// call a tool, then shape the result client-side",
		`github | list_issues(owner="ms", state="open") | where comments > 5 | sort by comments desc | take 10`,
	}, "\n")
}

func (s *mcpToolSource) Close() error {
	return s.Disconnect(context.Background())
}
