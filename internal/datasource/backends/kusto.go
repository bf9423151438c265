package backends

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"mcpql/internal/config"
	"mcpql/internal/datasource"
	"mcpql/internal/domain"
	"mcpql/internal/mcpql"
)

// kustoSource executes KQL against a cluster's v2 REST query endpoint.
type kustoSource struct {
	datasource.StateTracker

	cfg    config.KustoConfig
	httpc  *http.Client
	logger *slog.Logger
}

func newKustoSource(cfg config.KustoConfig, logger *slog.Logger) *kustoSource {
	return &kustoSource{
		StateTracker: datasource.NewStateTracker("kusto"),
		cfg:          cfg,
		httpc:        &http.Client{Timeout: 60 * time.Second},
		logger:       logger.With("source", "kusto"),
	}
}

func (s *kustoSource) ID() string            { return "kusto" }
func (s *kustoSource) DisplayName() string   { return "Kusto Cluster" }
func (s *kustoSource) QueryLanguage() string { return "kql" }
func (s *kustoSource) DefaultLimit() int     { return 1000 }

func (s *kustoSource) ConnectionInfo() string {
	if s.cfg.Cluster == "" {
		return "not configured"
	}
	return s.cfg.Cluster + "/" + s.cfg.Database
}

func (s *kustoSource) Connect(ctx context.Context) error {
	if s.cfg.Cluster == "" {
		s.SetState(datasource.StateError)
		return fmt.Errorf("kusto cluster URL is not configured")
	}
	s.SetState(datasource.StateConnecting)
	if err := s.Ping(ctx); err != nil {
		s.SetState(datasource.StateError)
		return err
	}
	s.SetState(datasource.StateConnected)
	return nil
}

func (s *kustoSource) Disconnect(ctx context.Context) error {
	// HTTP is stateless; dropping the state is all there is to do
	s.SetState(datasource.StateDisconnected)
	return nil
}

// Ping probes the cluster without running a query.
func (s *kustoSource) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.Cluster, nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	resp, err := s.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("reach cluster: %w", err)
	}
	resp.Body.Close()
	return nil
}

// kustoFrame is one frame of the v2 REST response stream.
type kustoFrame struct {
	FrameType string `json:"FrameType"`
	TableKind string `json:"TableKind"`
	Columns   []struct {
		ColumnName string `json:"ColumnName"`
		ColumnType string `json:"ColumnType"`
	} `json:"Columns"`
	Rows [][]any `json:"Rows"`
}

func (s *kustoSource) ExecuteQuery(ctx context.Context, req *domain.QueryRequest) (*domain.TabularResult, error) {
	cluster := req.Connection
	if cluster == "" {
		cluster = s.cfg.Cluster
	}
	if cluster == "" {
		return nil, fmt.Errorf("no cluster address configured")
	}
	database := req.Database
	if database == "" {
		database = s.cfg.Database
	}

	if req.TimeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutSec)*time.Second)
		defer cancel()
	}

	body, err := json.Marshal(map[string]string{"db": database, "csl": req.Query})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(cluster, "/")+"/v2/rest/query", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := s.httpc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var buf bytes.Buffer
		buf.ReadFrom(resp.Body)
		return nil, fmt.Errorf("cluster returned %s: %s", resp.Status, strings.TrimSpace(buf.String()))
	}

	var frames []kustoFrame
	if err := json.NewDecoder(resp.Body).Decode(&frames); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return framesToTable(frames, req.Limit)
}

// framesToTable picks the primary result frame out of the response stream.
func framesToTable(frames []kustoFrame, limit int) (*domain.TabularResult, error) {
	for _, frame := range frames {
		if frame.FrameType != "DataTable" || frame.TableKind != "PrimaryResult" {
			continue
		}
		columns := make([]string, len(frame.Columns))
		for i, c := range frame.Columns {
			columns[i] = c.ColumnName
		}
		rows := make([][]string, 0, len(frame.Rows))
		for _, raw := range frame.Rows {
			if limit > 0 && len(rows) >= limit {
				break
			}
			row := make([]string, len(columns))
			for i := range columns {
				if i < len(raw) {
					row[i] = anyToCell(raw[i])
				}
			}
			rows = append(rows, row)
		}
		return domain.NewTabularResult(columns, rows), nil
	}
	return nil, fmt.Errorf("response contained no primary result")
}

func anyToCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case time.Time:
		return x.Format(time.RFC3339)
	case bool:
		if x {
			return "true"
		}
		return "false"
	default:
		raw, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(raw)
	}
}

var kqlOperatorRe = regexp.MustCompile(`(?i)\|\s*(where|summarize|project|extend|take|top|limit|order|sort|count|distinct|join|render)\b`)

// CanHandleQuery sniffs KQL: piped operator keywords without an MCPQL
// invocation head.
func (s *kustoSource) CanHandleQuery(text string) bool {
	if mcpql.LooksLikeMcpql(text) {
		return false
	}
	return kqlOperatorRe.MatchString(text)
}

func (s *kustoSource) ValidateQuery(text string) []string {
	var errs []string
	if strings.TrimSpace(text) == "" {
		errs = append(errs, "query is empty")
	}
	if strings.Count(text, "\"")%2 != 0 {
		errs = append(errs, "unbalanced double quotes")
	}
	return errs
}

// FormatQuery puts each piped KQL stage on its own line.
func (s *kustoSource) FormatQuery(text string) (string, error) {
	parts := strings.Split(text, "|")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += "\n| " + p
	}
	return out, nil
}

// ViewerURL deep-links the query into the cluster's web explorer.
func (s *kustoSource) ViewerURL(query string) (string, error) {
	if s.cfg.Cluster == "" {
		return "", fmt.Errorf("no cluster configured")
	}
	u, err := url.Parse(s.cfg.Cluster)
	if err != nil {
		return "", fmt.Errorf("bad cluster URL: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(query))
	return fmt.Sprintf("https://dataexplorer.azure.com/clusters/%s/databases/%s?query=%s",
		u.Host, url.PathEscape(s.cfg.Database), url.QueryEscape(encoded)), nil
}

func (s *kustoSource) Examples() string {
	return strings.Join([]string{
		"// events in the last hour",
		"Events | where Timestamp > ago(1h) | take 100",
		"",
		"// error count by source",
		"Events | where Level == \"Error\" | summarize count() by Source",
	}, "\n")
}

func (s *kustoSource) Close() error {
	s.SetState(datasource.StateDisconnected)
	return nil
}
