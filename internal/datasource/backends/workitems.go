package backends

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"mcpql/internal/config"
	"mcpql/internal/datasource"
	"mcpql/internal/domain"
)

// workItemsSource runs WIQL queries against a work-item tracker's REST
// API: one call to resolve matching ids, a second to fetch their fields.
type workItemsSource struct {
	datasource.StateTracker

	cfg    config.WorkItemsConfig
	httpc  *http.Client
	logger *slog.Logger
}

func newWorkItemsSource(cfg config.WorkItemsConfig, logger *slog.Logger) *workItemsSource {
	return &workItemsSource{
		StateTracker: datasource.NewStateTracker("workitems"),
		cfg:          cfg,
		httpc:        &http.Client{Timeout: 30 * time.Second},
		logger:       logger.With("source", "workitems"),
	}
}

func (s *workItemsSource) ID() string            { return "workitems" }
func (s *workItemsSource) DisplayName() string   { return "Work Items" }
func (s *workItemsSource) QueryLanguage() string { return "wiql" }
func (s *workItemsSource) DefaultLimit() int     { return 200 }

func (s *workItemsSource) ConnectionInfo() string {
	if s.cfg.OrgURL == "" {
		return "not configured"
	}
	return s.cfg.OrgURL + "/" + s.cfg.Project
}

func (s *workItemsSource) Connect(ctx context.Context) error {
	if s.cfg.OrgURL == "" {
		s.SetState(datasource.StateError)
		return fmt.Errorf("work-item organization URL is not configured")
	}
	s.SetState(datasource.StateConnecting)
	if err := s.Ping(ctx); err != nil {
		s.SetState(datasource.StateError)
		return err
	}
	s.SetState(datasource.StateConnected)
	return nil
}

func (s *workItemsSource) Disconnect(ctx context.Context) error {
	s.SetState(datasource.StateDisconnected)
	return nil
}

func (s *workItemsSource) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(s.cfg.OrgURL, "/")+"/_apis/projects?api-version=7.0", nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	s.authorize(req)
	resp, err := s.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("reach organization: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("authentication failed (check the PAT)")
	}
	return nil
}

func (s *workItemsSource) authorize(req *http.Request) {
	if s.cfg.PAT != "" {
		req.SetBasicAuth("", s.cfg.PAT)
	}
}

// wiqlResponse is the id-resolution half of a WIQL query.
type wiqlResponse struct {
	Columns []struct {
		ReferenceName string `json:"referenceName"`
		Name          string `json:"name"`
	} `json:"columns"`
	WorkItems []struct {
		ID int `json:"id"`
	} `json:"workItems"`
}

type workItemBatch struct {
	Value []struct {
		ID     int            `json:"id"`
		Fields map[string]any `json:"fields"`
	} `json:"value"`
}

func (s *workItemsSource) ExecuteQuery(ctx context.Context, req *domain.QueryRequest) (*domain.TabularResult, error) {
	org := req.Connection
	if org == "" {
		org = s.cfg.OrgURL
	}
	if org == "" {
		return nil, fmt.Errorf("no organization URL configured")
	}
	org = strings.TrimRight(org, "/")
	project := req.Database
	if project == "" {
		project = s.cfg.Project
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.DefaultLimit()
	}

	// Phase 1: resolve matching ids
	body, _ := json.Marshal(map[string]string{"query": req.Query})
	wiqlURL := fmt.Sprintf("%s/%s/_apis/wit/wiql?api-version=7.0&$top=%d", org, project, limit)
	var wiql wiqlResponse
	if err := s.doJSON(ctx, http.MethodPost, wiqlURL, body, &wiql); err != nil {
		return nil, err
	}

	columns := []string{"id"}
	refs := make([]string, 0, len(wiql.Columns))
	for _, c := range wiql.Columns {
		if c.ReferenceName == "System.Id" {
			continue
		}
		columns = append(columns, c.Name)
		refs = append(refs, c.ReferenceName)
	}

	if len(wiql.WorkItems) == 0 {
		return domain.NewTabularResult(columns, nil), nil
	}

	// Phase 2: batch-fetch the selected fields
	ids := make([]string, 0, len(wiql.WorkItems))
	for i, wi := range wiql.WorkItems {
		if i >= limit {
			break
		}
		ids = append(ids, strconv.Itoa(wi.ID))
	}
	fetchURL := fmt.Sprintf("%s/_apis/wit/workitems?ids=%s&api-version=7.0",
		org, strings.Join(ids, ","))
	if len(refs) > 0 {
		fetchURL += "&fields=" + strings.Join(refs, ",")
	}
	var batch workItemBatch
	if err := s.doJSON(ctx, http.MethodGet, fetchURL, nil, &batch); err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(batch.Value))
	for _, item := range batch.Value {
		row := make([]string, len(columns))
		row[0] = strconv.Itoa(item.ID)
		for i, ref := range refs {
			row[i+1] = anyToCell(item.Fields[ref])
		}
		rows = append(rows, row)
	}
	return domain.NewTabularResult(columns, rows), nil
}

func (s *workItemsSource) doJSON(ctx context.Context, method, url string, body []byte, out any) error {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	s.authorize(req)

	resp, err := s.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("call tracker: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var buf bytes.Buffer
		buf.ReadFrom(resp.Body)
		return fmt.Errorf("tracker returned %s: %s", resp.Status, strings.TrimSpace(buf.String()))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var wiqlRe = regexp.MustCompile(`(?i)\bselect\b[\s\S]+\bfrom\s+workitems\b`)

func (s *workItemsSource) CanHandleQuery(text string) bool {
	return wiqlRe.MatchString(text)
}

func (s *workItemsSource) ValidateQuery(text string) []string {
	var errs []string
	if strings.TrimSpace(text) == "" {
		errs = append(errs, "query is empty")
	} else if !wiqlRe.MatchString(text) {
		errs = append(errs, "expected a WIQL query (SELECT ... FROM WorkItems)")
	}
	return errs
}

// FormatQuery breaks the main WIQL clauses onto their own lines.
func (s *workItemsSource) FormatQuery(text string) (string, error) {
	out := strings.Join(strings.Fields(text), " ")
	for _, kw := range []string{"FROM", "WHERE", "ORDER BY", "ASOF"} {
		re := regexp.MustCompile(`(?i)\s+` + strings.ReplaceAll(kw, " ", `\s+`) + `\s+`)
		out = re.ReplaceAllString(out, "\n"+kw+" ")
	}
	return out, nil
}

func (s *workItemsSource) Examples() string {
	return strings.Join([]string{
		"SELECT [System.Id], [System.Title], [System.State]",
		"FROM WorkItems",
		"WHERE [System.AssignedTo] = @Me AND [System.State] <> 'Closed'",
		"ORDER BY [System.ChangedDate] DESC",
	}, "\n")
}

func (s *workItemsSource) Close() error {
	s.SetState(datasource.StateDisconnected)
	return nil
}
