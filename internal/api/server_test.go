package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpql/internal/api"
	"mcpql/internal/config"
	"mcpql/internal/datasource"
	"mcpql/internal/domain"
	"mcpql/internal/normalize"
	"mcpql/internal/service"
)

// echoSource answers every query with a fixed table.
type echoSource struct {
	datasource.StateTracker
}

func (e *echoSource) ID() string                           { return "echo" }
func (e *echoSource) DisplayName() string                  { return "Echo" }
func (e *echoSource) QueryLanguage() string                { return "mcpql" }
func (e *echoSource) DefaultLimit() int                    { return 10 }
func (e *echoSource) ConnectionInfo() string               { return "echo" }
func (e *echoSource) Connect(ctx context.Context) error    { return nil }
func (e *echoSource) Disconnect(ctx context.Context) error { return nil }
func (e *echoSource) ValidateQuery(text string) []string {
	if text == "bad" {
		return []string{"query is bad"}
	}
	return nil
}
func (e *echoSource) FormatQuery(text string) (string, error) { return text, nil }
func (e *echoSource) CanHandleQuery(text string) bool         { return true }
func (e *echoSource) Close() error                            { return nil }

func (e *echoSource) ExecuteQuery(ctx context.Context, req *domain.QueryRequest) (*domain.TabularResult, error) {
	return domain.NewTabularResult([]string{"q"}, [][]string{{req.Query}}), nil
}

func (e *echoSource) SubmitPayload(queryText, raw string) (*domain.TabularResult, error) {
	return normalize.ToTable([]byte(raw)), nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := datasource.NewRegistry(logger)
	err := reg.Register(datasource.Registration{
		ID:      "echo",
		Enabled: true,
		Factory: func() (datasource.DataSource, error) { return &echoSource{}, nil },
	})
	require.NoError(t, err)

	query := service.NewQueryService(reg, nil, 0, 100, service.DefaultTargets{}, logger)
	srv := httptest.NewServer(api.NewServer(query, config.APIConfig{}, logger).Router())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestAPI_Query(t *testing.T) {
	srv := newTestServer(t)
	resp := postJSON(t, srv.URL+"/api/query", domain.QueryRequest{Query: "hello"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result domain.TabularResult
	decodeInto(t, resp, &result)
	assert.True(t, result.Success)
	assert.Equal(t, [][]string{{"hello"}}, result.Rows)
}

func TestAPI_QueryFailureStillHTTP200(t *testing.T) {
	srv := newTestServer(t)
	resp := postJSON(t, srv.URL+"/api/query", domain.QueryRequest{Query: "   "})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result domain.TabularResult
	decodeInto(t, resp, &result)
	assert.False(t, result.Success)
	assert.Equal(t, "query text is empty", result.Error)
}

func TestAPI_QueryRejectsMalformedBody(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/api/query", "application/json", bytes.NewReader([]byte("{")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_QueryPayload(t *testing.T) {
	srv := newTestServer(t)
	resp := postJSON(t, srv.URL+"/api/query/payload", map[string]string{
		"query":   `echo | fetch() | project name`,
		"payload": `[{"name":"Ada","score":90}]`,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result domain.TabularResult
	decodeInto(t, resp, &result)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"name"}, result.Columns)
	assert.Equal(t, [][]string{{"Ada"}}, result.Rows)
}

func TestAPI_Cancel(t *testing.T) {
	srv := newTestServer(t)
	resp := postJSON(t, srv.URL+"/api/query/cancel", struct{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]bool
	decodeInto(t, resp, &body)
	assert.True(t, body["cancelled"])
}

func TestAPI_DataSources(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/datasources")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sources []domain.DataSourceDescriptor
	decodeInto(t, resp, &sources)
	require.Len(t, sources, 1)
	assert.Equal(t, "echo", sources[0].ID)
}

func TestAPI_Switch(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/datasources/echo/switch", struct{}{})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/datasources/ghost/switch", struct{}{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_Validate(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/validate", map[string]string{"query": "ok"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Valid  bool     `json:"valid"`
		Errors []string `json:"errors"`
	}
	decodeInto(t, resp, &body)
	assert.True(t, body.Valid)
	assert.Empty(t, body.Errors)

	resp = postJSON(t, srv.URL+"/api/validate", map[string]string{"query": "bad"})
	decodeInto(t, resp, &body)
	assert.False(t, body.Valid)
	assert.Equal(t, []string{"query is bad"}, body.Errors)
}

func TestAPI_Format(t *testing.T) {
	srv := newTestServer(t)
	resp := postJSON(t, srv.URL+"/api/format", map[string]string{"query": "mail | unread()"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decodeInto(t, resp, &body)
	assert.Equal(t, "mail | unread()", body["formatted"])
}

func TestAPI_HistoryWithoutStore(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/history?limit=5")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entries []map[string]any
	decodeInto(t, resp, &entries)
	assert.Empty(t, entries)
}
