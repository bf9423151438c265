package backends

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"mcpql/internal/config"
	"mcpql/internal/domain"
)

func sampleFrames() []kustoFrame {
	pick := func(name, kind string) kustoFrame {
		f := kustoFrame{FrameType: name, TableKind: kind}
		f.Columns = []struct {
			ColumnName string `json:"ColumnName"`
			ColumnType string `json:"ColumnType"`
		}{
			{ColumnName: "Source", ColumnType: "string"},
			{ColumnName: "Count", ColumnType: "long"},
		}
		return f
	}
	primary := pick("DataTable", "PrimaryResult")
	primary.Rows = [][]any{
		{"api", float64(12)},
		{"worker", float64(3)},
		{"cron", float64(1)},
	}
	info := pick("DataTable", "QueryProperties")
	info.Rows = [][]any{{"noise", float64(0)}}
	return []kustoFrame{
		{FrameType: "DataSetHeader"},
		info,
		primary,
		{FrameType: "DataSetCompletion"},
	}
}

func TestFramesToTable_PicksPrimaryResult(t *testing.T) {
	res, err := framesToTable(sampleFrames(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(res.Columns, []string{"Source", "Count"}) {
		t.Errorf("columns = %v", res.Columns)
	}
	if res.RowCount != 3 {
		t.Fatalf("row count = %d, want 3", res.RowCount)
	}
	if !reflect.DeepEqual(res.Rows[0], []string{"api", "12"}) {
		t.Errorf("row 0 = %v", res.Rows[0])
	}
}

func TestFramesToTable_AppliesLimit(t *testing.T) {
	res, err := framesToTable(sampleFrames(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.RowCount != 2 {
		t.Errorf("row count = %d, want 2", res.RowCount)
	}
}

func TestFramesToTable_NoPrimaryResult(t *testing.T) {
	_, err := framesToTable([]kustoFrame{{FrameType: "DataSetHeader"}}, 0)
	if err == nil {
		t.Fatal("expected error when the stream holds no primary result")
	}
}

func TestKusto_ExecuteQuery(t *testing.T) {
	var gotPath, gotDB, gotCSL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotDB, gotCSL = body["db"], body["csl"]
		json.NewEncoder(w).Encode(sampleFrames())
	}))
	defer srv.Close()

	src := newKustoSource(config.KustoConfig{Cluster: srv.URL, Database: "Telemetry"}, testLogger())
	res, err := src.ExecuteQuery(context.Background(), &domain.QueryRequest{
		Query: "Events | summarize count() by Source",
		Limit: 10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/v2/rest/query" {
		t.Errorf("path = %q", gotPath)
	}
	if gotDB != "Telemetry" {
		t.Errorf("db = %q", gotDB)
	}
	if !strings.Contains(gotCSL, "summarize") {
		t.Errorf("csl = %q", gotCSL)
	}
	if res.RowCount != 3 {
		t.Errorf("row count = %d, want 3", res.RowCount)
	}
}

func TestKusto_ExecuteQueryServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Semantic error: table not found", http.StatusBadRequest)
	}))
	defer srv.Close()

	src := newKustoSource(config.KustoConfig{Cluster: srv.URL}, testLogger())
	_, err := src.ExecuteQuery(context.Background(), &domain.QueryRequest{Query: "Missing | take 1"})
	if err == nil || !strings.Contains(err.Error(), "Semantic error") {
		t.Errorf("error = %v, want the server's message", err)
	}
}

func TestKusto_ConnectionOverridePerRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(sampleFrames())
	}))
	defer srv.Close()

	// no configured cluster: the request-level connection carries it
	src := newKustoSource(config.KustoConfig{}, testLogger())
	_, err := src.ExecuteQuery(context.Background(), &domain.QueryRequest{
		Query:      "Events | take 1",
		Connection: srv.URL,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = src.ExecuteQuery(context.Background(), &domain.QueryRequest{Query: "Events | take 1"})
	if err == nil {
		t.Error("expected an error without any cluster address")
	}
}

func TestKusto_ViewerURL(t *testing.T) {
	src := newKustoSource(config.KustoConfig{
		Cluster:  "https://help.kusto.windows.net",
		Database: "Samples",
	}, testLogger())
	u, err := src.ViewerURL("StormEvents | take 5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(u, "https://dataexplorer.azure.com/clusters/help.kusto.windows.net/databases/Samples?query=") {
		t.Errorf("url = %q", u)
	}
}
