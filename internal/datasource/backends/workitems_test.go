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

func TestWorkItems_ExecuteQueryTwoPhase(t *testing.T) {
	var wiqlBody map[string]string
	var fetchQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/_apis/wit/wiql"):
			if err := json.NewDecoder(r.Body).Decode(&wiqlBody); err != nil {
				t.Errorf("decode wiql body: %v", err)
			}
			json.NewEncoder(w).Encode(map[string]any{
				"columns": []map[string]string{
					{"referenceName": "System.Id", "name": "ID"},
					{"referenceName": "System.Title", "name": "Title"},
					{"referenceName": "System.State", "name": "State"},
				},
				"workItems": []map[string]int{{"id": 101}, {"id": 102}},
			})
		case strings.Contains(r.URL.Path, "/_apis/wit/workitems"):
			fetchQuery = r.URL.RawQuery
			json.NewEncoder(w).Encode(map[string]any{
				"value": []map[string]any{
					{"id": 101, "fields": map[string]any{
						"System.Title": "Fix crash", "System.State": "Active"}},
					{"id": 102, "fields": map[string]any{
						"System.Title": "Add docs", "System.State": "New"}},
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src := newWorkItemsSource(config.WorkItemsConfig{
		OrgURL:  srv.URL,
		Project: "Platform",
		PAT:     "secret",
	}, testLogger())

	res, err := src.ExecuteQuery(context.Background(), &domain.QueryRequest{
		Query: "SELECT [System.Id], [System.Title], [System.State] FROM WorkItems",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if wiqlBody["query"] == "" {
		t.Error("WIQL body did not carry the query text")
	}
	if !strings.Contains(fetchQuery, "ids=101,102") {
		t.Errorf("fetch query = %q, want the resolved ids", fetchQuery)
	}
	if !strings.Contains(fetchQuery, "fields=System.Title,System.State") {
		t.Errorf("fetch query = %q, want the selected fields", fetchQuery)
	}

	if !reflect.DeepEqual(res.Columns, []string{"id", "Title", "State"}) {
		t.Errorf("columns = %v", res.Columns)
	}
	if res.RowCount != 2 {
		t.Fatalf("row count = %d, want 2", res.RowCount)
	}
	if !reflect.DeepEqual(res.Rows[0], []string{"101", "Fix crash", "Active"}) {
		t.Errorf("row 0 = %v", res.Rows[0])
	}
}

func TestWorkItems_NoMatches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"columns": []map[string]string{
				{"referenceName": "System.Id", "name": "ID"},
			},
			"workItems": []map[string]int{},
		})
	}))
	defer srv.Close()

	src := newWorkItemsSource(config.WorkItemsConfig{OrgURL: srv.URL, Project: "P"}, testLogger())
	res, err := src.ExecuteQuery(context.Background(), &domain.QueryRequest{
		Query: "SELECT [System.Id] FROM WorkItems WHERE [System.State] = 'Gone'",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.RowCount != 0 {
		t.Errorf("row count = %d, want 0", res.RowCount)
	}
	if !reflect.DeepEqual(res.Columns, []string{"id"}) {
		t.Errorf("columns = %v", res.Columns)
	}
}

func TestWorkItems_FormatQuery(t *testing.T) {
	src := newWorkItemsSource(config.WorkItemsConfig{}, testLogger())
	out, err := src.FormatQuery("SELECT [System.Id] FROM WorkItems WHERE [System.State] = 'Active' ORDER BY [System.ChangedDate] DESC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "SELECT [System.Id]\nFROM WorkItems\nWHERE [System.State] = 'Active'\nORDER BY [System.ChangedDate] DESC"
	if out != want {
		t.Errorf("formatted =\n%s\nwant\n%s", out, want)
	}
}

func TestWorkItems_ValidateQuery(t *testing.T) {
	src := newWorkItemsSource(config.WorkItemsConfig{}, testLogger())
	if errs := src.ValidateQuery("SELECT [System.Id] FROM WorkItems"); len(errs) != 0 {
		t.Errorf("unexpected problems: %v", errs)
	}
	if errs := src.ValidateQuery("DELETE FROM WorkItems"); len(errs) == 0 {
		t.Error("expected a problem for non-WIQL text")
	}
	if errs := src.ValidateQuery("  "); len(errs) == 0 {
		t.Error("expected a problem for empty text")
	}
}
