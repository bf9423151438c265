package backends

import (
	"io"
	"log/slog"
	"testing"

	"mcpql/internal/config"
	"mcpql/internal/datasource"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegisterAll(t *testing.T) {
	reg := datasource.NewRegistry(testLogger())
	cfg := config.Default()
	cfg.Sources.Database.Disabled = true

	if err := RegisterAll(reg, cfg, testLogger()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	all := reg.GetAll()
	wantOrder := []string{"kusto", "workitems", "mailstore", "mcptool"}
	if len(all) != len(wantOrder) {
		t.Fatalf("expected %d enabled backends, got %d", len(wantOrder), len(all))
	}
	for i, want := range wantOrder {
		if all[i].ID != want {
			t.Errorf("position %d = %q, want %q", i, all[i].ID, want)
		}
	}
}

// ─────────────────────────────────────────────────────────────
// Routing sniffers
// ─────────────────────────────────────────────────────────────

func TestCanHandleQuery_Routing(t *testing.T) {
	logger := testLogger()
	kusto := newKustoSource(config.KustoConfig{}, logger)
	work := newWorkItemsSource(config.WorkItemsConfig{}, logger)
	mail := newMailStoreSource(config.MailStoreConfig{}, logger)
	db := newDatabaseSource(config.DatabaseConfig{Driver: "sqlite"}, logger)
	tool := newMCPToolSource(config.MCPToolConfig{}, logger)

	cases := []struct {
		text string
		want datasource.DataSource
	}{
		{"StormEvents | where Level == \"Error\" | take 10", kusto},
		{"Events | summarize count() by Source", kusto},
		{"SELECT [System.Id] FROM WorkItems WHERE [System.State] = 'Active'", work},
		{"select [System.Title]\nfrom workitems", work},
		{`mail | unread() | take 5`, mail},
		{`outlook.search(text="invoice")`, mail},
		{"SELECT * FROM users LIMIT 10", db},
		{"PRAGMA table_info(users)", db},
		{`github | list_issues(state="open")`, tool},
	}

	sources := []datasource.DataSource{kusto, work, mail, db, tool}
	for _, tc := range cases {
		for _, src := range sources {
			got := src.CanHandleQuery(tc.text)
			want := src == tc.want
			// the MCP tool backend may overlap with other MCPQL speakers;
			// registration order, not exclusivity, breaks that tie
			if src == tool && tc.want == mail {
				continue
			}
			if got != want {
				t.Errorf("%s.CanHandleQuery(%q) = %v, want %v", src.ID(), tc.text, got, want)
			}
		}
	}
}

func TestCanHandleQuery_MongoShape(t *testing.T) {
	db := newDatabaseSource(config.DatabaseConfig{Driver: "mongodb"}, testLogger())
	if !db.CanHandleQuery(`{"collection": "users", "operation": "find"}`) {
		t.Error("expected mongo query document to be handled")
	}
	if db.CanHandleQuery(`SELECT * FROM users`) {
		t.Error("SQL text must not route to a mongo-configured database")
	}
	if db.CanHandleQuery(`{"operation": "find"}`) {
		t.Error("a document without a collection is not a query")
	}
}

func TestCanHandleQuery_WiqlDoesNotLeakToDatabase(t *testing.T) {
	db := newDatabaseSource(config.DatabaseConfig{Driver: "postgres"}, testLogger())
	if db.CanHandleQuery("SELECT [System.Id] FROM WorkItems") {
		t.Error("WIQL must not be claimed by the database backend")
	}
}

// ─────────────────────────────────────────────────────────────
// Cell conversion
// ─────────────────────────────────────────────────────────────

func TestAnyToCell(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"text", "text"},
		{[]byte("bytes"), "bytes"},
		{float64(3.5), "3.5"},
		{float64(42), "42"},
		{int64(-7), "-7"},
		{true, "true"},
		{false, "false"},
		{map[string]any{"a": 1}, `{"a":1}`},
	}
	for _, tc := range cases {
		if got := anyToCell(tc.in); got != tc.want {
			t.Errorf("anyToCell(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
