package mcpql_test

import (
	"errors"
	"testing"

	"mcpql/internal/mcpql"
)

// ─────────────────────────────────────────────────────────────
// Invocation parsing
// ─────────────────────────────────────────────────────────────

func TestParse_PipeInvocation(t *testing.T) {
	q, err := mcpql.Parse(`github | list_issues(owner="ms", state="open")`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Backend != "github" {
		t.Errorf("backend = %q, want %q", q.Backend, "github")
	}
	if q.Call != "list_issues" {
		t.Errorf("call = %q, want %q", q.Call, "list_issues")
	}
	if len(q.Params) != 2 {
		t.Fatalf("expected 2 params, got %d", len(q.Params))
	}
	if q.Params[0].Key != "owner" || q.Params[0].Value != "ms" {
		t.Errorf("param 0 = %+v, want owner=ms", q.Params[0])
	}
	if q.Params[1].Key != "state" || q.Params[1].Value != "open" {
		t.Errorf("param 1 = %+v, want state=open", q.Params[1])
	}
	if len(q.Operators) != 0 {
		t.Errorf("expected no operators, got %d", len(q.Operators))
	}
}

func TestParse_DotInvocation(t *testing.T) {
	q, err := mcpql.Parse(`mail.search(text="invoice", limit=5)`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Backend != "mail" || q.Call != "search" {
		t.Errorf("got %s.%s, want mail.search", q.Backend, q.Call)
	}
	if v, ok := q.Param("limit"); !ok || v != "5" {
		t.Errorf("limit param = %q (%v), want 5", v, ok)
	}
}

func TestParse_EmptyParamList(t *testing.T) {
	q, err := mcpql.Parse("mail | unread()")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.Params) != 0 {
		t.Errorf("expected no params, got %d", len(q.Params))
	}
}

func TestParse_ValueKinds(t *testing.T) {
	q, err := mcpql.Parse(`svc | call(s="text", n=42, f=3.5, neg=-7, b=true, b2=false)`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]string{
		"s": "text", "n": "42", "f": "3.5", "neg": "-7", "b": "true", "b2": "false",
	}
	got := q.ParamMap()
	for k, v := range want {
		if got[k] != v {
			t.Errorf("param %s = %q, want %q", k, got[k], v)
		}
	}
}

func TestParse_StringEscapes(t *testing.T) {
	q, err := mcpql.Parse(`svc | call(msg="say \"hi\"")`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := q.Param("msg"); v != `say "hi"` {
		t.Errorf("msg = %q, want %q", v, `say "hi"`)
	}
}

func TestParse_CommentLinesStripped(t *testing.T) {
	q, err := mcpql.Parse("// fetch open issues\ngithub | list_issues(state=\"open\")")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Call != "list_issues" {
		t.Errorf("call = %q, want list_issues", q.Call)
	}
}

// ─────────────────────────────────────────────────────────────
// Operator chain parsing
// ─────────────────────────────────────────────────────────────

func TestParse_OperatorChain(t *testing.T) {
	q, err := mcpql.Parse(`github | list_issues(state="open")
| where score > 70 and name contains "al"
| sort by score desc
| project name, score
| take 10`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.Operators) != 4 {
		t.Fatalf("expected 4 operators, got %d", len(q.Operators))
	}

	where, ok := q.Operators[0].(mcpql.WhereOp)
	if !ok {
		t.Fatalf("operator 0 = %T, want WhereOp", q.Operators[0])
	}
	if len(where.Conditions) != 2 {
		t.Fatalf("expected 2 conditions, got %d", len(where.Conditions))
	}
	if c := where.Conditions[0]; c.Column != "score" || c.Comparator != ">" || c.Value != "70" {
		t.Errorf("condition 0 = %+v", c)
	}
	if c := where.Conditions[1]; c.Comparator != "contains" || c.Value != "al" {
		t.Errorf("condition 1 = %+v", c)
	}

	sortOp, ok := q.Operators[1].(mcpql.SortOp)
	if !ok || sortOp.Column != "score" || !sortOp.Descending {
		t.Errorf("operator 1 = %+v, want sort by score desc", q.Operators[1])
	}

	proj, ok := q.Operators[2].(mcpql.ProjectOp)
	if !ok || len(proj.Columns) != 2 || proj.Columns[0] != "name" {
		t.Errorf("operator 2 = %+v, want project name, score", q.Operators[2])
	}

	take, ok := q.Operators[3].(mcpql.TakeOp)
	if !ok || take.Count != 10 {
		t.Errorf("operator 3 = %+v, want take 10", q.Operators[3])
	}
}

func TestParse_CountAndExtend(t *testing.T) {
	q, err := mcpql.Parse(`svc | call() | extend alias = name | count`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ext, ok := q.Operators[0].(mcpql.ExtendOp)
	if !ok || ext.NewColumn != "alias" || ext.SourceColumn != "name" {
		t.Errorf("operator 0 = %+v, want extend alias = name", q.Operators[0])
	}
	if _, ok := q.Operators[1].(mcpql.CountOp); !ok {
		t.Errorf("operator 1 = %T, want CountOp", q.Operators[1])
	}
}

func TestParse_SortDefaultsAscending(t *testing.T) {
	q, err := mcpql.Parse(`svc | call() | sort by name`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	op := q.Operators[0].(mcpql.SortOp)
	if op.Descending {
		t.Error("sort without direction should be ascending")
	}
}

// ─────────────────────────────────────────────────────────────
// Errors
// ─────────────────────────────────────────────────────────────

func TestParse_Errors(t *testing.T) {
	cases := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"comment only", "// nothing here"},
		{"no call", "github"},
		{"missing parens", "github | list_issues"},
		{"unterminated string", `svc | call(a="oops)`},
		{"unterminated params", `svc | call(a="x"`},
		{"operator as call", "svc | where(a=1)"},
		{"unknown operator", `svc | call() | explode`},
		{"take without number", `svc | call() | take many`},
		{"sort without by", `svc | call() | sort name`},
		{"bad comparator", `svc | call() | where a ~ 1`},
		{"trailing tokens", `svc | call() extra`},
		{"or condition", `svc | call() | where a == 1 or b == 2`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := mcpql.Parse(tc.text)
			if err == nil {
				t.Fatalf("expected error for %q", tc.text)
			}
			var pe *mcpql.ParseError
			if !errors.As(err, &pe) {
				t.Errorf("error type = %T, want *ParseError", err)
			}
		})
	}
}

func TestParse_OrConditionMessage(t *testing.T) {
	_, err := mcpql.Parse(`svc | call() | where a == 1 or b == 2`)
	var pe *mcpql.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error type = %T, want *ParseError", err)
	}
	if pe.Msg != "'or' conditions are not supported; use 'and'" {
		t.Errorf("message = %q", pe.Msg)
	}
}

// ─────────────────────────────────────────────────────────────
// Content sniff
// ─────────────────────────────────────────────────────────────

func TestLooksLikeMcpql(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{`github | list_issues(state="open")`, true},
		{`mail.search(text="x")`, true},
		{"// comment\nmail | unread()", true},
		{"StormEvents | take 10", false},
		{"SELECT * FROM users", false},
		{"select [System.Id] from workitems", false},
		{"", false},
		{"just words", false},
	}
	for _, tc := range cases {
		if got := mcpql.LooksLikeMcpql(tc.text); got != tc.want {
			t.Errorf("LooksLikeMcpql(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}
