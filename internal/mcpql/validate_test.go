package mcpql_test

import (
	"strings"
	"testing"

	"mcpql/internal/mcpql"
)

func TestValidate_WellFormedQuery(t *testing.T) {
	q, err := mcpql.Parse(`mail | unread() | take 5`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if errs := mcpql.Validate(q); len(errs) != 0 {
		t.Errorf("expected no problems, got %v", errs)
	}
}

func TestValidate_NilQuery(t *testing.T) {
	errs := mcpql.Validate(nil)
	if len(errs) != 2 {
		t.Fatalf("expected 2 problems for nil query, got %v", errs)
	}
}

func TestValidate_MissingParts(t *testing.T) {
	q := &mcpql.Query{
		Operators: []mcpql.Operator{
			mcpql.WhereOp{},
			mcpql.ProjectOp{},
			mcpql.SortOp{},
			mcpql.ExtendOp{NewColumn: "alias"},
		},
	}
	errs := mcpql.Validate(q)
	if len(errs) != 6 {
		t.Fatalf("expected 6 problems, got %d: %v", len(errs), errs)
	}
}

func TestValidateText_ParseFailureFoldsIn(t *testing.T) {
	errs := mcpql.ValidateText("not mcpql at all")
	if len(errs) != 1 {
		t.Fatalf("expected 1 problem, got %v", errs)
	}
	if !strings.Contains(errs[0], "parse error") {
		t.Errorf("problem = %q, want a parse error", errs[0])
	}
}
