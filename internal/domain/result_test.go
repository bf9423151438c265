package domain_test

import (
	"testing"

	"mcpql/internal/domain"
)

func TestNewTabularResult_DerivesRowCount(t *testing.T) {
	res := domain.NewTabularResult([]string{"a"}, [][]string{{"1"}, {"2"}})
	if !res.Success || res.RowCount != 2 {
		t.Errorf("result = %+v", res)
	}
}

func TestNewTabularResult_NilSlicesBecomeEmpty(t *testing.T) {
	res := domain.NewTabularResult(nil, nil)
	if res.Columns == nil || res.Rows == nil {
		t.Error("nil slices must serialize as [] not null")
	}
	if res.RowCount != 0 {
		t.Errorf("row count = %d", res.RowCount)
	}
}

func TestFailureResult(t *testing.T) {
	res := domain.FailureResult("boom")
	if res.Success || res.Error != "boom" {
		t.Errorf("result = %+v", res)
	}
	if res.Columns == nil || res.Rows == nil {
		t.Error("failure results still carry empty table slices")
	}
}

func TestColumnIndex(t *testing.T) {
	res := domain.NewTabularResult([]string{"a", "b"}, nil)
	if res.ColumnIndex("b") != 1 {
		t.Errorf("index = %d, want 1", res.ColumnIndex("b"))
	}
	if res.ColumnIndex("missing") != -1 {
		t.Errorf("index = %d, want -1", res.ColumnIndex("missing"))
	}
}
