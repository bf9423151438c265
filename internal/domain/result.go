package domain

// TabularResult is the shared table representation every pipeline stage
// consumes and produces. All cell values are strings; comparison and
// serialization never need typed values.
type TabularResult struct {
	Success         bool       `json:"success"`
	Columns         []string   `json:"columns"`
	Rows            [][]string `json:"rows"`
	RowCount        int        `json:"rowCount"`
	ExecutionTimeMs int64      `json:"executionTimeMs"`
	Error           string     `json:"error,omitempty"`
}

// NewTabularResult builds a successful result from columns and rows.
// RowCount is derived from rows; callers never set it independently.
func NewTabularResult(columns []string, rows [][]string) *TabularResult {
	if columns == nil {
		columns = []string{}
	}
	if rows == nil {
		rows = [][]string{}
	}
	return &TabularResult{
		Success:  true,
		Columns:  columns,
		Rows:     rows,
		RowCount: len(rows),
	}
}

// FailureResult wraps an error message in the standard result shape.
// All pipeline failures surface this way — callers never need a second
// error channel.
func FailureResult(msg string) *TabularResult {
	return &TabularResult{
		Success: false,
		Columns: []string{},
		Rows:    [][]string{},
		Error:   msg,
	}
}

// ColumnIndex returns the position of a column, or -1 when absent.
func (t *TabularResult) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}
