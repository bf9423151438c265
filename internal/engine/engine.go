// Package engine applies an MCPQL operator chain to a tabular result.
// Every operator produces a fresh table; nothing is mutated in place, so
// callers may hold on to intermediate results safely.
package engine

import (
	"sort"
	"strconv"

	"mcpql/internal/domain"
	"mcpql/internal/mcpql"
)

// Apply folds the operator chain left-to-right over the table. An empty
// chain is the identity. The input table is never modified.
func Apply(t *domain.TabularResult, ops []mcpql.Operator) *domain.TabularResult {
	out := t
	for _, op := range ops {
		switch o := op.(type) {
		case mcpql.WhereOp:
			out = applyWhere(out, o)
		case mcpql.ProjectOp:
			out = applyProject(out, o)
		case mcpql.TakeOp:
			out = applyTake(out, o)
		case mcpql.SortOp:
			out = applySort(out, o)
		case mcpql.CountOp:
			out = applyCount(out)
		case mcpql.ExtendOp:
			out = applyExtend(out, o)
		}
	}
	return out
}

func applyWhere(t *domain.TabularResult, op mcpql.WhereOp) *domain.TabularResult {
	var rows [][]string
	for _, row := range t.Rows {
		keep := true
		for _, cond := range op.Conditions {
			idx := t.ColumnIndex(cond.Column)
			// unknown column: the condition is false, the row drops
			if idx < 0 || idx >= len(row) || !evalCondition(row[idx], cond.Comparator, cond.Value) {
				keep = false
				break
			}
		}
		if keep {
			rows = append(rows, cloneRow(row))
		}
	}
	out := domain.NewTabularResult(cloneColumns(t.Columns), rows)
	out.ExecutionTimeMs = t.ExecutionTimeMs
	return out
}

func applyProject(t *domain.TabularResult, op mcpql.ProjectOp) *domain.TabularResult {
	// repeated names collapse to the first mention, keeping columns unique
	var columns []string
	var indices []int
	seen := map[string]bool{}
	for _, col := range op.Columns {
		if seen[col] {
			continue
		}
		seen[col] = true
		columns = append(columns, col)
		indices = append(indices, t.ColumnIndex(col))
	}
	rows := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		projected := make([]string, len(columns))
		for i, idx := range indices {
			if idx >= 0 && idx < len(row) {
				projected[i] = row[idx]
			}
		}
		rows = append(rows, projected)
	}
	out := domain.NewTabularResult(columns, rows)
	out.ExecutionTimeMs = t.ExecutionTimeMs
	return out
}

func applyTake(t *domain.TabularResult, op mcpql.TakeOp) *domain.TabularResult {
	n := op.Count
	if n < 0 {
		n = 0
	}
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	rows := make([][]string, 0, n)
	for _, row := range t.Rows[:n] {
		rows = append(rows, cloneRow(row))
	}
	out := domain.NewTabularResult(cloneColumns(t.Columns), rows)
	out.ExecutionTimeMs = t.ExecutionTimeMs
	return out
}

func applySort(t *domain.TabularResult, op mcpql.SortOp) *domain.TabularResult {
	idx := t.ColumnIndex(op.Column)
	rows := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		rows[i] = cloneRow(row)
	}
	if idx >= 0 {
		sort.SliceStable(rows, func(a, b int) bool {
			va, vb := "", ""
			if idx < len(rows[a]) {
				va = rows[a][idx]
			}
			if idx < len(rows[b]) {
				vb = rows[b][idx]
			}
			if op.Descending {
				return compareValues(vb, va) < 0
			}
			return compareValues(va, vb) < 0
		})
	}
	out := domain.NewTabularResult(cloneColumns(t.Columns), rows)
	out.ExecutionTimeMs = t.ExecutionTimeMs
	return out
}

func applyCount(t *domain.TabularResult) *domain.TabularResult {
	out := domain.NewTabularResult([]string{"count"}, [][]string{{strconv.Itoa(len(t.Rows))}})
	out.ExecutionTimeMs = t.ExecutionTimeMs
	return out
}

func applyExtend(t *domain.TabularResult, op mcpql.ExtendOp) *domain.TabularResult {
	srcIdx := t.ColumnIndex(op.SourceColumn)
	// extending to an existing name replaces that column instead of
	// duplicating it
	dstIdx := t.ColumnIndex(op.NewColumn)
	columns := cloneColumns(t.Columns)
	if dstIdx < 0 {
		columns = append(columns, op.NewColumn)
	}
	rows := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		value := ""
		if srcIdx >= 0 && srcIdx < len(row) {
			value = row[srcIdx]
		}
		extended := cloneRow(row)
		if dstIdx >= 0 && dstIdx < len(extended) {
			extended[dstIdx] = value
		} else {
			extended = append(extended, value)
		}
		rows = append(rows, extended)
	}
	out := domain.NewTabularResult(columns, rows)
	out.ExecutionTimeMs = t.ExecutionTimeMs
	return out
}

func cloneRow(row []string) []string {
	out := make([]string, len(row))
	copy(out, row)
	return out
}

func cloneColumns(cols []string) []string {
	out := make([]string, len(cols))
	copy(out, cols)
	return out
}
