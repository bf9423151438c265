package cli

import (
	"fmt"
	"io"
	"strings"

	"mcpql/internal/domain"
)

// renderTable writes an aligned plain-text table.
func renderTable(w io.Writer, t *domain.TabularResult) {
	if len(t.Columns) == 0 {
		fmt.Fprintln(w, "(no columns)")
		return
	}

	widths := make([]int, len(t.Columns))
	for i, c := range t.Columns {
		widths[i] = len(c)
	}
	for _, row := range t.Rows {
		for i := range t.Columns {
			if i < len(row) && len(row[i]) > widths[i] {
				widths[i] = len(row[i])
			}
		}
	}

	writeRow := func(cells []string) {
		parts := make([]string, len(t.Columns))
		for i := range t.Columns {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			parts[i] = pad(cell, widths[i])
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	writeRow(t.Columns)
	seps := make([]string, len(t.Columns))
	for i, width := range widths {
		seps[i] = strings.Repeat("-", width)
	}
	writeRow(seps)
	for _, row := range t.Rows {
		writeRow(row)
	}
	fmt.Fprintf(w, "\n%d row(s) in %d ms\n", t.RowCount, t.ExecutionTimeMs)
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
