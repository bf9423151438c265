package mcpql

import (
	"strconv"
	"strings"
)

// Format renders a parsed query back to canonical multi-line text: the
// invocation on the first line, one operator per line. It is a pure
// function; formatting then reparsing yields an equivalent Query, though
// not necessarily byte-identical text.
func Format(q *Query) string {
	if q == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(q.Backend)
	sb.WriteString(" | ")
	sb.WriteString(q.Call)
	sb.WriteString("(")
	for i, p := range q.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.Key)
		sb.WriteString("=")
		sb.WriteString(formatValue(p.Value))
	}
	sb.WriteString(")")

	for _, op := range q.Operators {
		sb.WriteString("\n| ")
		sb.WriteString(formatOperator(op))
	}
	return sb.String()
}

// FormatText parses and reformats query text, returning the input's parse
// error when the text is malformed.
func FormatText(text string) (string, error) {
	q, err := Parse(text)
	if err != nil {
		return "", err
	}
	return Format(q), nil
}

func formatOperator(op Operator) string {
	switch o := op.(type) {
	case WhereOp:
		parts := make([]string, 0, len(o.Conditions))
		for _, c := range o.Conditions {
			parts = append(parts, c.Column+" "+c.Comparator+" "+formatValue(c.Value))
		}
		return "where " + strings.Join(parts, " and ")
	case ProjectOp:
		return "project " + strings.Join(o.Columns, ", ")
	case TakeOp:
		return "take " + strconv.Itoa(o.Count)
	case SortOp:
		dir := "asc"
		if o.Descending {
			dir = "desc"
		}
		return "sort by " + o.Column + " " + dir
	case CountOp:
		return "count"
	case ExtendOp:
		return "extend " + o.NewColumn + " = " + o.SourceColumn
	default:
		return ""
	}
}

// formatValue re-quotes values that were strings and leaves numbers and
// booleans bare. The parser stores literal text only, so either rendering
// reparses to the same parameter value.
func formatValue(v string) string {
	if v == "true" || v == "false" {
		return v
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil && v != "" {
		return v
	}
	return strconv.Quote(v)
}
