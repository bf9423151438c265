package engine

import (
	"strconv"
	"strings"
)

// compareValues orders two cell values: numerically when both parse as
// numbers, lexically otherwise.
func compareValues(a, b string) int {
	fa, okA := parseNumber(a)
	fb, okB := parseNumber(b)
	if okA && okB {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f, err == nil
}

// evalCondition evaluates one where condition against a cell value.
//
//   - ==/!= compare as numbers when both sides are numeric, exact strings
//     otherwise
//   - >, >=, <, <= require numeric operands; non-numeric means false
//   - contains/startswith/endswith are case-insensitive substring tests
//   - has is a case-insensitive whole-word test
func evalCondition(cell, comparator, value string) bool {
	switch comparator {
	case "==":
		return compareEquality(cell, value)
	case "!=":
		return !compareEquality(cell, value)
	case ">", ">=", "<", "<=":
		fa, okA := parseNumber(cell)
		fb, okB := parseNumber(value)
		if !okA || !okB {
			return false
		}
		switch comparator {
		case ">":
			return fa > fb
		case ">=":
			return fa >= fb
		case "<":
			return fa < fb
		default:
			return fa <= fb
		}
	case "contains":
		return strings.Contains(strings.ToLower(cell), strings.ToLower(value))
	case "startswith":
		return strings.HasPrefix(strings.ToLower(cell), strings.ToLower(value))
	case "endswith":
		return strings.HasSuffix(strings.ToLower(cell), strings.ToLower(value))
	case "has":
		return hasWord(cell, value)
	default:
		return false
	}
}

func compareEquality(cell, value string) bool {
	fa, okA := parseNumber(cell)
	fb, okB := parseNumber(value)
	if okA && okB {
		return fa == fb
	}
	return cell == value
}

// hasWord reports whether the cell contains the value as a whole word,
// where words are maximal runs of letters and digits.
func hasWord(cell, value string) bool {
	target := strings.ToLower(value)
	if target == "" {
		return false
	}
	words := strings.FieldsFunc(strings.ToLower(cell), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	for _, w := range words {
		if w == target {
			return true
		}
	}
	return false
}
