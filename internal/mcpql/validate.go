package mcpql

// Validate checks an already-parsed (or zero-value) query for shape
// problems and returns human-readable reasons. It never fails hard —
// a nil query simply reports everything as missing.
func Validate(q *Query) []string {
	var errs []string
	if q == nil {
		return []string{"missing backend name", "missing call name"}
	}
	if q.Backend == "" {
		errs = append(errs, "missing backend name")
	}
	if q.Call == "" {
		errs = append(errs, "missing call name")
	}
	for _, op := range q.Operators {
		switch o := op.(type) {
		case WhereOp:
			if len(o.Conditions) == 0 {
				errs = append(errs, "where clause has no conditions")
			}
		case ProjectOp:
			if len(o.Columns) == 0 {
				errs = append(errs, "project lists no columns")
			}
		case SortOp:
			if o.Column == "" {
				errs = append(errs, "sort names no column")
			}
		case ExtendOp:
			if o.NewColumn == "" || o.SourceColumn == "" {
				errs = append(errs, "extend needs both a new and a source column")
			}
		}
	}
	return errs
}

// ValidateText parses and validates in one step, folding parse failures
// into the same plain-text error list.
func ValidateText(text string) []string {
	q, err := Parse(text)
	if err != nil {
		return []string{err.Error()}
	}
	return Validate(q)
}
