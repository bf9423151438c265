// Package mcpql implements the MCPQL query language: a small pipe-based
// grammar that names a backend, a call with parameters, and an optional
// chain of post-processing operators.
//
//	github | list_issues(owner="ms", state="open") | where state == "open" | take 10
//
// The parser produces a typed Query; the post-processing engine folds the
// operator chain over a tabular result.
package mcpql

// Query is the parsed form of one MCPQL request: backend name, call name,
// ordered call parameters, and the operator chain. Built once per request
// text and immutable thereafter.
type Query struct {
	Backend   string
	Call      string
	Params    []Param
	Operators []Operator
}

// Param is a single call parameter. Parameters keep their textual order
// and their literal value text — numbers and booleans are not distinguished
// from strings at this layer.
type Param struct {
	Key   string
	Value string
}

// Param returns the value for a parameter key, if present.
func (q *Query) Param(key string) (string, bool) {
	for _, p := range q.Params {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// ParamMap flattens the ordered parameters into a map for backends that
// do not care about ordering.
func (q *Query) ParamMap() map[string]string {
	m := make(map[string]string, len(q.Params))
	for _, p := range q.Params {
		m[p.Key] = p.Value
	}
	return m
}

// Operator is the closed set of post-processing operators. The sealed
// marker method keeps the engine's type switch exhaustive: only the six
// variants below exist.
type Operator interface {
	isOperator()
}

// Condition is one column/comparator/value test inside a where clause.
type Condition struct {
	Column     string
	Comparator string
	Value      string
}

// WhereOp keeps rows for which every condition holds.
type WhereOp struct {
	Conditions []Condition
}

// ProjectOp rebuilds the column set as exactly the requested list.
type ProjectOp struct {
	Columns []string
}

// TakeOp truncates to the first N rows.
type TakeOp struct {
	Count int
}

// SortOp stably sorts by one column, ascending unless Descending.
type SortOp struct {
	Column     string
	Descending bool
}

// CountOp replaces the table with a single count cell.
type CountOp struct{}

// ExtendOp appends a new column copied verbatim from an existing one.
// It is an alias facility, not an expression evaluator.
type ExtendOp struct {
	NewColumn    string
	SourceColumn string
}

func (WhereOp) isOperator()   {}
func (ProjectOp) isOperator() {}
func (TakeOp) isOperator()    {}
func (SortOp) isOperator()    {}
func (CountOp) isOperator()   {}
func (ExtendOp) isOperator()  {}

// Comparators accepted in where conditions.
var Comparators = []string{"==", "!=", ">", ">=", "<", "<=", "contains", "startswith", "endswith", "has"}
