package mcpql

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ParseError is returned for malformed query text. It is a distinct type
// so callers can tell a syntax problem from an execution failure.
type ParseError struct {
	Pos int    // byte offset into the comment-stripped text
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Pos, e.Msg)
}

// looksLikeRe matches the two invocation heads without a full parse:
// "backend | call(" and "backend.call(".
var looksLikeRe = regexp.MustCompile(`^[A-Za-z0-9_-]+\s*(\|\s*[A-Za-z0-9_-]+\s*\(|\.[A-Za-z0-9_-]+\s*\()`)

// LooksLikeMcpql is a cheap content sniff: does the text start with either
// MCPQL invocation form? Used by routing before anything is fully parsed.
func LooksLikeMcpql(text string) bool {
	return looksLikeRe.MatchString(strings.TrimSpace(stripComments(text)))
}

// Parse turns query text into a Query. Leading comment lines are stripped;
// blank input or text matching neither invocation form fails with a
// *ParseError.
func Parse(text string) (*Query, error) {
	src := strings.TrimSpace(stripComments(text))
	if src == "" {
		return nil, &ParseError{Pos: 0, Msg: "empty query"}
	}

	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}

	q, err := p.parseQuery()
	if err != nil {
		return nil, err
	}
	if !p.eof() {
		t := p.peek()
		return nil, &ParseError{Pos: t.pos, Msg: fmt.Sprintf("unexpected %q after query", t.text)}
	}
	return q, nil
}

// stripComments removes lines whose first non-blank characters are "//".
func stripComments(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "//") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// ── Lexer ───────────────────────────────────────────────────

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokString
	tokPunct // | . ( ) , = == != > >= < <=
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func isIdentChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' || c == '-' || c == '_'
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			i++
		case c == '"':
			start := i
			i++
			var sb strings.Builder
			closed := false
			for i < len(src) {
				if src[i] == '\\' && i+1 < len(src) {
					sb.WriteByte(src[i+1])
					i += 2
					continue
				}
				if src[i] == '"' {
					closed = true
					i++
					break
				}
				sb.WriteByte(src[i])
				i++
			}
			if !closed {
				return nil, &ParseError{Pos: start, Msg: "unterminated string literal"}
			}
			toks = append(toks, token{kind: tokString, text: sb.String(), pos: start})
		case c == '=' || c == '!' || c == '<' || c == '>':
			start := i
			op := string(c)
			if i+1 < len(src) && src[i+1] == '=' {
				op += "="
				i++
			}
			i++
			if op == "!" {
				return nil, &ParseError{Pos: start, Msg: "unexpected '!'"}
			}
			toks = append(toks, token{kind: tokPunct, text: op, pos: start})
		case c == '|' || c == '.' || c == '(' || c == ')' || c == ',':
			toks = append(toks, token{kind: tokPunct, text: string(c), pos: i})
			i++
		case c >= '0' && c <= '9' || (c == '-' && i+1 < len(src) && src[i+1] >= '0' && src[i+1] <= '9'):
			start := i
			i++
			for i < len(src) && (src[i] >= '0' && src[i] <= '9' || src[i] == '.') {
				i++
			}
			// a "number" that continues as an identifier (e.g. 2fast) is an ident
			if i < len(src) && isIdentChar(src[i]) {
				for i < len(src) && isIdentChar(src[i]) {
					i++
				}
				toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start})
				break
			}
			toks = append(toks, token{kind: tokNumber, text: src[start:i], pos: start})
		case isIdentChar(c):
			start := i
			for i < len(src) && isIdentChar(src[i]) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start})
		default:
			return nil, &ParseError{Pos: i, Msg: fmt.Sprintf("unexpected character %q", string(c))}
		}
	}
	return toks, nil
}

// ── Parser ──────────────────────────────────────────────────

type parser struct {
	toks []token
	i    int
}

func (p *parser) eof() bool { return p.i >= len(p.toks) }

func (p *parser) peek() token {
	if p.eof() {
		return token{kind: tokPunct, text: "", pos: endPos(p.toks)}
	}
	return p.toks[p.i]
}

func (p *parser) next() token {
	t := p.peek()
	if !p.eof() {
		p.i++
	}
	return t
}

func endPos(toks []token) int {
	if len(toks) == 0 {
		return 0
	}
	last := toks[len(toks)-1]
	return last.pos + len(last.text)
}

func (p *parser) errf(t token, format string, args ...any) error {
	return &ParseError{Pos: t.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expectPunct(text string) (token, error) {
	t := p.next()
	if t.kind != tokPunct || t.text != text {
		return t, p.errf(t, "expected %q, got %q", text, t.text)
	}
	return t, nil
}

func (p *parser) expectIdent() (token, error) {
	t := p.next()
	if t.kind != tokIdent {
		return t, p.errf(t, "expected identifier, got %q", t.text)
	}
	return t, nil
}

func (p *parser) parseQuery() (*Query, error) {
	backend, err := p.expectIdent()
	if err != nil {
		return nil, err
	}

	sep := p.next()
	if sep.kind != tokPunct || (sep.text != "|" && sep.text != ".") {
		return nil, p.errf(sep, "expected '|' or '.' after backend name, got %q", sep.text)
	}

	call, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if isOperatorKeyword(call.text) {
		return nil, p.errf(call, "expected a call name before any operators, got %q", call.text)
	}

	params, err := p.parseParams()
	if err != nil {
		return nil, err
	}

	q := &Query{Backend: backend.text, Call: call.text, Params: params}

	for !p.eof() {
		if _, err := p.expectPunct("|"); err != nil {
			return nil, err
		}
		op, err := p.parseOperator()
		if err != nil {
			return nil, err
		}
		q.Operators = append(q.Operators, op)
	}
	return q, nil
}

func (p *parser) parseParams() ([]Param, error) {
	if _, err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var params []Param
	if t := p.peek(); t.kind == tokPunct && t.text == ")" {
		p.next()
		return params, nil
	}
	for {
		key, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct("="); err != nil {
			return nil, err
		}
		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		params = append(params, Param{Key: key.text, Value: val})

		t := p.next()
		if t.kind == tokPunct && t.text == ")" {
			return params, nil
		}
		if t.kind != tokPunct || t.text != "," {
			return nil, p.errf(t, "expected ',' or ')' in parameter list, got %q", t.text)
		}
	}
}

// parseValue accepts a quoted string, a number, or a boolean literal.
// The literal text is kept as-is; typing happens in the backend, if at all.
func (p *parser) parseValue() (string, error) {
	t := p.next()
	switch {
	case t.kind == tokString:
		return t.text, nil
	case t.kind == tokNumber:
		return t.text, nil
	case t.kind == tokIdent && (t.text == "true" || t.text == "false"):
		return t.text, nil
	default:
		return "", p.errf(t, "expected a value, got %q", t.text)
	}
}

func isOperatorKeyword(s string) bool {
	switch s {
	case "where", "project", "take", "sort", "count", "extend":
		return true
	}
	return false
}

func (p *parser) parseOperator() (Operator, error) {
	kw, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	switch kw.text {
	case "where":
		return p.parseWhere()
	case "project":
		return p.parseProject()
	case "take":
		t := p.next()
		if t.kind != tokNumber {
			return nil, p.errf(t, "take requires an integer, got %q", t.text)
		}
		n, convErr := strconv.Atoi(t.text)
		if convErr != nil {
			return nil, p.errf(t, "take requires an integer, got %q", t.text)
		}
		return TakeOp{Count: n}, nil
	case "sort":
		by, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if by.text != "by" {
			return nil, p.errf(by, "expected 'by' after sort, got %q", by.text)
		}
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		op := SortOp{Column: col.text}
		if t := p.peek(); t.kind == tokIdent && (t.text == "asc" || t.text == "desc") {
			p.next()
			op.Descending = t.text == "desc"
		}
		return op, nil
	case "count":
		return CountOp{}, nil
	case "extend":
		newCol, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct("="); err != nil {
			return nil, err
		}
		srcCol, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return ExtendOp{NewColumn: newCol.text, SourceColumn: srcCol.text}, nil
	default:
		return nil, p.errf(kw, "unknown operator %q", kw.text)
	}
}

func (p *parser) parseProject() (Operator, error) {
	var cols []string
	for {
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		cols = append(cols, col.text)
		if t := p.peek(); t.kind == tokPunct && t.text == "," {
			p.next()
			continue
		}
		return ProjectOp{Columns: cols}, nil
	}
}

func (p *parser) parseWhere() (Operator, error) {
	var conds []Condition
	for {
		cond, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)

		t := p.peek()
		if t.kind == tokIdent && t.text == "and" {
			p.next()
			continue
		}
		if t.kind == tokIdent && t.text == "or" {
			// The grammar reserves "or", but only conjunctive filtering is
			// defined. Reject rather than silently misfilter.
			return nil, p.errf(t, "'or' conditions are not supported; use 'and'")
		}
		return WhereOp{Conditions: conds}, nil
	}
}

func (p *parser) parseCondition() (Condition, error) {
	col, err := p.expectIdent()
	if err != nil {
		return Condition{}, err
	}
	cmp := p.next()
	comparator := ""
	switch {
	case cmp.kind == tokPunct && isComparatorPunct(cmp.text):
		comparator = cmp.text
	case cmp.kind == tokIdent && isComparatorWord(cmp.text):
		comparator = cmp.text
	default:
		return Condition{}, p.errf(cmp, "expected a comparator, got %q", cmp.text)
	}
	val, err := p.parseValue()
	if err != nil {
		return Condition{}, err
	}
	return Condition{Column: col.text, Comparator: comparator, Value: val}, nil
}

func isComparatorPunct(s string) bool {
	switch s {
	case "==", "!=", ">", ">=", "<", "<=":
		return true
	}
	return false
}

func isComparatorWord(s string) bool {
	switch s {
	case "contains", "startswith", "endswith", "has":
		return true
	}
	return false
}
