// Package normalize converts arbitrary JSON documents into the shared
// tabular result shape. Column order matters — it is the first-seen key
// order across the document — so decoding goes through a token walker
// instead of map-typed unmarshalling, which would scramble keys.
package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"mcpql/internal/domain"
)

// jsonValue is one decoded JSON value with key order preserved.
type jsonValue struct {
	kind    byte // 'o' object, 'a' array, 's' string, 'n' number, 'b' bool, 'z' null
	str     string
	boolean bool
	keys    []string
	fields  map[string]*jsonValue
	items   []*jsonValue
}

// ToTable normalizes a raw JSON document into a tabular result.
//
// Rules, in order:
//  1. root array → one row per element (elements must be objects), columns
//     are the union of keys in first-seen order, missing keys become ""
//  2. root object with exactly one property holding an array → rule 1 on
//     that array
//  3. root object otherwise → single row from its own keys
//  4. root scalar → single row, single column "value"
//  5. empty array → success with no columns and no rows
//
// Malformed JSON comes back as a failure result, never an error value —
// the whole pipeline speaks one result shape.
func ToTable(raw []byte) *domain.TabularResult {
	v, err := decode(raw)
	if err != nil {
		return domain.FailureResult(fmt.Sprintf("invalid JSON: %v", err))
	}

	switch v.kind {
	case 'a':
		return arrayToTable(v)
	case 'o':
		if inner := singleArrayProperty(v); inner != nil {
			return arrayToTable(inner)
		}
		return objectToTable(v)
	default:
		text := cellText(v)
		// a bare null document keeps its textual form; only nulls inside
		// rows collapse to empty cells
		if v.kind == 'z' {
			text = "null"
		}
		return domain.NewTabularResult([]string{"value"}, [][]string{{text}})
	}
}

// singleArrayProperty returns the nested array when the object has exactly
// one property and that property's value is an array.
func singleArrayProperty(v *jsonValue) *jsonValue {
	if len(v.keys) != 1 {
		return nil
	}
	inner := v.fields[v.keys[0]]
	if inner.kind != 'a' {
		return nil
	}
	return inner
}

func arrayToTable(arr *jsonValue) *domain.TabularResult {
	if len(arr.items) == 0 {
		return domain.NewTabularResult(nil, nil)
	}

	var columns []string
	seen := map[string]bool{}
	for _, item := range arr.items {
		if item.kind != 'o' {
			return domain.FailureResult("JSON array elements must be objects")
		}
		for _, k := range item.keys {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}

	rows := make([][]string, 0, len(arr.items))
	for _, item := range arr.items {
		row := make([]string, len(columns))
		for i, col := range columns {
			if f, ok := item.fields[col]; ok {
				row[i] = cellText(f)
			}
		}
		rows = append(rows, row)
	}
	return domain.NewTabularResult(columns, rows)
}

func objectToTable(obj *jsonValue) *domain.TabularResult {
	columns := make([]string, len(obj.keys))
	row := make([]string, len(obj.keys))
	for i, k := range obj.keys {
		columns[i] = k
		row[i] = cellText(obj.fields[k])
	}
	return domain.NewTabularResult(columns, [][]string{row})
}

// cellText renders a value into a cell: scalars as their literal text,
// nested objects/arrays as compact JSON.
func cellText(v *jsonValue) string {
	switch v.kind {
	case 's':
		return v.str
	case 'n':
		return v.str
	case 'b':
		if v.boolean {
			return "true"
		}
		return "false"
	case 'z':
		return ""
	default:
		var sb strings.Builder
		writeJSON(&sb, v)
		return sb.String()
	}
}

// writeJSON re-serializes a decoded value compactly, preserving key order.
func writeJSON(sb *strings.Builder, v *jsonValue) {
	switch v.kind {
	case 'o':
		sb.WriteByte('{')
		for i, k := range v.keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			kq, _ := json.Marshal(k)
			sb.Write(kq)
			sb.WriteByte(':')
			writeJSON(sb, v.fields[k])
		}
		sb.WriteByte('}')
	case 'a':
		sb.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeJSON(sb, item)
		}
		sb.WriteByte(']')
	case 's':
		sq, _ := json.Marshal(v.str)
		sb.Write(sq)
	case 'n':
		sb.WriteString(v.str)
	case 'b':
		if v.boolean {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case 'z':
		sb.WriteString("null")
	}
}

// ── Token-stream decoding ──────────────────────────────────

func decode(raw []byte) (*jsonValue, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	// trailing garbage after the document is still malformed input
	if dec.More() {
		return nil, fmt.Errorf("unexpected trailing data")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (*jsonValue, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return valueFromToken(dec, tok)
}

func valueFromToken(dec *json.Decoder, tok json.Token) (*jsonValue, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return nil, fmt.Errorf("unexpected %q", t)
		}
	case string:
		return &jsonValue{kind: 's', str: t}, nil
	case json.Number:
		return &jsonValue{kind: 'n', str: t.String()}, nil
	case bool:
		return &jsonValue{kind: 'b', boolean: t}, nil
	case nil:
		return &jsonValue{kind: 'z'}, nil
	default:
		return nil, fmt.Errorf("unexpected token %v", tok)
	}
}

func decodeObject(dec *json.Decoder) (*jsonValue, error) {
	obj := &jsonValue{kind: 'o', fields: map[string]*jsonValue{}}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if d, ok := tok.(json.Delim); ok && d == '}' {
			return obj, nil
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is not a string")
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		if _, dup := obj.fields[key]; !dup {
			obj.keys = append(obj.keys, key)
		}
		obj.fields[key] = val
	}
}

func decodeArray(dec *json.Decoder) (*jsonValue, error) {
	arr := &jsonValue{kind: 'a'}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if d, ok := tok.(json.Delim); ok && d == ']' {
			return arr, nil
		}
		val, err := valueFromToken(dec, tok)
		if err != nil {
			return nil, err
		}
		arr.items = append(arr.items, val)
	}
}
