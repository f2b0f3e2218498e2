package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/alfredjeanlab/airpuck/internal/model"
)

// splitField splits "key=value" into (key, value, true).
// Returns ("", "", false) if there is no '=' or key is empty.
func splitField(s string) (string, string, bool) {
	i := strings.IndexByte(s, '=')
	if i <= 0 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}

// rawOrString returns a json.RawMessage if v looks like a JSON literal
// (object, array, quoted string, boolean, null, or number). Otherwise it
// returns v as a plain Go string.
func rawOrString(v string) any {
	if len(v) == 0 {
		return v
	}
	switch v[0] {
	case '{', '[', '"':
		if json.Valid([]byte(v)) {
			return json.RawMessage(v)
		}
	default:
		if v == "true" || v == "false" || v == "null" {
			return json.RawMessage(v)
		}
		if v[0] == '-' || unicode.IsDigit(rune(v[0])) {
			if json.Valid([]byte(v)) {
				return json.RawMessage(v)
			}
		}
	}
	return v
}

// parseValue turns a command-line value into the Go value a decoded
// response would hold: JSON literals are decoded, anything else stays a string.
func parseValue(v string) any {
	raw, ok := rawOrString(v).(json.RawMessage)
	if !ok {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

// parseFields builds a record from key=value pairs, keeping the order the
// keys were first given in. A repeated key keeps its first position and its
// last value.
func parseFields(pairs []string) (*model.Record, error) {
	fields := make(model.Fields, len(pairs))
	var order []string
	for _, p := range pairs {
		k, v, ok := splitField(p)
		if !ok {
			return nil, fmt.Errorf("invalid field %q (want key=value)", p)
		}
		if _, seen := fields[k]; !seen {
			order = append(order, k)
		}
		fields[k] = parseValue(v)
	}
	rec := &model.Record{Fields: fields}
	rec.SetFieldOrder(order)
	return rec, nil
}
