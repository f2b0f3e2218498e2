package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// CreatedTimeLayout is the wire format of createdTime: UTC RFC 3339 with
// millisecond precision.
const CreatedTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatCreatedTime renders t in CreatedTimeLayout.
func FormatCreatedTime(t time.Time) string {
	return t.UTC().Format(CreatedTimeLayout)
}

// Fields maps a field name to its JSON value.
type Fields map[string]any

// Clone returns a deep copy of f. Nested arrays and objects are copied too.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = cloneValue(vv)
		}
		return m
	case Fields:
		return t.Clone()
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = cloneValue(vv)
		}
		return s
	default:
		return v
	}
}

// Record is a single row of a remote table. ID and CreatedTime are assigned
// by the service and are empty until the record has been created remotely.
type Record struct {
	ID          string `json:"id,omitempty"`
	Fields      Fields `json:"fields"`
	CreatedTime string `json:"createdTime,omitempty"`

	// order holds field keys in the order they were decoded.
	order []string
}

// UnmarshalJSON decodes a record and remembers the wire order of its field keys.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          string          `json:"id"`
		Fields      json.RawMessage `json:"fields"`
		CreatedTime string          `json:"createdTime"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.ID = raw.ID
	r.CreatedTime = raw.CreatedTime
	r.Fields = nil
	r.order = nil

	trimmed := bytes.TrimSpace(raw.Fields)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	var fields Fields
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return fmt.Errorf("decoding fields: %w", err)
	}
	order, err := objectKeys(trimmed)
	if err != nil {
		return fmt.Errorf("decoding fields: %w", err)
	}
	r.Fields = fields
	r.order = order
	return nil
}

// MarshalJSON encodes a record with its fields in FieldNames order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if r.ID != "" {
		buf.WriteString(`"id":`)
		if err := writeJSON(&buf, r.ID); err != nil {
			return nil, err
		}
		buf.WriteByte(',')
	}
	if r.CreatedTime != "" {
		buf.WriteString(`"createdTime":`)
		if err := writeJSON(&buf, r.CreatedTime); err != nil {
			return nil, err
		}
		buf.WriteByte(',')
	}
	buf.WriteString(`"fields":`)
	if r.Fields == nil {
		buf.WriteString("null")
	} else {
		buf.WriteByte('{')
		for i, k := range r.FieldNames() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(&buf, k); err != nil {
				return nil, err
			}
			buf.WriteByte(':')
			if err := writeJSON(&buf, r.Fields[k]); err != nil {
				return nil, fmt.Errorf("encoding field %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// writeJSON appends v to buf without HTML escaping; callers going through
// json.Marshal still get escaping applied to the whole document.
func writeJSON(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1) // Encode's trailing newline
	return nil
}

// objectKeys returns the top-level keys of a JSON object in document order.
func objectKeys(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		keys = append(keys, key)
		// Skip the value.
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// FieldNames returns the keys present in r.Fields. Keys seen when the record
// was decoded keep their wire order; any others follow in sorted order.
func (r *Record) FieldNames() []string {
	if r == nil || len(r.Fields) == 0 {
		return []string{}
	}
	names := make([]string, 0, len(r.Fields))
	seen := make(map[string]bool, len(r.Fields))
	for _, k := range r.order {
		if _, ok := r.Fields[k]; ok && !seen[k] {
			names = append(names, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range r.Fields {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// SetFields replaces the record's fields with a copy of f.
func (r *Record) SetFields(f Fields) {
	r.Fields = f.Clone()
	r.order = nil
}

// Merge copies f into the record's fields, keeping existing keys in place.
func (r *Record) Merge(f Fields) {
	if r.Fields == nil {
		r.Fields = make(Fields, len(f))
	}
	for k, v := range f {
		r.Fields[k] = cloneValue(v)
	}
}

// SetFieldOrder records the key order FieldNames reports. Keys absent from
// the fields are ignored.
func (r *Record) SetFieldOrder(keys []string) {
	r.order = append([]string(nil), keys...)
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{
		ID:          r.ID,
		Fields:      r.Fields.Clone(),
		CreatedTime: r.CreatedTime,
	}
	if r.order != nil {
		out.order = append([]string(nil), r.order...)
	}
	return out
}

// CloneRecords deep-copies a slice of records. The result is never nil.
func CloneRecords(records []*Record) []*Record {
	out := make([]*Record, 0, len(records))
	for _, r := range records {
		out = append(out, r.Clone())
	}
	return out
}

// Attachment is the value shape of an attachment-typed field entry.
type Attachment struct {
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
}

// NewAttachment builds an attachment value. filename may be empty.
func NewAttachment(url, filename string) Attachment {
	return Attachment{URL: url, Filename: filename}
}

// BlankFields returns a Fields value with an empty string for each name.
func BlankFields(names []string) Fields {
	f := make(Fields, len(names))
	for _, n := range names {
		f[n] = ""
	}
	return f
}
