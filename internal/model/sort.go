package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SortByCreated returns a copy of records ordered newest first. Records whose
// createdTime does not parse sort after all dated records, in input order.
func SortByCreated(records []*Record) []*Record {
	out := append([]*Record(nil), records...)
	sort.SliceStable(out, func(i, j int) bool {
		ti, okI := createdAt(out[i])
		tj, okJ := createdAt(out[j])
		switch {
		case okI && okJ:
			return ti.After(tj)
		case okI:
			return true
		default:
			return false
		}
	})
	return out
}

func createdAt(r *Record) (time.Time, bool) {
	if r == nil || r.CreatedTime == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, r.CreatedTime)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SortByField returns a copy of records ordered by the case-insensitive
// string form of the given field. Missing values sort as the empty string.
func SortByField(records []*Record, field string) []*Record {
	out := append([]*Record(nil), records...)
	sort.SliceStable(out, func(i, j int) bool {
		return fieldSortKey(out[i], field) < fieldSortKey(out[j], field)
	})
	return out
}

func fieldSortKey(r *Record, field string) string {
	if r == nil {
		return ""
	}
	v, ok := r.Fields[field]
	if !ok || v == nil {
		return ""
	}
	return strings.ToLower(DisplayValue(v))
}

// DisplayValue renders a field value as plain text: arrays are comma-joined
// and numbers drop trailing zeros.
func DisplayValue(v any) string {
	switch k, norm := normalize(v); k {
	case kindNull:
		return ""
	case kindArray:
		items := norm.([]any)
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = DisplayValue(item)
		}
		return strings.Join(parts, ",")
	case kindObject:
		if m, ok := norm.(map[string]any); ok {
			if u, ok := m["url"].(string); ok {
				return u
			}
		}
		if a, ok := norm.(Attachment); ok {
			return a.URL
		}
		return fmt.Sprint(norm)
	default:
		return elementString(norm)
	}
}
