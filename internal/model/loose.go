package model

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Field lookups match values the way the service's browser clients do:
// a field holding the number 5 matches a query for "5". The rules below
// cover JSON-shaped values only.

type valueKind int

const (
	kindNull valueKind = iota
	kindBool
	kindNumber
	kindString
	kindArray
	kindObject
)

// Truthy reports whether v counts as a populated value. nil, false, 0, NaN
// and the empty string are not; every other value, including empty arrays
// and objects, is.
func Truthy(v any) bool {
	switch k, norm := normalize(v); k {
	case kindNull:
		return false
	case kindBool:
		return norm.(bool)
	case kindNumber:
		f := norm.(float64)
		return f != 0 && !math.IsNaN(f)
	case kindString:
		return norm.(string) != ""
	default:
		return true
	}
}

// LooseEqual compares two JSON values with type coercion: numbers equal
// numeric strings, booleans compare as 1 and 0, and arrays compare to
// scalars through their comma-joined string form. nil equals only nil.
// Two arrays or two objects compare structurally.
func LooseEqual(a, b any) bool {
	ka, na := normalize(a)
	kb, nb := normalize(b)
	return looseEqual(ka, na, kb, nb)
}

func looseEqual(ka valueKind, a any, kb valueKind, b any) bool {
	if ka == kindNull || kb == kindNull {
		return ka == kb
	}
	if ka == kb {
		switch ka {
		case kindNumber:
			return a.(float64) == b.(float64)
		case kindArray, kindObject:
			return reflect.DeepEqual(a, b)
		default:
			return a == b
		}
	}
	switch {
	case ka == kindBool:
		return looseEqual(kindNumber, boolNumber(a.(bool)), kb, b)
	case kb == kindBool:
		return looseEqual(ka, a, kindNumber, boolNumber(b.(bool)))
	case ka == kindNumber && kb == kindString:
		return a.(float64) == stringNumber(b.(string))
	case ka == kindString && kb == kindNumber:
		return stringNumber(a.(string)) == b.(float64)
	case ka == kindArray || ka == kindObject:
		return looseEqual(kindString, primitiveString(ka, a), kb, b)
	case kb == kindArray || kb == kindObject:
		return looseEqual(ka, a, kindString, primitiveString(kb, b))
	}
	return false
}

// normalize folds Go values into one representative type per JSON kind.
func normalize(v any) (valueKind, any) {
	switch t := v.(type) {
	case nil:
		return kindNull, nil
	case bool:
		return kindBool, t
	case string:
		return kindString, t
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return kindNumber, math.NaN()
		}
		return kindNumber, f
	case float64:
		return kindNumber, t
	case float32:
		return kindNumber, float64(t)
	case int:
		return kindNumber, float64(t)
	case int64:
		return kindNumber, float64(t)
	case int32:
		return kindNumber, float64(t)
	case []any:
		return kindArray, t
	case map[string]any:
		return kindObject, t
	case Fields:
		return kindObject, map[string]any(t)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return kindNull, nil
		}
		return normalize(rv.Elem().Interface())
	case reflect.Int8, reflect.Int16:
		return kindNumber, float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return kindNumber, float64(rv.Uint())
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return kindArray, out
	}
	return kindObject, v
}

func boolNumber(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// stringNumber converts s to a number the way a browser would: surrounding
// whitespace is ignored, the empty string is zero and junk is NaN.
func stringNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsInf(f, 0) && !strings.ContainsAny(s, "0123456789") {
			// ParseFloat accepts "inf"; browsers do not.
			return math.NaN()
		}
		return f
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "0x") || strings.HasPrefix(lower, "0o") || strings.HasPrefix(lower, "0b") {
		if n, err := strconv.ParseInt(s, 0, 64); err == nil {
			return float64(n)
		}
	}
	return math.NaN()
}

func primitiveString(k valueKind, v any) string {
	if k == kindObject {
		return "[object Object]"
	}
	items := v.([]any)
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = elementString(item)
	}
	return strings.Join(parts, ",")
}

func elementString(v any) string {
	switch k, norm := normalize(v); k {
	case kindNull:
		return ""
	case kindBool:
		return strconv.FormatBool(norm.(bool))
	case kindNumber:
		return formatNumber(norm.(float64))
	case kindString:
		return norm.(string)
	default:
		return primitiveString(k, norm)
	}
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
