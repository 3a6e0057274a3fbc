// Package models defines the clinical fact set representation shared by the
// fact extractor, the accumulator, and the rule engines.
package models

import "encoding/json"

// FactSet maps clinical field names to extracted values. A nil value means
// "unknown": the absence of information, which must never be conflated with a
// negative finding (false/0). Values are bool, int/float64 (numbers decoded
// from JSON arrive as float64), or string.
type FactSet map[string]any

// Known reports whether the field holds a non-null value.
func (f FactSet) Known(field string) bool {
	v, ok := f[field]
	return ok && v != nil
}

// Bool returns the field as a boolean. The second return is false when the
// field is unknown or not a boolean.
func (f FactSet) Bool(field string) (bool, bool) {
	v, ok := f[field]
	if !ok || v == nil {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// IsTrue reports whether the field is explicitly known to be true.
func (f FactSet) IsTrue(field string) bool {
	b, ok := f.Bool(field)
	return ok && b
}

// Int returns the field as an integer, accepting the numeric types a JSON
// round-trip can produce. The second return is false when unknown or non-numeric.
func (f FactSet) Int(field string) (int, bool) {
	v, ok := f[field]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}

// String returns the field as a string. The second return is false when the
// field is unknown or not a string.
func (f FactSet) String(field string) (string, bool) {
	v, ok := f[field]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Clone returns a shallow copy of the fact set. Values are scalars, so a
// shallow copy is a full copy.
func (f FactSet) Clone() FactSet {
	out := make(FactSet, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
