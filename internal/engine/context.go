package engine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Context is the accumulating execution context: the trigger payload plus
// every prior step's output, addressed by dot-separated paths. Values are
// JSON-shaped (maps, slices, strings, float64 numbers, bools). Steps only
// ever add keys at their configured result path; unrelated keys are never
// overwritten.
type Context map[string]any

// Get returns the value at a dot-separated path.
func (c Context) Get(path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = map[string]any(c)
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set writes a value at a dot-separated path, creating intermediate maps
// as needed.
func (c Context) Set(path string, v any) {
	parts := strings.Split(path, ".")
	m := map[string]any(c)
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = v
}

// String returns the string at path.
func (c Context) String(path string) (string, bool) {
	v, ok := c.Get(path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Bool returns the bool at path.
func (c Context) Bool(path string) (bool, bool) {
	v, ok := c.Get(path)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Int returns the number at path. JSON decoding produces float64, so both
// float64 and int values are accepted.
func (c Context) Int(path string) (int, bool) {
	v, ok := c.Get(path)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// Slice returns the slice at path. A nil value reads as an empty slice.
func (c Context) Slice(path string) ([]any, bool) {
	v, ok := c.Get(path)
	if !ok {
		return nil, false
	}
	if v == nil {
		return []any{}, true
	}
	s, ok := v.([]any)
	return s, ok
}

// Decode unmarshals the value at path into v.
func (c Context) Decode(path string, v any) error {
	val, ok := c.Get(path)
	if !ok {
		return fmt.Errorf("path %q not present in context", path)
	}
	data, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("failed to marshal context value at %q: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode context value at %q: %w", path, err)
	}
	return nil
}

// Clone returns a deep copy. Steps receive clones so concurrent branches
// can read without coordinating.
func (c Context) Clone() Context {
	return Context(cloneMap(c))
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// normalize converts an arbitrary step output into JSON-shaped values so
// the context stays uniformly addressable.
func normalize(v any) (any, error) {
	switch v.(type) {
	case nil, string, bool, float64, map[string]any, []any:
		return v, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize step output: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to normalize step output: %w", err)
	}
	return out, nil
}
