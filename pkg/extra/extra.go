// Package extra implements the free-form metadata attached to baskets,
// orders and their items, and the ordered extra rows written by modifiers.
package extra

import (
	"encoding/json"
	"fmt"
	"maps"
)

// ReservedRowsKey is never a valid key in Data; extra rows are stored in
// their own column.
const ReservedRowsKey = "rows"

// Data is a JSON object of arbitrary values.
type Data map[string]any

// Clone returns a shallow copy. A nil Data clones to an empty map.
func (d Data) Clone() Data {
	out := make(Data, len(d))
	maps.Copy(out, d)
	return out
}

// Merge copies every key of other into d, overwriting existing keys.
func (d Data) Merge(other Data) Data {
	if d == nil {
		d = Data{}
	}
	maps.Copy(d, other)
	return d
}

// Get returns the value stored under key.
func (d Data) Get(key string) (any, bool) {
	v, ok := d[key]
	return v, ok
}

// Pop removes key and returns its previous value.
func (d Data) Pop(key string) (any, bool) {
	v, ok := d[key]
	if ok {
		delete(d, key)
	}
	return v, ok
}

// PopString removes key and returns it as a string. Non-string values are
// formatted with fmt; a missing key yields "".
func (d Data) PopString(key string) string {
	v, ok := d.Pop(key)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Validator checks caller-provided extra before it is persisted.
type Validator func(Data) error

// DefaultValidator rejects the reserved rows key.
func DefaultValidator(d Data) error {
	if _, ok := d[ReservedRowsKey]; ok {
		return fmt.Errorf("key %q is reserved", ReservedRowsKey)
	}
	for key := range d {
		if key == "" {
			return fmt.Errorf("empty keys are not allowed")
		}
	}
	return nil
}

// Decode parses a JSON object; empty input yields an empty Data.
func Decode(raw []byte) (Data, error) {
	d := Data{}
	if len(raw) == 0 {
		return d, nil
	}
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return d, nil
}
