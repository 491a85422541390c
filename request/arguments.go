package request

import (
	"encoding/json"
	"slices"
)

// IDsKey is the argument key carrying the target identifiers.
const IDsKey = "ids"

// Arguments is an immutable snapshot of a request's wire argument object.
// It is safe to share between goroutines.
type Arguments struct {
	ids       []uint64
	overrides map[string]Value
}

// IDs returns a copy of the target identifiers, never nil.
func (a Arguments) IDs() []uint64 {
	ids := make([]uint64, len(a.ids))
	copy(ids, a.ids)
	return ids
}

// Value returns the override stored under the wire key.
func (a Arguments) Value(key string) (Value, bool) {
	v, ok := a.overrides[key]
	return v, ok
}

// Keys returns the override keys in sorted order. "ids" is not included.
func (a Arguments) Keys() []string {
	keys := make([]string, 0, len(a.overrides))
	for k := range a.overrides {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Map renders the arguments as a plain JSON-compatible object.
func (a Arguments) Map() map[string]any {
	m := make(map[string]any, len(a.overrides)+1)
	for k, v := range a.overrides {
		m[k] = v.Interface()
	}
	m[IDsKey] = a.IDs()
	return m
}

// MarshalJSON always emits "ids", as an empty array when no targets are set.
func (a Arguments) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(a.overrides)+1)
	for k, v := range a.overrides {
		m[k] = v
	}
	m[IDsKey] = a.IDs()
	return json.Marshal(m)
}
