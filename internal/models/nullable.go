package models

import (
	"bytes"
	"encoding/json"
)

// Nullable is a patch field with three states: absent (leave the stored
// value), null (clear it) and set (replace it).
type Nullable[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Set returns a Nullable carrying v.
func Set[T any](v T) Nullable[T] {
	return Nullable[T]{Set: true, Value: v}
}

// Null returns a Nullable that clears the stored value.
func Null[T any]() Nullable[T] {
	return Nullable[T]{Set: true, Null: true}
}

// Replaces reports whether the field carries a new value.
func (n Nullable[T]) Replaces() bool {
	return n.Set && !n.Null
}

// Clears reports whether the field is an explicit null.
func (n Nullable[T]) Clears() bool {
	return n.Set && n.Null
}

// UnmarshalJSON is only invoked when the key is present, which is what marks
// the field as set.
func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Null = true
		var zero T
		n.Value = zero
		return nil
	}
	n.Null = false
	return json.Unmarshal(data, &n.Value)
}

// MarshalJSON writes null for both absent and cleared fields.
func (n Nullable[T]) MarshalJSON() ([]byte, error) {
	if !n.Replaces() {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}
