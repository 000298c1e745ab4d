package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Blob holds parsed JSON data. Numbers are kept as json.Number so values
// round-trip without precision loss. The zero Blob is an empty object.
type Blob struct {
	value any
	null  bool
}

// ParseBlob parses a stored JSON value. Empty input (a NULL column) parses
// to an empty object; a literal null stays null.
func ParseBlob(data []byte) (Blob, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Blob{value: map[string]any{}}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return Blob{}, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Blob{}, fmt.Errorf("trailing data after JSON value")
	}
	return Blob{value: v, null: v == nil}, nil
}

// NewBlob wraps an already decoded value. The value is deep copied and a
// nil value is JSON null.
func NewBlob(v any) Blob {
	return Blob{value: deepCopy(v), null: v == nil}
}

// Value returns a deep copy of the parsed value, nil for JSON null.
func (b Blob) Value() any {
	if b.null {
		return nil
	}
	if b.value == nil {
		return map[string]any{}
	}
	return deepCopy(b.value)
}

// IsNull reports whether the blob is JSON null.
func (b Blob) IsNull() bool { return b.null }

// Object returns the blob as a JSON object. ok is false for non-objects.
func (b Blob) Object() (map[string]any, bool) {
	m, ok := b.Value().(map[string]any)
	return m, ok
}

// IsObject reports whether the blob is a JSON object.
func (b Blob) IsObject() bool {
	if b.null {
		return false
	}
	if b.value == nil {
		return true
	}
	_, ok := b.value.(map[string]any)
	return ok
}

// Equal reports whether both blobs encode the same JSON value.
func (b Blob) Equal(other Blob) bool {
	x, errX := json.Marshal(b)
	y, errY := json.Marshal(other)
	return errX == nil && errY == nil && bytes.Equal(x, y)
}

func (b Blob) String() string {
	data, err := json.Marshal(b)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func (b Blob) MarshalJSON() ([]byte, error) {
	if b.null {
		return []byte("null"), nil
	}
	if b.value == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(b.value)
}

func (b *Blob) UnmarshalJSON(data []byte) error {
	parsed, err := ParseBlob(data)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = deepCopy(val)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = deepCopy(val)
		}
		return s
	default:
		return v
	}
}
