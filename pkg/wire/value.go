// Package wire defines the structured document model and payload codecs shared
// by guest modules and the host. Every payload crossing the boundary - headers,
// requests, responses, manifests and error payloads - is a UTF-8 JSON document;
// length is always carried alongside the pointer, never inferred from content.
package wire

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Value is a generic structured document: an object, array, string, number,
// boolean or null. The zero Value is None, the document model's null variant.
//
// Values are stored in their canonical decoded form (map[string]any, []any,
// string, float64, bool, nil) so that a Value always round-trips through its
// JSON encoding unchanged.
type Value struct {
	v any
}

// None is the absent value. Decoding an empty payload yields None, and None
// encodes to the canonical "null" token.
var None = Value{}

func String(s string) Value { return Value{s} }

func Number(f float64) Value { return Value{f} }

func Bool(b bool) Value { return Value{b} }

// List builds an array value from its elements.
func List(elems ...Value) Value {
	out := make([]any, len(elems))
	for i, e := range elems {
		out[i] = e.v
	}
	return Value{out}
}

// Object builds an object value from its fields.
func Object(fields map[string]Value) Value {
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		out[key] = value.v
	}
	return Value{out}
}

func (v Value) IsNone() bool { return v.v == nil }

func (v Value) AsString() (string, bool) {
	s, ok := v.v.(string)
	return s, ok
}

func (v Value) AsNumber() (float64, bool) {
	f, ok := v.v.(float64)
	return f, ok
}

func (v Value) AsBool() (bool, bool) {
	b, ok := v.v.(bool)
	return b, ok
}

func (v Value) AsList() ([]Value, bool) {
	elems, ok := v.v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]Value, len(elems))
	for i, e := range elems {
		out[i] = Value{e}
	}
	return out, true
}

func (v Value) AsObject() (map[string]Value, bool) {
	fields, ok := v.v.(map[string]any)
	if !ok {
		return nil, false
	}
	out := make(map[string]Value, len(fields))
	for key, value := range fields {
		out[key] = Value{value}
	}
	return out, true
}

// Get returns the named field of an object value, or None.
func (v Value) Get(key string) Value {
	fields, ok := v.v.(map[string]any)
	if !ok {
		return None
	}
	return Value{fields[key]}
}

func (v Value) Equal(other Value) bool {
	return reflect.DeepEqual(v.v, other.v)
}

func (v Value) String() string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v.v)
	}
	return string(data)
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.v)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &v.v)
}

// Unit is the empty response payload. It encodes to the canonical "null" token.
type Unit struct{}

func (Unit) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

func (*Unit) UnmarshalJSON([]byte) error { return nil }
