package wire

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// DecodeText decodes a payload into raw text. Empty input yields the empty
// string. Input that parses as a document yields the document's string scalar
// when it is one, and the document's textual rendering otherwise. Input that
// does not parse as a document is taken as plain UTF-8 text; invalid UTF-8 is
// a decode error.
func DecodeText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}

	var value any
	if err := json.Unmarshal(data, &value); err == nil {
		if s, ok := value.(string); ok {
			return s, nil
		}
		rendered, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("failed to render document as text: %w", err)
		}
		return string(rendered), nil
	}

	if idx := invalidUTF8Index(data); idx >= 0 {
		return "", fmt.Errorf("invalid utf-8 string: byte 0x%02x at offset %d: %x", data[idx], idx, preview(data))
	}
	return string(data), nil
}

// invalidUTF8Index returns the offset of the first invalid byte, or -1.
func invalidUTF8Index(data []byte) int {
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return -1
}

// DecodeValue decodes a payload into a generic structured value. Empty input
// yields None; anything else must parse as a document.
func DecodeValue(data []byte) (Value, error) {
	if len(data) == 0 {
		return None, nil
	}

	var value Value
	if err := json.Unmarshal(data, &value); err != nil {
		return None, fmt.Errorf("failed to parse document: %w", err)
	}
	return value, nil
}

// EncodeText renders text as a document string scalar.
func EncodeText(s string) ([]byte, error) {
	return json.Marshal(s)
}

// EncodeValue renders a structured value. None renders as the canonical
// "null" token.
func EncodeValue(v Value) ([]byte, error) {
	return json.Marshal(v)
}

// internalErrorPayload is the fallback emitted if rendering an error payload
// itself fails. It must remain a literal so that this path cannot fail.
const internalErrorPayload = `{"error":"internal"}`

// ErrorPayload renders an error message as the boundary's single-field error
// document. It never fails: if the message cannot be rendered the fixed
// internal payload is returned instead.
func ErrorPayload(message string) []byte {
	payload, err := sjson.SetBytes([]byte(`{}`), "error", message)
	if err != nil {
		return []byte(internalErrorPayload)
	}
	return payload
}

// ErrorMessage extracts the message from an error payload document, reporting
// whether data is one. Used by hosts to tell failures apart from responses,
// since the boundary has exactly one return shape.
func ErrorMessage(data []byte) (string, bool) {
	if !gjson.ValidBytes(data) {
		return "", false
	}
	result := gjson.GetBytes(data, "error")
	if result.Type != gjson.String {
		return "", false
	}
	return result.Str, true
}

func preview(data []byte) []byte {
	if len(data) > 32 {
		return data[:32]
	}
	return data
}
