package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeText(t *testing.T) {
	cases := []struct {
		Name     string
		Input    []byte
		Expected string
		Err      string
	}{
		{
			Name:     "empty input yields empty text",
			Input:    nil,
			Expected: "",
		},
		{
			Name:     "document string scalar",
			Input:    []byte(`"Hello, World!"`),
			Expected: "Hello, World!",
		},
		{
			Name:     "non-text document renders as text",
			Input:    []byte(`{"greeting":"hi"}`),
			Expected: `{"greeting":"hi"}`,
		},
		{
			Name:     "raw text falls through",
			Input:    []byte("not a document"),
			Expected: "not a document",
		},
		{
			Name:  "invalid utf-8 is a decode error",
			Input: []byte{0xff, 0xfe, 0xfd},
			Err:   "invalid utf-8",
		},
		{
			Name:  "invalid utf-8 error names the offending byte",
			Input: []byte{'a', 'b', 0xff, 'c'},
			Err:   "byte 0xff at offset 2",
		},
	}

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			actual, err := DecodeText(tc.Input)
			if tc.Err != "" {
				require.ErrorContains(t, err, tc.Err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.Expected, actual)
		})
	}
}

func TestDecodeValue(t *testing.T) {
	t.Run("empty input yields none", func(t *testing.T) {
		value, err := DecodeValue(nil)
		require.NoError(t, err)
		require.True(t, value.IsNone())
	})

	t.Run("parse failure is a decode error", func(t *testing.T) {
		_, err := DecodeValue([]byte("{not json"))
		require.ErrorContains(t, err, "failed to parse document")
	})

	t.Run("object document", func(t *testing.T) {
		value, err := DecodeValue([]byte(`{"name":"relay","count":3}`))
		require.NoError(t, err)

		name, ok := value.Get("name").AsString()
		require.True(t, ok)
		require.Equal(t, "relay", name)

		count, ok := value.Get("count").AsNumber()
		require.True(t, ok)
		require.Equal(t, float64(3), count)
	})
}

func TestValueRoundTrip(t *testing.T) {
	values := []Value{
		None,
		String("hello"),
		Number(42.5),
		Bool(true),
		List(String("a"), Number(1), Bool(false)),
		Object(map[string]Value{
			"nested": List(None, String("x")),
			"flag":   Bool(true),
		}),
	}

	for _, value := range values {
		t.Run(value.String(), func(t *testing.T) {
			encoded, err := EncodeValue(value)
			require.NoError(t, err)

			decoded, err := DecodeValue(encoded)
			require.NoError(t, err)
			require.True(t, value.Equal(decoded), "expected %s to round-trip, got %s", value, decoded)
		})
	}
}

func TestTextRoundTrip(t *testing.T) {
	for _, text := range []string{"", "hello", `quo"ted`, "unicode: héllo"} {
		encoded, err := EncodeText(text)
		require.NoError(t, err)

		decoded, err := DecodeText(encoded)
		require.NoError(t, err)
		require.Equal(t, text, decoded)
	}
}

func TestUnitEncodesToNull(t *testing.T) {
	data, err := json.Marshal(Unit{})
	require.NoError(t, err)
	require.Equal(t, "null", string(data))
}

func TestErrorPayload(t *testing.T) {
	cases := []struct {
		Name    string
		Message string
	}{
		{Name: "plain message", Message: "something went wrong"},
		{Name: "message with quotes", Message: `bad value: "42"`},
		{Name: "empty message", Message: ""},
		{Name: "message with newlines", Message: "line one\nline two"},
	}

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			payload := ErrorPayload(tc.Message)
			require.True(t, json.Valid(payload), "payload must be a valid document: %s", payload)

			message, ok := ErrorMessage(payload)
			require.True(t, ok)
			require.Equal(t, tc.Message, message)
		})
	}

	t.Run("success payloads are not error payloads", func(t *testing.T) {
		for _, payload := range [][]byte{
			[]byte(`"Hello, World!"`),
			[]byte(`{"result":1}`),
			[]byte(`null`),
			[]byte(`not a document`),
		} {
			_, ok := ErrorMessage(payload)
			assert.False(t, ok, "payload %s should not decode as an error", payload)
		}
	})
}

func TestDecodeHeader(t *testing.T) {
	t.Run("empty header is terminal", func(t *testing.T) {
		_, err := DecodeHeader(nil)
		require.ErrorIs(t, err, ErrMissingHeader)
	})

	t.Run("malformed header", func(t *testing.T) {
		_, err := DecodeHeader([]byte("{"))
		require.ErrorContains(t, err, "malformed transaction header")
	})

	t.Run("round trip", func(t *testing.T) {
		header := Header{
			ID:        "txn-1234",
			Timestamp: 1700000000,
			Claim:     json.RawMessage(`{"scope":"/a"}`),
		}

		encoded, err := EncodeHeader(header)
		require.NoError(t, err)

		decoded, err := DecodeHeader(encoded)
		require.NoError(t, err)
		require.Equal(t, header, decoded)
	})
}

func TestDecodeManifest(t *testing.T) {
	manifest, err := DecodeManifest([]byte(`{
		"schema": {"id": "/a", "version": "0.1.0", "dependencies": ["/b"]},
		"routes": [{"path": "/hello", "export": "hello"}]
	}`))
	require.NoError(t, err)

	require.Equal(t, "/a", manifest.Schema.ID)
	require.Equal(t, "0.1.0", manifest.Schema.Version)
	require.Equal(t, []string{"/b"}, manifest.Schema.Dependencies)
	require.Equal(t, []RouteExport{{Path: "/hello", Export: "hello"}}, manifest.Routes)

	export, ok := manifest.Route("/hello")
	require.True(t, ok)
	require.Equal(t, "hello", export)

	_, ok = manifest.Route("/missing")
	require.False(t, ok)

	_, err = DecodeManifest(nil)
	require.ErrorContains(t, err, "empty manifest")
}
