package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingHeader is returned when a call arrives with an empty transaction
// header buffer. No transaction can be constructed without one.
var ErrMissingHeader = errors.New("missing transaction header")

// Header is the host-defined transaction context passed with every call.
// The guest reconstructs it from its decoded form but does not interpret it
// beyond the accessors below; in particular the claim is carried opaquely.
type Header struct {
	ID        string          `json:"id"`
	Timestamp int64           `json:"timestamp"`
	Claim     json.RawMessage `json:"claim,omitempty"`
}

// DecodeHeader decodes a transaction header document. Unlike request bodies,
// an empty header is an error: it is terminal for the call.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) == 0 {
		return Header{}, ErrMissingHeader
	}

	var header Header
	if err := json.Unmarshal(data, &header); err != nil {
		return Header{}, fmt.Errorf("malformed transaction header: %w", err)
	}
	return header, nil
}

// EncodeHeader renders a header for transport into guest memory. Used by
// hosts; guests only ever decode headers.
func EncodeHeader(header Header) ([]byte, error) {
	return json.Marshal(header)
}
