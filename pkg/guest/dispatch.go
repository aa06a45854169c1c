package guest

import (
	"fmt"

	"github.com/davidmdm/x/xruntime"

	"github.com/relaydb/wasmlib/internal/wasm"
	"github.com/relaydb/wasmlib/pkg/wire"
)

// RequestPayload enumerates the payload kinds a route can accept: raw text or
// a generic structured value.
type RequestPayload interface {
	string | wire.Value
}

// ResponsePayload enumerates the payload kinds a route can produce.
type ResponsePayload interface {
	string | wire.Value | wire.Unit
}

// Deferred is a handler's in-progress computation. The dispatcher blocks on
// it until it resolves; resolution may fail independently of the handler
// accepting the request.
type Deferred[Res any] func() (Res, error)

// Resolve wraps an already-computed response as a resolved Deferred.
func Resolve[Res any](res Res) Deferred[Res] {
	return func() (Res, error) { return res, nil }
}

// Handler serves a single route. Handle may reject the request up front by
// returning an error, or return a Deferred whose resolution fails later; the
// boundary does not distinguish the two.
type Handler[Txn, Req, Res any] interface {
	Handle(txn Txn, req Req) (Deferred[Res], error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc[Txn, Req, Res any] func(txn Txn, req Req) (Deferred[Res], error)

func (f HandlerFunc[Txn, Req, Res]) Handle(txn Txn, req Req) (Deferred[Res], error) {
	return f(txn, req)
}

// Dispatch is the generic call path for one route. Given raw (pointer, length)
// pairs for the transaction header and request body, it decodes both, builds
// the transaction via newTxn, invokes the handler and blocks on its deferred
// computation, then leaks the encoded response and returns its packed
// (pointer, length) pair.
//
// Every failure along the way is encoded as an error payload and returned
// through the same channel: at the ABI level the call always succeeds and the
// host tells success from failure only by inspecting the payload. The host
// owns the returned buffer and must eventually release it.
//
// A guest module instantiates Dispatch once per exported route; each
// instantiation is wired to the export named in the module's route table.
func Dispatch[Txn any, Req RequestPayload, Res ResponsePayload](
	handler Handler[Txn, Req, Res],
	newTxn func(wire.Header) (Txn, error),
	headerPtr uint32, headerLen int32,
	bodyPtr uint32, bodyLen int32,
) wasm.Buffer {
	response, err := dispatch(handler, newTxn, headerPtr, headerLen, bodyPtr, bodyLen)
	if err != nil {
		return Leak(wire.ErrorPayload(err.Error()))
	}
	return Leak(response)
}

func dispatch[Txn any, Req RequestPayload, Res ResponsePayload](
	handler Handler[Txn, Req, Res],
	newTxn func(wire.Header) (Txn, error),
	headerPtr uint32, headerLen int32,
	bodyPtr uint32, bodyLen int32,
) (response []byte, err error) {
	defer func() {
		if e := recover(); e != nil {
			err = fmt.Errorf("handler panic: %v: %v", e, xruntime.CallStack(-1))
		}
	}()

	header, err := wire.DecodeHeader(read(headerPtr, headerLen))
	if err != nil {
		return nil, err
	}

	txn, err := newTxn(header)
	if err != nil {
		return nil, fmt.Errorf("failed to construct transaction: %w", err)
	}

	req, err := decodeRequest[Req](read(bodyPtr, bodyLen))
	if err != nil {
		return nil, err
	}

	deferred, err := handler.Handle(txn, req)
	if err != nil {
		return nil, err
	}

	res, err := deferred()
	if err != nil {
		return nil, err
	}

	response, err = encodeResponse(res)
	if err != nil {
		return nil, fmt.Errorf("internal: failed to encode response: %w", err)
	}
	return response, nil
}

func decodeRequest[Req RequestPayload](data []byte) (Req, error) {
	var req Req
	var err error

	switch out := any(&req).(type) {
	case *string:
		*out, err = wire.DecodeText(data)
	case *wire.Value:
		*out, err = wire.DecodeValue(data)
	}
	return req, err
}

func encodeResponse[Res ResponsePayload](res Res) ([]byte, error) {
	switch value := any(res).(type) {
	case string:
		return wire.EncodeText(value)
	case wire.Value:
		return wire.EncodeValue(value)
	default:
		return wire.EncodeValue(wire.None)
	}
}
