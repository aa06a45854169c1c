package guest

import (
	"encoding/json"

	"github.com/relaydb/wasmlib/pkg/wire"
)

// Txn is the default transaction reconstructed from a decoded header. Modules
// with stricter contracts define their own transaction type and constructor
// and hand them to Dispatch instead.
type Txn struct {
	header wire.Header
}

// NewTxn reconstructs a transaction from its header. It accepts any decoded
// header; rejecting malformed claims is the business of module-specific
// constructors.
func NewTxn(header wire.Header) (Txn, error) {
	return Txn{header: header}, nil
}

func (txn Txn) ID() string { return txn.header.ID }

func (txn Txn) Timestamp() int64 { return txn.header.Timestamp }

func (txn Txn) Claim() json.RawMessage { return txn.header.Claim }
