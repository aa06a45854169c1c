package internal

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256HexString keys caches by module content.
func SHA256HexString(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
