package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeFillID computes a deterministic fill_id using SHA256.
// Formula: SHA256(mint|seq)
// Returns hex-encoded hash (64 characters).
func ComputeFillID(mint string, seq int64) string {
	data := fmt.Sprintf("%s|%d", mint, seq)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
