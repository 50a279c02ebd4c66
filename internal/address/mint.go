package address

import (
	"crypto/rand"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// NewMint generates a fresh mint address: the public key of a random
// ed25519 scalar, base58 encoded.
func NewMint() (string, error) {
	var seed [64]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return "", fmt.Errorf("read random seed: %w", err)
	}
	s, err := edwards25519.NewScalar().SetUniformBytes(seed[:])
	if err != nil {
		return "", fmt.Errorf("derive scalar: %w", err)
	}
	pub := new(edwards25519.Point).ScalarBaseMult(s)
	return base58.Encode(pub.Bytes()), nil
}
