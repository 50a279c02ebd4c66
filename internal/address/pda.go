// Package address derives Solana account addresses for curves and agents.
package address

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// DefaultProgramID is the agent-pump program address.
const DefaultProgramID = "Pump111111111111111111111111111111111111111"

const (
	curveSeed = "curve"
	agentSeed = "agent"

	maxSeedLen = 32
	pdaMarker  = "ProgramDerivedAddress"
)

var (
	// ErrNoViableBump is returned when every bump seed yields an on-curve point.
	ErrNoViableBump = errors.New("no viable bump seed")

	// ErrSeedTooLong is returned for a seed longer than 32 bytes.
	ErrSeedTooLong = errors.New("seed exceeds 32 bytes")
)

// Deriver derives program addresses for one program.
type Deriver struct {
	programID []byte
}

// NewDeriver creates a Deriver for a base58 program id.
func NewDeriver(programID string) (*Deriver, error) {
	raw, err := decodeKey(programID)
	if err != nil {
		return nil, fmt.Errorf("program id: %w", err)
	}
	return &Deriver{programID: raw}, nil
}

// CurveAddress derives the curve account for a mint: seeds ["curve", mint].
func (d *Deriver) CurveAddress(mint string) (string, error) {
	raw, err := decodeKey(mint)
	if err != nil {
		return "", fmt.Errorf("mint: %w", err)
	}
	addr, _, err := FindProgramAddress([][]byte{[]byte(curveSeed), raw}, d.programID)
	return addr, err
}

// AgentAddress derives the agent account for an agent id: seeds ["agent", id].
func (d *Deriver) AgentAddress(agentID string) (string, error) {
	addr, _, err := FindProgramAddress([][]byte{[]byte(agentSeed), []byte(agentID)}, d.programID)
	return addr, err
}

// FindProgramAddress derives a Program Derived Address using the Solana algorithm.
// Bumps are tried from 255 down; the first hash that is not a valid ed25519
// point wins.
func FindProgramAddress(seeds [][]byte, programID []byte) (string, uint8, error) {
	for _, seed := range seeds {
		if len(seed) > maxSeedLen {
			return "", 0, ErrSeedTooLong
		}
	}

	for bump := 255; bump > 0; bump-- {
		data := make([]byte, 0, 64+len(programID)+len(pdaMarker))
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, byte(bump))
		data = append(data, programID...)
		data = append(data, pdaMarker...)

		hash := sha256.Sum256(data)
		if !IsOnCurve(hash[:]) {
			return base58.Encode(hash[:]), uint8(bump), nil
		}
	}

	return "", 0, ErrNoViableBump
}

// IsOnCurve reports whether a 32-byte string decodes to an ed25519 point.
func IsOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

func decodeKey(s string) ([]byte, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decode base58 %q: %w", s, err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("key %q is %d bytes, want 32", s, len(raw))
	}
	return raw, nil
}
