package model

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

// IdentityLength is the byte length of a ledger identity (an ed25519 public key).
const IdentityLength = 32

// Identity is an opaque fixed-size public identifier for a record owner or
// acting user. It is immutable once created and supplied by the wallet
// collaborator. The zero value is not a valid identity.
type Identity [IdentityLength]byte

// ParseIdentity parses a 0x-prefixed hex string into an Identity.
func ParseIdentity(s string) (Identity, error) {
	var id Identity
	b, err := parseFixedHex(s, IdentityLength)
	if err != nil {
		return id, fmt.Errorf("invalid identity %q: %w", s, err)
	}
	copy(id[:], b)
	return id, nil
}

// IdentityFromBytes copies b into an Identity. b must be exactly
// IdentityLength bytes.
func IdentityFromBytes(b []byte) (Identity, error) {
	var id Identity
	if len(b) != IdentityLength {
		return id, fmt.Errorf("identity must be %d bytes, got %d", IdentityLength, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// Bytes returns the identity as a byte slice.
func (id Identity) Bytes() []byte { return id[:] }

// IsZero reports whether the identity is the (invalid) zero value.
func (id Identity) IsZero() bool { return id == Identity{} }

// String renders the identity as 0x-prefixed hex.
func (id Identity) String() string { return "0x" + hex.EncodeToString(id[:]) }

// Short renders the truncated placeholder form used as a fallback label
// when no profile handle is available, e.g. "0x12ab..34cd".
func (id Identity) Short() string {
	full := hex.EncodeToString(id[:])
	return "0x" + full[:4] + ".." + full[len(full)-4:]
}

// parseFixedHex decodes a 0x-prefixed hex string of exactly n bytes.
func parseFixedHex(s string, n int) ([]byte, error) {
	raw, ok := strings.CutPrefix(s, "0x")
	if !ok {
		return nil, fmt.Errorf("missing 0x prefix")
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return nil, err
	}
	if len(b) != n {
		return nil, fmt.Errorf("want %d bytes, got %d", n, len(b))
	}
	return b, nil
}

// compareBytes is the deterministic byte ordering shared by Identity and
// Address sort tie-breaks.
func compareBytes(a, b []byte) int { return bytes.Compare(a, b) }
