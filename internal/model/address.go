package model

import (
	"encoding/hex"
	"fmt"
)

// AddressLength is the byte length of a derived storage address.
const AddressLength = 32

// Address is a fixed-length storage address on the remote ledger. Addresses
// are never stored locally; they are recomputed from owner identity and
// semantic seeds whenever needed.
type Address [AddressLength]byte

// ParseAddress parses a 0x-prefixed hex string into an Address.
func ParseAddress(s string) (Address, error) {
	var a Address
	b, err := parseFixedHex(s, AddressLength)
	if err != nil {
		return a, fmt.Errorf("invalid address %q: %w", s, err)
	}
	copy(a[:], b)
	return a, nil
}

// AddressFromBytes copies b into an Address. b must be exactly
// AddressLength bytes.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressLength {
		return a, fmt.Errorf("address must be %d bytes, got %d", AddressLength, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// Bytes returns the address as a byte slice.
func (a Address) Bytes() []byte { return a[:] }

// IsZero reports whether the address is the zero value.
func (a Address) IsZero() bool { return a == Address{} }

// String renders the address as 0x-prefixed hex.
func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

// Less reports whether a orders before b in the deterministic byte order
// used for sort tie-breaks.
func (a Address) Less(b Address) bool { return compareBytes(a[:], b[:]) < 0 }
