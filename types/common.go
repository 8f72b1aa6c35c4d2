// Package types defines the data model shared by every component of the
// blob indexer: the beacon/execution wire shapes consumed from external
// services (§6), the entities submitted to the downstream indexer API, and
// the durable sync checkpoint.
package types

import (
	"encoding/hex"
	"fmt"
)

const (
	// HashLength is the byte length of a 32-byte hash (block root, tx hash,
	// blob versioned hash, ...).
	HashLength = 32
	// AddressLength is the byte length of a 20-byte execution-layer address.
	AddressLength = 20
)

// Hash represents a 32-byte hash value.
type Hash [HashLength]byte

// Address represents a 20-byte execution-layer account address.
type Address [AddressLength]byte

// BytesToHash converts bytes to a Hash, left-padding if shorter than 32 bytes
// and truncating from the left if longer.
func BytesToHash(b []byte) Hash {
	var h Hash
	h.SetBytes(b)
	return h
}

// HexToHash converts a "0x"-prefixed (or bare) hex string to a Hash.
func HexToHash(s string) Hash {
	return BytesToHash(fromHex(s))
}

// Bytes returns the byte slice backing the hash.
func (h Hash) Bytes() []byte { return h[:] }

// Hex returns the "0x"-prefixed hex representation of the hash.
func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

// String implements fmt.Stringer.
func (h Hash) String() string { return h.Hex() }

// IsZero reports whether the hash is the all-zero value.
func (h Hash) IsZero() bool { return h == Hash{} }

// SetBytes sets the hash from b, left-padding or truncating as needed.
func (h *Hash) SetBytes(b []byte) {
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
}

// MarshalText implements encoding.TextMarshaler so Hash round-trips through
// JSON as a hex string, matching the beacon/execution API wire format.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	b := fromHex(string(text))
	if len(b) != HashLength {
		return fmt.Errorf("types: invalid hash length %d, want %d", len(b), HashLength)
	}
	copy(h[:], b)
	return nil
}

// BytesToAddress converts bytes to an Address, left-padding as needed.
func BytesToAddress(b []byte) Address {
	var a Address
	a.SetBytes(b)
	return a
}

// HexToAddress converts a "0x"-prefixed hex string to an Address.
func HexToAddress(s string) Address {
	return BytesToAddress(fromHex(s))
}

// Bytes returns the byte slice backing the address.
func (a Address) Bytes() []byte { return a[:] }

// Hex returns the "0x"-prefixed hex representation of the address.
func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

// String implements fmt.Stringer.
func (a Address) String() string { return a.Hex() }

// IsZero reports whether the address is the all-zero value.
func (a Address) IsZero() bool { return a == Address{} }

// SetBytes sets the address from b, left-padding or truncating as needed.
func (a *Address) SetBytes(b []byte) {
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	b := fromHex(string(text))
	if len(b) != AddressLength {
		return fmt.Errorf("types: invalid address length %d, want %d", len(b), AddressLength)
	}
	copy(a[:], b)
	return nil
}

func fromHex(s string) []byte {
	if has0xPrefix(s) {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, _ := hex.DecodeString(s)
	return b
}

func has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}
