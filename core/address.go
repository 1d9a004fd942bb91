// Package core provides the shared identity types used across the
// roomwire protocol: account addresses and their opaque transport key
// form.
package core

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressHexLen is the number of hex characters in an address, not
// counting the "0x" prefix.
const AddressHexLen = 40

// Address is a hex-encoded account identifier ("0x" followed by 40 hex
// characters). The address domain is case-insensitive: two addresses
// differing only in hex casing identify the same account. Compare with
// Equal, never with ==, unless both sides are known to be normalized.
type Address string

// Normalize returns the canonical lowercase form of the address.
func (a Address) Normalize() Address {
	return Address(strings.ToLower(string(a)))
}

// Equal reports whether two addresses identify the same account,
// ignoring hex casing.
func (a Address) Equal(b Address) bool {
	return strings.EqualFold(string(a), string(b))
}

// String returns the address as a plain string.
func (a Address) String() string {
	return string(a)
}

// Valid reports whether the address is well-formed: "0x" prefix
// followed by exactly 40 hex characters.
func (a Address) Valid() bool {
	s := string(a)
	if len(s) != 2+AddressHexLen || (s[:2] != "0x" && s[:2] != "0X") {
		return false
	}
	_, err := hex.DecodeString(s[2:])
	return err == nil
}

// Key returns the address's opaque 32-byte transport key form: the
// 20 address bytes left-padded with zeros. Transports index message
// history by this key, not by the display address.
func (a Address) Key() (AddressKey, error) {
	var key AddressKey
	if !a.Valid() {
		return key, fmt.Errorf("invalid address %q", string(a))
	}
	raw, err := hex.DecodeString(strings.ToLower(string(a))[2:])
	if err != nil {
		return key, fmt.Errorf("invalid address %q: %w", string(a), err)
	}
	copy(key[AddressKeySize-len(raw):], raw)
	return key, nil
}

// ParseAddress validates and normalizes an address string.
func ParseAddress(s string) (Address, error) {
	a := Address(s)
	if !a.Valid() {
		return "", fmt.Errorf("invalid address %q: want 0x followed by %d hex chars", s, AddressHexLen)
	}
	return a.Normalize(), nil
}

// AddressKeySize is the size of an AddressKey in bytes.
const AddressKeySize = 32

// AddressKey is the 32-byte opaque key form of an address used by
// transports to index message history.
type AddressKey [AddressKeySize]byte

// String returns the hex-encoded representation of the key.
func (k AddressKey) String() string {
	return hex.EncodeToString(k[:])
}

// IsZero returns true if the key is all zeros (uninitialized).
func (k AddressKey) IsZero() bool {
	for _, b := range k {
		if b != 0 {
			return false
		}
	}
	return true
}

// Address recovers the display address from the key's low 20 bytes.
func (k AddressKey) Address() Address {
	return Address("0x" + hex.EncodeToString(k[AddressKeySize-AddressHexLen/2:]))
}
