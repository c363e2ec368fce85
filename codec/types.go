// Package codec defines the fixed-width primitive types and the
// canonical byte encodings shared by the merkle, salt, manifest, and
// dispatcher packages.
package codec

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// SelectorSize is the byte width of a function Selector.
const SelectorSize = 4

// AddressSize is the byte width of an Address.
const AddressSize = 20

// DigestSize is the byte width of a Digest (keccak-256 output).
const DigestSize = 32

// Digest is a 32-byte keccak-256 output.
type Digest [DigestSize]byte

// String returns the 0x-prefixed hex form of the digest.
func (d Digest) String() string {
	return "0x" + hex.EncodeToString(d[:])
}

// IsZero reports whether every byte of the digest is zero.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// Selector is the 4-byte identifier of a routed function.
type Selector [SelectorSize]byte

// String returns the 0x-prefixed hex form of the selector.
func (s Selector) String() string {
	return "0x" + hex.EncodeToString(s[:])
}

// Address is a 20-byte account/contract identifier.
type Address [AddressSize]byte

// String returns the 0x-prefixed hex form of the address.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// IsZero reports whether the address is the zero address, the sentinel
// used throughout the dispatcher to mean "unrouted" or "removed".
func (a Address) IsZero() bool {
	return a == Address{}
}

// ParseAddress decodes a 0x-prefixed or bare hex string into an
// Address. An empty string decodes to the zero address, so CLI flags
// with no default can be left unset in non-production configurations.
func ParseAddress(s string) (Address, error) {
	var a Address
	b, err := decodeFixedHex(s, AddressSize)
	if err != nil {
		return a, fmt.Errorf("invalid address %q: %w", s, err)
	}
	copy(a[:], b)
	return a, nil
}

// ParseDigest decodes a 0x-prefixed or bare hex string into a Digest.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	b, err := decodeFixedHex(s, DigestSize)
	if err != nil {
		return d, fmt.Errorf("invalid digest %q: %w", s, err)
	}
	copy(d[:], b)
	return d, nil
}

// ParseSelector decodes a 0x-prefixed or bare hex string into a
// Selector.
func ParseSelector(s string) (Selector, error) {
	var sel Selector
	b, err := decodeFixedHex(s, SelectorSize)
	if err != nil {
		return sel, fmt.Errorf("invalid selector %q: %w", s, err)
	}
	copy(sel[:], b)
	return sel, nil
}

// decodeFixedHex decodes s (0x-prefixed or bare) and requires it
// decode to exactly width bytes. An empty string is accepted and
// returns width zero bytes.
func decodeFixedHex(s string, width int) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return make([]byte, width), nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != width {
		return nil, fmt.Errorf("want %d bytes, got %d", width, len(b))
	}
	return b, nil
}

// Epoch is a monotonically-non-decreasing manifest generation counter.
type Epoch uint64

// Timestamp is seconds since the epoch-0 reference used by the core;
// callers supply it explicitly rather than the core reading the clock,
// so that activation timing is fully deterministic in tests.
type Timestamp uint64
