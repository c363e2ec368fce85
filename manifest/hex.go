package manifest

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/routeforge/dispatch-core/codec"
)

func stripHexPrefix(s string) string {
	return strings.TrimPrefix(s, "0x")
}

func decodeDigestHex(s string) (codec.Digest, error) {
	var d codec.Digest
	b, err := hex.DecodeString(stripHexPrefix(s))
	if err != nil {
		return d, err
	}
	if len(b) != codec.DigestSize {
		return d, fmt.Errorf("expected %d bytes, got %d", codec.DigestSize, len(b))
	}
	copy(d[:], b)
	return d, nil
}

func decodeAddressHex(s string) (codec.Address, error) {
	var a codec.Address
	b, err := hex.DecodeString(stripHexPrefix(s))
	if err != nil {
		return a, err
	}
	if len(b) != codec.AddressSize {
		return a, fmt.Errorf("expected %d bytes, got %d", codec.AddressSize, len(b))
	}
	copy(a[:], b)
	return a, nil
}

func decodeSelectorHex(s string) (codec.Selector, error) {
	var sel codec.Selector
	b, err := hex.DecodeString(stripHexPrefix(s))
	if err != nil {
		return sel, err
	}
	if len(b) != codec.SelectorSize {
		return sel, fmt.Errorf("expected %d bytes, got %d", codec.SelectorSize, len(b))
	}
	copy(sel[:], b)
	return sel, nil
}
