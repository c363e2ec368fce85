package codec

import (
	"encoding/binary"
	"errors"

	"golang.org/x/crypto/sha3"
)

// Domain-separator prefixes for the two hashed preimages in the tree.
// These prevent second-preimage confusion between a leaf and an
// internal node, per the leaf/node encoding contract.
const (
	leafDomain = 0x00
	nodeDomain = 0x01
)

// LeafSize is the exact byte length of an encoded leaf preimage:
// 1 domain byte + 4 selector + 20 facet + 32 code hash.
const LeafSize = 1 + SelectorSize + AddressSize + DigestSize

// NodeSize is the exact byte length of an encoded internal-node
// preimage: 1 domain byte + 32 left + 32 right.
const NodeSize = 1 + DigestSize + DigestSize

// Hash returns the keccak-256/SHA3 digest of data, matching the
// construction used throughout the ethereum ecosystem (and by
// shared/hashutil.Hash).
func Hash(data []byte) Digest {
	var out Digest
	h := sha3.NewLegacyKeccak256()
	// The hash.Hash interface never returns an error from Write or Sum.
	h.Write(data)
	h.Sum(out[:0])
	return out
}

// EncodeLeaf emits the 57-byte leaf preimage
// 0x00 || selector(4) || facet(20) || code_hash(32).
func EncodeLeaf(selector Selector, facet Address, codeHash Digest) []byte {
	buf := make([]byte, 0, LeafSize)
	buf = append(buf, leafDomain)
	buf = append(buf, selector[:]...)
	buf = append(buf, facet[:]...)
	buf = append(buf, codeHash[:]...)
	return buf
}

// EncodeLeafBytes prepends the leaf domain byte to a raw
// (selector || facet || code_hash) preimage, as used by proof
// verification where the caller supplies the un-prefixed tuple.
func EncodeLeafBytes(raw []byte) ([]byte, error) {
	if len(raw) != LeafSize-1 {
		return nil, errors.New("codec: leaf preimage has wrong length")
	}
	buf := make([]byte, 0, LeafSize)
	buf = append(buf, leafDomain)
	buf = append(buf, raw...)
	return buf, nil
}

// EncodeNode emits the 65-byte internal node preimage
// 0x01 || left(32) || right(32).
func EncodeNode(left, right Digest) []byte {
	buf := make([]byte, 0, NodeSize)
	buf = append(buf, nodeDomain)
	buf = append(buf, left[:]...)
	buf = append(buf, right[:]...)
	return buf
}

// HashLeaf is the composition Hash(EncodeLeaf(...)).
func HashLeaf(selector Selector, facet Address, codeHash Digest) Digest {
	return Hash(EncodeLeaf(selector, facet, codeHash))
}

// HashNode is the composition Hash(EncodeNode(left, right)).
func HashNode(left, right Digest) Digest {
	return Hash(EncodeNode(left, right))
}

// PackedEncoder builds a tightly-packed, length-prefix-free byte
// sequence for salt derivation. Addresses, digests and integers are
// appended at their fixed width; UTF-8 strings are packed verbatim
// with no length prefix. The encoder does not detect or reject
// ambiguous field sequences: adjacent strings split at different
// points ("ab"+"c" and "a"+"bc") produce the same bytes.
type PackedEncoder struct {
	buf []byte
}

// NewPackedEncoder returns an empty packed encoder.
func NewPackedEncoder() *PackedEncoder {
	return &PackedEncoder{}
}

// String appends the raw UTF-8 bytes of s with no length prefix.
func (e *PackedEncoder) String(s string) *PackedEncoder {
	e.buf = append(e.buf, []byte(s)...)
	return e
}

// Address appends the 20 raw bytes of a.
func (e *PackedEncoder) Address(a Address) *PackedEncoder {
	e.buf = append(e.buf, a[:]...)
	return e
}

// Digest appends the 32 raw bytes of d.
func (e *PackedEncoder) Digest(d Digest) *PackedEncoder {
	e.buf = append(e.buf, d[:]...)
	return e
}

// Uint64 appends n as 8 big-endian bytes.
func (e *PackedEncoder) Uint64(n uint64) *PackedEncoder {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], n)
	e.buf = append(e.buf, b[:]...)
	return e
}

// Bytes returns the packed byte sequence built so far.
func (e *PackedEncoder) Bytes() []byte {
	return e.buf
}

// Sum returns Hash(e.Bytes()).
func (e *PackedEncoder) Sum() Digest {
	return Hash(e.buf)
}
