// Package manifest builds a canonical, verifiable manifest document
// from a deployment plan: a set of (selector, facet, code_hash) routes
// becomes a sorted leaf sequence, a Merkle root, and a per-route proof
// bundle.
//
// Two serialized views are produced: a compact fixed-width binary form
// (grounded on the constant-embedding style used for generated
// ABI/bytecode constants in
// contracts/deposit-contract/depositContract.go) and a descriptive
// JSON form. Both normalize to the same sorted route order and
// therefore the same root.
package manifest

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/routeforge/dispatch-core/codec"
	"github.com/routeforge/dispatch-core/merkle"
)

// Route is one (selector, facet, code_hash) tuple supplied as input to
// the manifest builder.
type Route struct {
	Selector codec.Selector
	Facet    codec.Address
	CodeHash codec.Digest
}

// RouteProof pairs a Route with the Merkle proof binding its leaf to
// the manifest root.
type RouteProof struct {
	Route Route
	Proof merkle.Proof
}

// Manifest is the canonical, verifiable output of Build: the sorted
// routes, each with its proof, and the derived root.
type Manifest struct {
	Version string
	Routes  []RouteProof
	Root    codec.Digest
}

var (
	// ErrEmptyManifest is returned when Build is called with no routes.
	ErrEmptyManifest = errors.New("manifest: route set is empty")
	// ErrDuplicateSelector is returned when two input routes share a selector.
	ErrDuplicateSelector = errors.New("manifest: duplicate selector")
	// ErrInvalidFacetAddress is returned for a zero facet address.
	ErrInvalidFacetAddress = errors.New("manifest: facet address must be non-zero")
	// ErrInvalidCodeHash is returned for a zero code hash.
	ErrInvalidCodeHash = errors.New("manifest: code hash must be non-zero")
)

// Build validates, sorts, and commits a route set into a Manifest.
func Build(routes []Route, version string) (*Manifest, error) {
	if len(routes) == 0 {
		return nil, ErrEmptyManifest
	}

	seen := make(map[codec.Selector]struct{}, len(routes))
	leaves := make([]merkle.Leaf, len(routes))
	for i, r := range routes {
		if _, dup := seen[r.Selector]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSelector, r.Selector)
		}
		seen[r.Selector] = struct{}{}

		if r.Facet.IsZero() {
			return nil, fmt.Errorf("%w: selector %s", ErrInvalidFacetAddress, r.Selector)
		}
		if r.CodeHash.IsZero() {
			return nil, fmt.Errorf("%w: selector %s", ErrInvalidCodeHash, r.Selector)
		}

		leaves[i] = merkle.Leaf{Selector: r.Selector, Facet: r.Facet, CodeHash: r.CodeHash}
	}

	tree, err := merkle.Build(leaves)
	if err != nil {
		return nil, fmt.Errorf("manifest: building tree: %w", err)
	}

	sortedLeaves := tree.Leaves()
	out := make([]RouteProof, len(sortedLeaves))
	for i, l := range sortedLeaves {
		proof, err := tree.ProofAt(i)
		if err != nil {
			return nil, fmt.Errorf("manifest: proof for index %d: %w", i, err)
		}
		out[i] = RouteProof{
			Route: Route{Selector: l.Selector, Facet: l.Facet, CodeHash: l.CodeHash},
			Proof: proof,
		}
	}

	return &Manifest{Version: version, Routes: out, Root: tree.Root()}, nil
}

// descriptiveDoc is the JSON-friendly mirror of Manifest; hex strings
// stand in for raw byte arrays so the document is human-readable.
type descriptiveDoc struct {
	Version string             `json:"version"`
	Root    string             `json:"root"`
	Routes  []descriptiveRoute `json:"routes"`
}

type descriptiveRoute struct {
	Selector  string   `json:"selector"`
	Facet     string   `json:"facet"`
	CodeHash  string   `json:"code_hash"`
	Siblings  []string `json:"proof_siblings"`
	Positions []bool   `json:"proof_positions"`
}

// MarshalDescriptive renders m as the self-describing JSON document
// form.
func (m *Manifest) MarshalDescriptive() ([]byte, error) {
	doc := descriptiveDoc{
		Version: m.Version,
		Root:    m.Root.String(),
		Routes:  make([]descriptiveRoute, len(m.Routes)),
	}
	for i, rp := range m.Routes {
		siblings := make([]string, len(rp.Proof.Siblings))
		for j, s := range rp.Proof.Siblings {
			siblings[j] = s.String()
		}
		doc.Routes[i] = descriptiveRoute{
			Selector:  rp.Route.Selector.String(),
			Facet:     rp.Route.Facet.String(),
			CodeHash:  rp.Route.CodeHash.String(),
			Siblings:  siblings,
			Positions: append([]bool{}, rp.Proof.Positions...),
		}
	}
	return json.MarshalIndent(doc, "", "  ")
}

// UnmarshalDescriptive parses a descriptive JSON document back into a
// Manifest. The root is taken from the document and not recomputed;
// callers that need to verify integrity should call Verify on the
// result.
func UnmarshalDescriptive(data []byte) (*Manifest, error) {
	var doc descriptiveDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("manifest: decoding descriptive document: %w", err)
	}

	root, err := decodeDigestHex(doc.Root)
	if err != nil {
		return nil, fmt.Errorf("manifest: decoding root: %w", err)
	}

	routes := make([]RouteProof, len(doc.Routes))
	for i, dr := range doc.Routes {
		sel, err := decodeSelectorHex(dr.Selector)
		if err != nil {
			return nil, fmt.Errorf("manifest: decoding selector %d: %w", i, err)
		}
		facet, err := decodeAddressHex(dr.Facet)
		if err != nil {
			return nil, fmt.Errorf("manifest: decoding facet %d: %w", i, err)
		}
		codeHash, err := decodeDigestHex(dr.CodeHash)
		if err != nil {
			return nil, fmt.Errorf("manifest: decoding code hash %d: %w", i, err)
		}
		siblings := make([]codec.Digest, len(dr.Siblings))
		for j, s := range dr.Siblings {
			d, err := decodeDigestHex(s)
			if err != nil {
				return nil, fmt.Errorf("manifest: decoding sibling %d/%d: %w", i, j, err)
			}
			siblings[j] = d
		}
		routes[i] = RouteProof{
			Route: Route{Selector: sel, Facet: facet, CodeHash: codeHash},
			Proof: merkle.Proof{Siblings: siblings, Positions: append([]bool{}, dr.Positions...)},
		}
	}

	return &Manifest{Version: doc.Version, Routes: routes, Root: root}, nil
}

// MarshalCompact renders m as a fixed-width big-endian binary document:
//
//	u16 version_len || version bytes
//	32  root
//	u32 route_count
//	for each route:
//	  4  selector
//	  20 facet
//	  32 code_hash
//	  u16 proof_len
//	  proof_len * 32 siblings
//	  ceil(proof_len/8) packed position bits (LSB = level 0)
func (m *Manifest) MarshalCompact() ([]byte, error) {
	if len(m.Version) > 0xFFFF {
		return nil, fmt.Errorf("manifest: version string too long to encode compactly")
	}

	buf := make([]byte, 0, 256)
	buf = appendUint16(buf, uint16(len(m.Version)))
	buf = append(buf, []byte(m.Version)...)
	buf = append(buf, m.Root[:]...)
	buf = appendUint32(buf, uint32(len(m.Routes)))

	for _, rp := range m.Routes {
		buf = append(buf, rp.Route.Selector[:]...)
		buf = append(buf, rp.Route.Facet[:]...)
		buf = append(buf, rp.Route.CodeHash[:]...)

		if len(rp.Proof.Siblings) > 0xFFFF {
			return nil, fmt.Errorf("manifest: proof too deep to encode compactly")
		}
		buf = appendUint16(buf, uint16(len(rp.Proof.Siblings)))
		for _, s := range rp.Proof.Siblings {
			buf = append(buf, s[:]...)
		}
		buf = append(buf, packPositions(rp.Proof.Positions)...)
	}

	return buf, nil
}

// UnmarshalCompact parses a compact binary document produced by
// MarshalCompact.
func UnmarshalCompact(data []byte) (*Manifest, error) {
	r := &byteReader{buf: data}

	versionLen, err := r.uint16()
	if err != nil {
		return nil, fmt.Errorf("manifest: reading version length: %w", err)
	}
	version, err := r.take(int(versionLen))
	if err != nil {
		return nil, fmt.Errorf("manifest: reading version: %w", err)
	}

	rootBytes, err := r.take(codec.DigestSize)
	if err != nil {
		return nil, fmt.Errorf("manifest: reading root: %w", err)
	}
	var root codec.Digest
	copy(root[:], rootBytes)

	routeCount, err := r.uint32()
	if err != nil {
		return nil, fmt.Errorf("manifest: reading route count: %w", err)
	}

	routes := make([]RouteProof, 0, routeCount)
	for i := uint32(0); i < routeCount; i++ {
		selBytes, err := r.take(codec.SelectorSize)
		if err != nil {
			return nil, fmt.Errorf("manifest: reading selector %d: %w", i, err)
		}
		var sel codec.Selector
		copy(sel[:], selBytes)

		facetBytes, err := r.take(codec.AddressSize)
		if err != nil {
			return nil, fmt.Errorf("manifest: reading facet %d: %w", i, err)
		}
		var facet codec.Address
		copy(facet[:], facetBytes)

		codeHashBytes, err := r.take(codec.DigestSize)
		if err != nil {
			return nil, fmt.Errorf("manifest: reading code hash %d: %w", i, err)
		}
		var codeHash codec.Digest
		copy(codeHash[:], codeHashBytes)

		proofLen, err := r.uint16()
		if err != nil {
			return nil, fmt.Errorf("manifest: reading proof length %d: %w", i, err)
		}
		siblings := make([]codec.Digest, proofLen)
		for j := uint16(0); j < proofLen; j++ {
			sBytes, err := r.take(codec.DigestSize)
			if err != nil {
				return nil, fmt.Errorf("manifest: reading sibling %d/%d: %w", i, j, err)
			}
			copy(siblings[j][:], sBytes)
		}
		positionBytes, err := r.take(packedLen(int(proofLen)))
		if err != nil {
			return nil, fmt.Errorf("manifest: reading positions %d: %w", i, err)
		}
		positions := unpackPositions(positionBytes, int(proofLen))

		routes = append(routes, RouteProof{
			Route: Route{Selector: sel, Facet: facet, CodeHash: codeHash},
			Proof: merkle.Proof{Siblings: siblings, Positions: positions},
		})
	}

	return &Manifest{Version: string(version), Routes: routes, Root: root}, nil
}

// Verify re-checks every route's proof against m.Root, returning an
// error naming the first route that fails.
func (m *Manifest) Verify() error {
	for _, rp := range m.Routes {
		raw := codec.EncodeLeaf(rp.Route.Selector, rp.Route.Facet, rp.Route.CodeHash)[1:]
		ok, err := merkle.Verify(raw, rp.Proof, m.Root)
		if err != nil {
			return fmt.Errorf("manifest: verifying selector %s: %w", rp.Route.Selector, err)
		}
		if !ok {
			return fmt.Errorf("%w: selector %s", merkle.ErrInvalidProof, rp.Route.Selector)
		}
	}
	return nil
}

func appendUint16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

func appendUint32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func packedLen(nbits int) int {
	return (nbits + 7) / 8
}

func packPositions(positions []bool) []byte {
	out := make([]byte, packedLen(len(positions)))
	for i, p := range positions {
		if p {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}

func unpackPositions(data []byte, n int) []bool {
	out := make([]bool, n)
	for i := 0; i < n; i++ {
		out[i] = data[i/8]&(1<<uint(i%8)) != 0
	}
	return out
}

type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) take(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("manifest: unexpected end of compact document")
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *byteReader) uint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *byteReader) uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}
