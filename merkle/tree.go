// Package merkle implements the core's deterministic ordered Merkle
// tree: leaf sorting, level-by-level construction with last-odd-node
// self-duplication, per-leaf proof extraction, and proof verification.
//
// The construction is adapted from the sparse, fixed-depth
// deposit trie (shared/trieutil.MerkleTrie), generalized from a
// 2^depth zero-hash-padded trie to a variable-size, sorted,
// duplicate-last-node tree: there is no fixed depth and no zero-hash
// table, because routes come and go and the tree is rebuilt from
// scratch on every manifest.
package merkle

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/routeforge/dispatch-core/codec"
)

// Leaf is the pre-hash tuple a manifest route contributes to the tree.
type Leaf struct {
	Selector codec.Selector
	Facet    codec.Address
	CodeHash codec.Digest
}

// bytes returns the canonical encoded preimage used both for sorting
// and for hashing.
func (l Leaf) bytes() []byte {
	return codec.EncodeLeaf(l.Selector, l.Facet, l.CodeHash)
}

// Hash returns keccak256(encode_leaf(l)).
func (l Leaf) Hash() codec.Digest {
	return codec.Hash(l.bytes())
}

// Proof is an ordered sibling path from a leaf to the root, together
// with a position bitvector: Positions[i] = true means the proven node
// was the right child at level i (sibling on the left).
type Proof struct {
	Siblings  []codec.Digest
	Positions []bool
}

// ErrEmptyLeafSet is returned when Build is called with no leaves.
var ErrEmptyLeafSet = errors.New("merkle: leaf set is empty")

// ErrDuplicateLeaf is returned when two leaves encode to the same
// preimage bytes; a route table may not contain the same
// (selector, facet, code_hash) leaf twice.
var ErrDuplicateLeaf = errors.New("merkle: duplicate leaf")

// Tree is a built, queryable Merkle tree over a canonically-sorted
// leaf set.
type Tree struct {
	// levels[0] holds hashed leaves in sorted order; levels[len-1]
	// holds exactly the root.
	levels [][]codec.Digest
	// sortedLeaves holds the leaves in sorted order, so callers can ask
	// for a proof by leaf value rather than index.
	sortedLeaves []Leaf
}

// Build sorts leaves lexicographically by their encoded preimage
// bytes (making the tree independent of caller insertion order, per
// Property B), rejects duplicates, and constructs the tree.
func Build(leaves []Leaf) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyLeafSet
	}

	sorted := make([]Leaf, len(leaves))
	copy(sorted, leaves)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].bytes(), sorted[j].bytes()) < 0
	})
	for i := 1; i < len(sorted); i++ {
		if bytes.Equal(sorted[i].bytes(), sorted[i-1].bytes()) {
			return nil, fmt.Errorf("%w: %x", ErrDuplicateLeaf, sorted[i].bytes())
		}
	}

	hashed := make([]codec.Digest, len(sorted))
	for i, l := range sorted {
		hashed[i] = l.Hash()
	}

	levels := buildLevels(hashed)
	return &Tree{levels: levels, sortedLeaves: sorted}, nil
}

// buildLevels performs the level-by-level pairwise hashing. At each
// level, adjacent nodes are paired; an odd final node is paired with
// itself (right = left) rather than padded with a zero hash, per the
// spec's last-odd-node duplication rule.
func buildLevels(leafHashes []codec.Digest) [][]codec.Digest {
	levels := [][]codec.Digest{leafHashes}
	current := leafHashes
	for len(current) > 1 {
		next := make([]codec.Digest, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			left := current[i]
			right := left
			if i+1 < len(current) {
				right = current[i+1]
			}
			next = append(next, codec.HashNode(left, right))
		}
		levels = append(levels, next)
		current = next
	}
	return levels
}

// Root returns the single top-level node.
func (t *Tree) Root() codec.Digest {
	top := t.levels[len(t.levels)-1]
	return top[0]
}

// Leaves returns the canonically-sorted leaf set the tree was built
// from.
func (t *Tree) Leaves() []Leaf {
	out := make([]Leaf, len(t.sortedLeaves))
	copy(out, t.sortedLeaves)
	return out
}

// ProofAt extracts the sibling path and position bitvector for the
// leaf at sorted index i.
func (t *Tree) ProofAt(i int) (Proof, error) {
	if i < 0 || i >= len(t.levels[0]) {
		return Proof{}, fmt.Errorf("merkle: index %d out of range [0,%d)", i, len(t.levels[0]))
	}

	depth := len(t.levels) - 1
	siblings := make([]codec.Digest, 0, depth)
	positions := make([]bool, 0, depth)

	idx := i
	for level := 0; level < depth; level++ {
		nodes := t.levels[level]
		isLastOdd := idx == len(nodes)-1 && len(nodes)%2 == 1
		if isLastOdd {
			// The odd node was paired with itself; treat it as the
			// left child with its own value duplicated as sibling.
			siblings = append(siblings, nodes[idx])
			positions = append(positions, false)
		} else if idx%2 == 0 {
			siblings = append(siblings, nodes[idx+1])
			positions = append(positions, false)
		} else {
			siblings = append(siblings, nodes[idx-1])
			positions = append(positions, true)
		}
		idx /= 2
	}

	return Proof{Siblings: siblings, Positions: positions}, nil
}

// ProofFor finds leaf in the sorted set and returns its proof. Callers
// that already know the sorted index should prefer ProofAt.
func (t *Tree) ProofFor(leaf Leaf) (Proof, error) {
	target := leaf.bytes()
	for i, l := range t.sortedLeaves {
		if bytes.Equal(l.bytes(), target) {
			return t.ProofAt(i)
		}
	}
	return Proof{}, fmt.Errorf("merkle: leaf not found in tree")
}

// ErrInvalidProof is returned by Verify when the sibling/position
// lengths disagree or the recomputed root does not match.
var ErrInvalidProof = errors.New("merkle: invalid proof")

// Verify recomputes the root from leafBytes (the un-prefixed
// selector||facet||code_hash preimage) and proof, and compares it
// against root.
func Verify(leafBytes []byte, proof Proof, root codec.Digest) (bool, error) {
	if len(proof.Siblings) != len(proof.Positions) {
		return false, fmt.Errorf("%w: %d siblings, %d positions", ErrInvalidProof, len(proof.Siblings), len(proof.Positions))
	}

	prefixed, err := codec.EncodeLeafBytes(leafBytes)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	acc := codec.Hash(prefixed)

	for i, sibling := range proof.Siblings {
		if proof.Positions[i] {
			acc = codec.HashNode(sibling, acc)
		} else {
			acc = codec.HashNode(acc, sibling)
		}
	}

	return acc == root, nil
}
