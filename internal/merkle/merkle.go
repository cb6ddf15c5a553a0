// Package merkle implements the balanced binary hash tree used to commit
// each block's event range to a single root: H(0x00‖data) for leaves and
// H(0x01‖left‖right) for inner nodes, with the last leaf at a level
// duplicated when the level has an odd count. The domain-separation tags
// (0x00/0x01) mirror the teacher's hash-prefix idiom
// (internal/core/protocol/hash_prefix.go), adapted from a four-byte ASCII
// prefix per hash context down to the single-byte tag this tree needs.
package merkle

import (
	"errors"

	"github.com/crossbank/ledgerd/internal/crypto"
)

// ErrIndexOutOfRange is returned by Prove when the requested leaf index
// does not exist in the tree.
var ErrIndexOutOfRange = errors.New("merkle: index out of range")

// ErrProofLengthMismatch names the case of a proof whose sibling count
// does not match ⌈log2 n⌉ for the claimed leaf count. Verify reports such
// a proof as false; it does not return this error.
var ErrProofLengthMismatch = errors.New("merkle: proof length mismatch")

const (
	leafTag = 0x00
	nodeTag = 0x01
)

// LeafHash returns the domain-separated hash of a leaf's raw data.
func LeafHash(data []byte) [32]byte {
	buf := make([]byte, 0, 1+len(data))
	buf = append(buf, leafTag)
	buf = append(buf, data...)
	return crypto.Hash(buf)
}

func nodeHash(left, right [32]byte) [32]byte {
	buf := make([]byte, 0, 1+64)
	buf = append(buf, nodeTag)
	buf = append(buf, left[:]...)
	buf = append(buf, right[:]...)
	return crypto.Hash(buf)
}

// emptyRoot is the defined root of a zero-leaf tree: H("").
var emptyRoot = crypto.Hash(nil)

// Tree is a balanced binary Merkle tree over an ordered leaf sequence.
type Tree struct {
	leafCount int
	// levels[0] holds the leaf hashes; levels[len-1] holds the single root.
	levels [][][32]byte
}

// Build constructs a Tree over leaves, in order. O(n) hashing, O(n) memory.
func Build(leaves [][]byte) *Tree {
	leafHashes := make([][32]byte, len(leaves))
	for i, l := range leaves {
		leafHashes[i] = LeafHash(l)
	}
	return BuildFromLeafHashes(leafHashes)
}

// BuildFromLeafHashes constructs a Tree directly from already-hashed
// leaves, useful when a caller hashes leaves one at a time as it streams
// them rather than materializing all payloads.
func BuildFromLeafHashes(leafHashes [][32]byte) *Tree {
	t := &Tree{leafCount: len(leafHashes)}
	if len(leafHashes) == 0 {
		t.levels = [][][32]byte{{emptyRoot}}
		return t
	}

	level := make([][32]byte, len(leafHashes))
	copy(level, leafHashes)
	t.levels = append(t.levels, level)

	for len(level) > 1 {
		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, nodeHash(level[i], level[i+1]))
			} else {
				// Odd level out: duplicate the last node to form its parent.
				next = append(next, nodeHash(level[i], level[i]))
			}
		}
		t.levels = append(t.levels, next)
		level = next
	}
	return t
}

// Root returns the tree's Merkle root.
func (t *Tree) Root() [32]byte {
	top := t.levels[len(t.levels)-1]
	return top[0]
}

// LeafCount returns the number of leaves the tree was built over.
func (t *Tree) LeafCount() int {
	return t.leafCount
}

// InclusionProof is the sibling path from a leaf to the root, in
// leaf-to-root order, plus the leaf's index and the tree's total leaf count
// (both needed by Verify to reject proofs of the wrong shape).
type InclusionProof struct {
	Index     int
	LeafCount int
	Siblings  [][32]byte
}

// Prove returns the inclusion proof for the leaf at index i. O(log n).
func (t *Tree) Prove(i int) (InclusionProof, error) {
	if i < 0 || i >= t.leafCount {
		return InclusionProof{}, ErrIndexOutOfRange
	}

	proof := InclusionProof{Index: i, LeafCount: t.leafCount}
	idx := i
	for level := 0; level < len(t.levels)-1; level++ {
		nodes := t.levels[level]
		var siblingIdx int
		if idx%2 == 0 {
			siblingIdx = idx + 1
			if siblingIdx >= len(nodes) {
				siblingIdx = idx // duplicated last node
			}
		} else {
			siblingIdx = idx - 1
		}
		proof.Siblings = append(proof.Siblings, nodes[siblingIdx])
		idx /= 2
	}
	return proof, nil
}

// expectedProofLength returns ⌈log2(n)⌉ for n > 0.
func expectedProofLength(n int) int {
	length := 0
	for cap := 1; cap < n; cap *= 2 {
		length++
	}
	return length
}

// Verify recomputes the root from proof and leaf, and reports whether it
// matches root. It rejects proofs whose index is out of range for the
// claimed leaf count, or whose sibling count disagrees with ⌈log2 n⌉.
func Verify(proof InclusionProof, root [32]byte, leaf []byte) bool {
	if proof.LeafCount <= 0 || proof.Index < 0 || proof.Index >= proof.LeafCount {
		return false
	}
	if len(proof.Siblings) != expectedProofLength(proof.LeafCount) {
		return false
	}

	hash := LeafHash(leaf)
	idx := proof.Index
	for _, sibling := range proof.Siblings {
		if idx%2 == 0 {
			hash = nodeHash(hash, sibling)
		} else {
			hash = nodeHash(sibling, hash)
		}
		idx /= 2
	}
	return hash == root
}
