package merkle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaves(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte{byte(i), byte(i >> 8)}
	}
	return out
}

func TestEmptyTreeRootIsHashOfEmptyString(t *testing.T) {
	tree := Build(nil)
	assert.Equal(t, emptyRoot, tree.Root())
}

func TestBuildAndVerifyAllIndices(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 5, 7, 8, 9, 16, 17} {
		data := leaves(n)
		tree := Build(data)
		root := tree.Root()

		for i := 0; i < n; i++ {
			proof, err := tree.Prove(i)
			require.NoError(t, err)
			assert.True(t, Verify(proof, root, data[i]), "leaf %d of %d should verify", i, n)
		}
	}
}

func TestProveRejectsOutOfRange(t *testing.T) {
	tree := Build(leaves(4))
	_, err := tree.Prove(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = tree.Prove(4)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestVerifyRejectsTamperedSibling(t *testing.T) {
	data := leaves(5)
	tree := Build(data)
	root := tree.Root()

	proof, err := tree.Prove(2)
	require.NoError(t, err)
	require.True(t, Verify(proof, root, data[2]))

	tampered := proof
	tampered.Siblings = append([][32]byte(nil), proof.Siblings...)
	tampered.Siblings[0][0] ^= 0xFF
	assert.False(t, Verify(tampered, root, data[2]))
}

func TestVerifyRejectsTamperedLeaf(t *testing.T) {
	data := leaves(5)
	tree := Build(data)
	root := tree.Root()

	proof, err := tree.Prove(2)
	require.NoError(t, err)

	tamperedLeaf := append([]byte(nil), data[2]...)
	tamperedLeaf[0] ^= 0xFF
	assert.False(t, Verify(proof, root, tamperedLeaf))
}

func TestVerifyRejectsWrongLeafCount(t *testing.T) {
	data := leaves(5)
	tree := Build(data)
	root := tree.Root()

	proof, err := tree.Prove(2)
	require.NoError(t, err)
	proof.LeafCount = 9
	assert.False(t, Verify(proof, root, data[2]))
}

func TestOddLevelDuplicatesLastLeaf(t *testing.T) {
	data := leaves(1)
	tree := Build(data)
	// Single-leaf tree: root is just the leaf hash, no duplication needed.
	assert.Equal(t, LeafHash(data[0]), tree.Root())

	data3 := leaves(3)
	tree3 := Build(data3)
	// Level 0 has 3 leaves -> node(2) is duplicated against itself for level 1.
	expected := nodeHash(
		nodeHash(LeafHash(data3[0]), LeafHash(data3[1])),
		nodeHash(LeafHash(data3[2]), LeafHash(data3[2])),
	)
	assert.Equal(t, expected, tree3.Root())
}
