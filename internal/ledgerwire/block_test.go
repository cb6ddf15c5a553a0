package ledgerwire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossbank/ledgerd/internal/crypto"
	"github.com/crossbank/ledgerd/internal/ledgercore"
)

func TestBlockRoundTrip(t *testing.T) {
	b := ledgercore.Block{
		Height:        3,
		FirstSeq:      7,
		LastSeq:       9,
		MerkleRoot:    [32]byte{1, 2, 3},
		PrevBlockHash: [32]byte{4, 5, 6},
		Signature:     crypto.Signature{Bytes: []byte{7, 8, 9}},
		CreatedAt:     time.Unix(1_700_000_001, 0).UTC(),
	}

	encoded := EncodeBlock(b)
	decoded, err := DecodeBlock(encoded)
	require.NoError(t, err)

	assert.Equal(t, b.Height, decoded.Height)
	assert.Equal(t, b.FirstSeq, decoded.FirstSeq)
	assert.Equal(t, b.LastSeq, decoded.LastSeq)
	assert.Equal(t, b.MerkleRoot, decoded.MerkleRoot)
	assert.Equal(t, b.PrevBlockHash, decoded.PrevBlockHash)
	assert.Equal(t, b.CreatedAt, decoded.CreatedAt)
	assert.Equal(t, b.Signature.Bytes, decoded.Signature.Bytes)
}

func TestDecodeBlockRejectsTrailingBytes(t *testing.T) {
	b := ledgercore.Block{Signature: crypto.Signature{Bytes: []byte{1}}}
	encoded := EncodeBlock(b)
	_, err := DecodeBlock(append(encoded, 0x01))
	assert.Error(t, err)
}
