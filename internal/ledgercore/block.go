package ledgercore

import (
	"time"

	"github.com/crossbank/ledgerd/internal/crypto"
)

// Block commits a contiguous run of events under one Merkle root and
// chains to the previous block, forming an unbroken hash chain
// independent of the event chain.
type Block struct {
	Height        uint64
	FirstSeq      uint64
	LastSeq       uint64
	MerkleRoot    [32]byte
	PrevBlockHash [32]byte
	Signature     crypto.Signature
	CreatedAt     time.Time
}

// SigningBytes returns the exact bytes the block signature covers:
// prev_block_hash ‖ merkle_root ‖ first_seq ‖ last_seq ‖ created_at.
func (b Block) SigningBytes() []byte {
	buf := make([]byte, 0, 32+32+8+8+8)
	buf = append(buf, b.PrevBlockHash[:]...)
	buf = append(buf, b.MerkleRoot[:]...)
	buf = appendUint64(buf, b.FirstSeq)
	buf = appendUint64(buf, b.LastSeq)
	buf = appendUint64(buf, uint64(b.CreatedAt.UnixNano()))
	return buf
}

func appendUint64(buf []byte, v uint64) []byte {
	return append(buf,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
