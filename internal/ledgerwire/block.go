package ledgerwire

import (
	"fmt"
	"time"

	"github.com/crossbank/ledgerd/internal/crypto"
	"github.com/crossbank/ledgerd/internal/ledgercore"
)

// EncodeBlock renders a Block's canonical record: height | first_seq |
// last_seq | merkle_root | prev_block_hash | created_at_nanos |
// sig_len | sig_bytes.
func EncodeBlock(b ledgercore.Block) []byte {
	w := NewWriter()
	w.U64(b.Height)
	w.U64(b.FirstSeq)
	w.U64(b.LastSeq)
	w.Raw(b.MerkleRoot[:])
	w.Raw(b.PrevBlockHash[:])
	w.U64(uint64(b.CreatedAt.UnixNano()))
	w.Bytes16(b.Signature.Bytes)
	return w.Bytes()
}

// DecodeBlock reverses EncodeBlock.
func DecodeBlock(data []byte) (ledgercore.Block, error) {
	r := NewReader(data)
	var b ledgercore.Block

	b.Height = r.U64()
	b.FirstSeq = r.U64()
	b.LastSeq = r.U64()
	copy(b.MerkleRoot[:], r.Raw(len(b.MerkleRoot)))
	copy(b.PrevBlockHash[:], r.Raw(len(b.PrevBlockHash)))
	b.CreatedAt = time.Unix(0, int64(r.U64())).UTC()
	sigBytes := r.Bytes16()

	if r.Err() != nil {
		return ledgercore.Block{}, r.Err()
	}
	if r.Remaining() != 0 {
		return ledgercore.Block{}, fmt.Errorf("ledgerwire: %d trailing bytes after block height %d", r.Remaining(), b.Height)
	}

	b.Signature = crypto.Signature{Bytes: sigBytes}
	return b, nil
}
