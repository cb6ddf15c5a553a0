package ledger

import "encoding/binary"

// Key schema (big-endian integers, sortable):
//   ev/<seq:u64>             -> event bytes
//   block/<height:u64>       -> block bytes
//   pay/<payment_id>/<seq:u64> -> (empty) index from payment to its events
//   meta/last_seq            -> u64
//   meta/last_block          -> u64

var (
	metaLastSeqKey   = []byte("meta/last_seq")
	metaLastBlockKey = []byte("meta/last_block")
)

func eventKey(seq uint64) []byte {
	k := make([]byte, 3+8)
	copy(k, "ev/")
	binary.BigEndian.PutUint64(k[3:], seq)
	return k
}

func blockKey(height uint64) []byte {
	k := make([]byte, 6+8)
	copy(k, "block/")
	binary.BigEndian.PutUint64(k[6:], height)
	return k
}

func paymentIndexKey(paymentID [16]byte, seq uint64) []byte {
	k := make([]byte, 4+16+8)
	copy(k, "pay/")
	copy(k[4:], paymentID[:])
	binary.BigEndian.PutUint64(k[20:], seq)
	return k
}

func paymentIndexPrefix(paymentID [16]byte) []byte {
	k := make([]byte, 4+16)
	copy(k, "pay/")
	copy(k[4:], paymentID[:])
	return k
}

// eventPrefixEnd returns the exclusive upper bound that covers every
// ev/* key (the prefix immediately after "ev/" in lexicographic order).
var (
	eventPrefixStart = []byte("ev/")
	eventPrefixEnd   = []byte("ev0")
	blockPrefixStart = []byte("block/")
	blockPrefixEnd   = []byte("block0")
)
