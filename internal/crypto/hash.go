package crypto

import "crypto/sha256"

// sha256Sum is kept as its own function, mirroring the one-hash-per-file
// convention the teacher uses for its digest helpers, so call sites read
// as "the ledger's hash" rather than reaching for crypto/sha256 directly.
func sha256Sum(data []byte) [32]byte {
	return sha256.Sum256(data)
}
