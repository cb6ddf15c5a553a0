package crypto

import (
	"crypto/sha256"

	"github.com/decred/dcrd/crypto/ripemd160"
)

// BankIDSize is the size, in bytes, of a bank identifier derived from a
// signing public key.
const BankIDSize = 20

// CalcBankID derives a short bank/participant identifier from a signing
// public key as RIPEMD160(SHA256(publicKey)). Using two distinct hash
// functions guards against length-extension attacks; RIPEMD160 is the
// only hash generally considered safe at 160 bits. The same computation
// is used regardless of the underlying signature algorithm.
func CalcBankID(publicKey []byte) [BankIDSize]byte {
	sha256Hash := sha256.Sum256(publicKey)

	ripemd160Hasher := ripemd160.New()
	ripemd160Hasher.Write(sha256Hash[:])
	ripemd160Hash := ripemd160Hasher.Sum(nil)

	var result [BankIDSize]byte
	copy(result[:], ripemd160Hash)
	return result
}

// BankIDFromBytes creates a bank ID from a byte slice. Returns a zero bank
// ID if the slice is not exactly BankIDSize bytes.
func BankIDFromBytes(b []byte) [BankIDSize]byte {
	var result [BankIDSize]byte
	if len(b) == BankIDSize {
		copy(result[:], b)
	}
	return result
}

// IsZeroBankID returns true if id is the all-zero bank ID.
func IsZeroBankID(id [BankIDSize]byte) bool {
	for _, b := range id {
		if b != 0 {
			return false
		}
	}
	return true
}
