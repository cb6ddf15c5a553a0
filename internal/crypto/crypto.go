// Package crypto provides the ledger's cryptographic capability: hashing,
// signing, and key custody, kept narrow enough that a software signer is
// acceptable in tests and a PKCS#11-backed HSM is acceptable in production
// without touching ledger code.
package crypto

import "errors"

// PublicKey is an opaque, algorithm-tagged public key.
type PublicKey struct {
	KeyType KeyType
	Bytes   []byte
}

// Signature is an opaque, algorithm-tagged signature.
type Signature struct {
	KeyType KeyType
	Bytes   []byte
}

var (
	// ErrInvalidPrivateKey is returned when key material cannot be parsed.
	ErrInvalidPrivateKey = errors.New("crypto: invalid private key")
	// ErrVerificationFailed is returned when a signature fails to verify.
	ErrVerificationFailed = errors.New("crypto: signature verification failed")
	// ErrHSMUnavailable is returned by the PKCS#11 stub when no real module is wired.
	ErrHSMUnavailable = errors.New("crypto: HSM backend not configured")
)

// Signer is the narrow capability the ledger depends on: sign, verify,
// and report the identity of the key used. Implementations may be backed
// by an in-process software key (dev/test) or an HSM (production); callers
// never branch on which.
type Signer interface {
	// Sign produces a signature over data using the signer's current key.
	Sign(data []byte) (Signature, error)
	// Verify reports whether sig is a valid signature over data under pub.
	Verify(data []byte, sig Signature, pub PublicKey) bool
	// PublicKey returns the signer's current public key.
	PublicKey() PublicKey
	// KeyID identifies the key, independent of its epoch.
	KeyID() string
	// Epoch identifies the key's rotation generation. Every event records
	// (KeyID, Epoch) next to its signature. Blocks record only the
	// signature bytes, not the key identity, and are verified against the
	// signer's current public key.
	Epoch() string
}

// Hash computes the ledger's canonical content hash. All hashing in the
// ledger (event chaining, block chaining, Merkle tree nodes) goes through
// this single function so the algorithm can change in one place.
func Hash(data []byte) [32]byte {
	return sha256Sum(data)
}
