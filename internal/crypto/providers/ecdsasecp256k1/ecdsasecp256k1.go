// Package ecdsasecp256k1 implements crypto.Signer over the secp256k1 curve
// using DER-encoded, low-S (fully canonical) ECDSA signatures. It exists to
// demonstrate that the ledger's writer and block closer never branch on
// signature algorithm: swapping this provider for softkey or pkcs11hsm
// requires no change outside the provider packages themselves.
package ecdsasecp256k1

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/crossbank/ledgerd/internal/crypto"
)

// Provider signs with an in-process secp256k1 private key.
type Provider struct {
	keyID string
	epoch string
	priv  *btcec.PrivateKey
	pub   crypto.PublicKey
}

// New builds a Provider from a 32-byte private scalar.
func New(secret []byte, keyID, epoch string) (*Provider, error) {
	if len(secret) != 32 {
		return nil, crypto.ErrInvalidPrivateKey
	}
	priv, pub := btcec.PrivKeyFromBytes(secret)
	if priv == nil {
		return nil, crypto.ErrInvalidPrivateKey
	}

	return &Provider{
		keyID: keyID,
		epoch: epoch,
		priv:  priv,
		pub: crypto.PublicKey{
			KeyType: crypto.KeyTypeSecp256k1,
			Bytes:   pub.SerializeCompressed(),
		},
	}, nil
}

// Generate creates a Provider from a freshly generated random scalar.
func Generate(keyID, epoch string) (*Provider, error) {
	sk, err := crypto.RandomSecretKey(crypto.KeyTypeSecp256k1)
	if err != nil {
		return nil, err
	}
	defer sk.Close()
	return New(sk.Data(), keyID, epoch)
}

func (p *Provider) Sign(data []byte) (crypto.Signature, error) {
	digest := crypto.Hash(data)
	sig := ecdsa.Sign(p.priv, digest[:])
	der := sig.Serialize()

	canon := crypto.MakeSignatureCanonical(der)
	if canon == nil {
		canon = der
	}
	return crypto.Signature{KeyType: crypto.KeyTypeSecp256k1, Bytes: canon}, nil
}

func (p *Provider) Verify(data []byte, sig crypto.Signature, pub crypto.PublicKey) bool {
	if sig.KeyType != crypto.KeyTypeSecp256k1 || pub.KeyType != crypto.KeyTypeSecp256k1 {
		return false
	}
	if crypto.ECDSACanonicality(sig.Bytes) != crypto.CanonicityFullyCanonical {
		return false
	}

	parsedSig, err := ecdsa.ParseDERSignature(sig.Bytes)
	if err != nil {
		return false
	}
	pubKey, err := btcec.ParsePubKey(pub.Bytes)
	if err != nil {
		return false
	}

	digest := crypto.Hash(data)
	return parsedSig.Verify(digest[:], pubKey)
}

func (p *Provider) PublicKey() crypto.PublicKey { return p.pub }
func (p *Provider) KeyID() string               { return p.keyID }
func (p *Provider) Epoch() string               { return p.epoch }

var _ crypto.Signer = (*Provider)(nil)
