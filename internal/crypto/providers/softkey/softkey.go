// Package softkey implements the ledger's crypto.Signer capability with an
// in-process Ed25519 key. It is the default provider for development and
// test deployments; production deployments swap in pkcs11hsm without any
// change to callers, since both satisfy crypto.Signer.
package softkey

import (
	"crypto/ed25519"

	"github.com/crossbank/ledgerd/internal/crypto"
)

// Provider signs with an Ed25519 key held in process memory.
type Provider struct {
	keyID string
	epoch string
	priv  ed25519.PrivateKey
	pub   crypto.PublicKey
}

// New builds a Provider from a 32-byte Ed25519 seed.
func New(seed []byte, keyID, epoch string) (*Provider, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, crypto.ErrInvalidPrivateKey
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)

	return &Provider{
		keyID: keyID,
		epoch: epoch,
		priv:  priv,
		pub: crypto.PublicKey{
			KeyType: crypto.KeyTypeEd25519,
			Bytes:   append([]byte(nil), pub...),
		},
	}, nil
}

// Generate creates a Provider from a freshly generated random seed.
func Generate(keyID, epoch string) (*Provider, error) {
	sk, err := crypto.RandomSecretKey(crypto.KeyTypeEd25519)
	if err != nil {
		return nil, err
	}
	defer sk.Close()
	return New(sk.Data(), keyID, epoch)
}

func (p *Provider) Sign(data []byte) (crypto.Signature, error) {
	sig := ed25519.Sign(p.priv, data)
	return crypto.Signature{KeyType: crypto.KeyTypeEd25519, Bytes: sig}, nil
}

func (p *Provider) Verify(data []byte, sig crypto.Signature, pub crypto.PublicKey) bool {
	if sig.KeyType != crypto.KeyTypeEd25519 || pub.KeyType != crypto.KeyTypeEd25519 {
		return false
	}
	if !crypto.Ed25519Canonical(sig.Bytes) {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub.Bytes), data, sig.Bytes)
}

func (p *Provider) PublicKey() crypto.PublicKey { return p.pub }
func (p *Provider) KeyID() string               { return p.keyID }
func (p *Provider) Epoch() string               { return p.epoch }

var _ crypto.Signer = (*Provider)(nil)
