// Package pkcs11hsm documents the production key-custody extension point.
// Bank-connector and HSM integration are out of scope for this repository
// (spec §1); this stub exists only so the crypto.Signer interface has a
// named production implementation to configure against, and so that
// wiring a real PKCS#11 module later requires no change to the ledger.
package pkcs11hsm

import "github.com/crossbank/ledgerd/internal/crypto"

// Config describes how to attach to a PKCS#11 module. Module is the path
// to the vendor's shared library, Slot selects the token slot, and KeyID/
// Epoch identify the signing key the module holds.
type Config struct {
	Module string
	Slot   uint
	KeyID  string
	Epoch  string
}

// Provider is a crypto.Signer backed by a PKCS#11 token. Sign returns
// crypto.ErrHSMUnavailable, Verify always reports false and PublicKey
// is empty; KeyID and Epoch report the configured values. The type
// exists so deployments can select "pkcs11" in configuration without
// the ledger code needing to know the difference.
type Provider struct {
	cfg Config
}

// New returns a Provider configured against cfg. It does not open the
// PKCS#11 session; that belongs to the real binding this stub stands in for.
func New(cfg Config) *Provider {
	return &Provider{cfg: cfg}
}

func (p *Provider) Sign([]byte) (crypto.Signature, error) {
	return crypto.Signature{}, crypto.ErrHSMUnavailable
}

func (p *Provider) Verify([]byte, crypto.Signature, crypto.PublicKey) bool {
	return false
}

func (p *Provider) PublicKey() crypto.PublicKey { return crypto.PublicKey{} }
func (p *Provider) KeyID() string               { return p.cfg.KeyID }
func (p *Provider) Epoch() string               { return p.cfg.Epoch }

var _ crypto.Signer = (*Provider)(nil)
