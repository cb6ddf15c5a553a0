package softkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossbank/ledgerd/internal/crypto"
)

func TestSignAndVerifyRoundTrip(t *testing.T) {
	p, err := Generate("kid-1", "epoch-1")
	require.NoError(t, err)

	data := []byte("ev/1")
	sig, err := p.Sign(data)
	require.NoError(t, err)

	assert.True(t, p.Verify(data, sig, p.PublicKey()))
	assert.Equal(t, "kid-1", p.KeyID())
	assert.Equal(t, "epoch-1", p.Epoch())
}

func TestVerifyRejectsTamperedData(t *testing.T) {
	p, err := Generate("kid-1", "epoch-1")
	require.NoError(t, err)

	sig, err := p.Sign([]byte("original"))
	require.NoError(t, err)

	assert.False(t, p.Verify([]byte("tampered"), sig, p.PublicKey()))
}

func TestVerifyRejectsWrongKeyType(t *testing.T) {
	p, err := Generate("kid-1", "epoch-1")
	require.NoError(t, err)

	sig, err := p.Sign([]byte("data"))
	require.NoError(t, err)

	wrongPub := crypto.PublicKey{KeyType: crypto.KeyTypeSecp256k1, Bytes: p.PublicKey().Bytes}
	assert.False(t, p.Verify([]byte("data"), sig, wrongPub))
}
