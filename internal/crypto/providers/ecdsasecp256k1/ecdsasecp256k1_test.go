package ecdsasecp256k1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerifyRoundTrip(t *testing.T) {
	p, err := Generate("kid-ecdsa", "epoch-1")
	require.NoError(t, err)

	data := []byte("block/prev||root||1||10")
	sig, err := p.Sign(data)
	require.NoError(t, err)

	assert.True(t, p.Verify(data, sig, p.PublicKey()))
}

func TestVerifyRejectsTamperedData(t *testing.T) {
	p, err := Generate("kid-ecdsa", "epoch-1")
	require.NoError(t, err)

	sig, err := p.Sign([]byte("original"))
	require.NoError(t, err)

	assert.False(t, p.Verify([]byte("tampered"), sig, p.PublicKey()))
}

func TestSignaturesAreFullyCanonical(t *testing.T) {
	p, err := Generate("kid-ecdsa", "epoch-1")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		sig, err := p.Sign([]byte{byte(i)})
		require.NoError(t, err)
		assert.True(t, p.Verify([]byte{byte(i)}, sig, p.PublicKey()))
	}
}
