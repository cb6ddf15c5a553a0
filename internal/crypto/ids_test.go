package crypto

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalcBankIDIsDeterministicAndSizeStable(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	id1 := CalcBankID(pub)
	id2 := CalcBankID(pub)
	assert.Equal(t, id1, id2)
	assert.Len(t, id1, BankIDSize)
	assert.False(t, IsZeroBankID(id1))
}

func TestCalcBankIDDiffersPerKey(t *testing.T) {
	pubA, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	pubB, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	assert.NotEqual(t, CalcBankID(pubA), CalcBankID(pubB))
}

func TestBankIDFromBytesRejectsWrongLength(t *testing.T) {
	var zero [BankIDSize]byte
	assert.Equal(t, zero, BankIDFromBytes([]byte{1, 2, 3}))
	assert.True(t, IsZeroBankID(BankIDFromBytes([]byte{1, 2, 3})))
}
