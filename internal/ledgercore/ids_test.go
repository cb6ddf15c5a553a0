package ledgercore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentIdRoundTripsThroughString(t *testing.T) {
	id := NewPaymentId()
	parsed, err := ParsePaymentId(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
	assert.False(t, id.IsZero())
}

func TestZeroPaymentIdIsZero(t *testing.T) {
	var id PaymentId
	assert.True(t, id.IsZero())
}

func TestParsePaymentIdRejectsGarbage(t *testing.T) {
	_, err := ParsePaymentId("not-a-uuid")
	assert.Error(t, err)
}

func TestBankIdZeroCheck(t *testing.T) {
	var b BankId
	assert.True(t, b.IsZero())
	b[0] = 1
	assert.False(t, b.IsZero())
}
