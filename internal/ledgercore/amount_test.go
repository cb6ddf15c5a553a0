package ledgercore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmountRoundTripsString(t *testing.T) {
	a, err := ParseAmount("1234.50", 2)
	require.NoError(t, err)
	assert.Equal(t, "1234.50", a.String())

	neg, err := ParseAmount("-0.01", 2)
	require.NoError(t, err)
	assert.Equal(t, "-0.01", neg.String())
}

func TestParseAmountRejectsExtraFractionalDigits(t *testing.T) {
	_, err := ParseAmount("1.234", 2)
	assert.Error(t, err)
}

func TestAddPromotesToLargerScale(t *testing.T) {
	a, _ := ParseAmount("10", 0)
	b, _ := ParseAmount("0.5", 2)
	sum := a.Add(b)
	assert.Equal(t, int32(2), sum.Scale())
	assert.Equal(t, "10.50", sum.String())
}

func TestSubAndCmp(t *testing.T) {
	a, _ := ParseAmount("10.00", 2)
	b, _ := ParseAmount("3.25", 2)
	diff := a.Sub(b)
	assert.Equal(t, "6.75", diff.String())
	assert.Equal(t, 1, a.Cmp(b))
	assert.Equal(t, -1, b.Cmp(a))
	assert.Equal(t, 0, a.Cmp(a))
}

func TestIsZeroNegativePositive(t *testing.T) {
	zero := Zero(2)
	assert.True(t, zero.IsZero())

	pos, _ := ParseAmount("1", 0)
	assert.True(t, pos.IsPositive())
	assert.False(t, pos.IsNegative())

	neg, _ := ParseAmount("-1", 0)
	assert.True(t, neg.IsNegative())
}

func TestRoundToScaleBankersRounding(t *testing.T) {
	// 2.125 at scale 3 rounded to scale 2: halfway case rounds to even (2.12).
	half, _ := ParseAmount("2.125", 3)
	rounded, delta := half.RoundToScale(2)
	assert.Equal(t, "2.12", rounded.String())
	assert.False(t, delta.IsZero())

	// 2.135 -> rounds to 2.14 (nearest even digit wins: 4 is even).
	half2, _ := ParseAmount("2.135", 3)
	rounded2, _ := half2.RoundToScale(2)
	assert.Equal(t, "2.14", rounded2.String())

	// Non-halfway case rounds to nearest.
	notHalf, _ := ParseAmount("2.129", 3)
	roundedNotHalf, _ := notHalf.RoundToScale(2)
	assert.Equal(t, "2.13", roundedNotHalf.String())
}

func TestRoundToScaleUpIsExactWithZeroDelta(t *testing.T) {
	a, _ := ParseAmount("5", 0)
	rounded, delta := a.RoundToScale(2)
	assert.Equal(t, "5.00", rounded.String())
	assert.True(t, delta.IsZero())
}
