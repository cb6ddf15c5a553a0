package ledgercore

import (
	"fmt"
	"math/big"
	"strings"
)

// MaxScale bounds the number of decimal places an Amount may carry.
const MaxScale = 12

// Amount is a fixed-point decimal: value = mantissa / 10^scale. No
// float64 ever enters the money path; every arithmetic op that could
// lose precision either rejects the operation or returns an explicit
// RoundingDelta so the loss is itself an auditable ledger event.
type Amount struct {
	mantissa *big.Int
	scale    int32
}

// Zero returns the additive identity at a given scale.
func Zero(scale int32) Amount {
	return Amount{mantissa: big.NewInt(0), scale: scale}
}

// NewAmount builds an Amount directly from a mantissa and scale.
func NewAmount(mantissa *big.Int, scale int32) Amount {
	return Amount{mantissa: new(big.Int).Set(mantissa), scale: scale}
}

// FromInt64 builds an Amount representing whole units (scale 0).
func FromInt64(units int64) Amount {
	return Amount{mantissa: big.NewInt(units), scale: 0}
}

// ParseAmount parses a decimal string such as "1234.50" at the given
// scale, zero-padding or rejecting extra fractional digits.
func ParseAmount(s string, scale int32) (Amount, error) {
	if scale < 0 || scale > MaxScale {
		return Amount{}, fmt.Errorf("ledgercore: scale %d out of range [0,%d]", scale, MaxScale)
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	intPart, fracPart, hasFrac := s, "", false
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		intPart, fracPart, hasFrac = s[:idx], s[idx+1:], true
	}
	if intPart == "" {
		intPart = "0"
	}
	if hasFrac && int32(len(fracPart)) > scale {
		return Amount{}, fmt.Errorf("ledgercore: %q has more than %d fractional digits", s, scale)
	}
	fracPart = fracPart + strings.Repeat("0", int(scale)-len(fracPart))

	digits := intPart + fracPart
	mantissa, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return Amount{}, fmt.Errorf("ledgercore: invalid decimal %q", s)
	}
	if neg {
		mantissa.Neg(mantissa)
	}
	return Amount{mantissa: mantissa, scale: scale}, nil
}

// Scale returns the number of decimal places this Amount carries.
func (a Amount) Scale() int32 { return a.scale }

// Mantissa returns a copy of the underlying integer mantissa.
func (a Amount) Mantissa() *big.Int {
	if a.mantissa == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(a.mantissa)
}

func (a Amount) normalized() *big.Int {
	if a.mantissa == nil {
		return big.NewInt(0)
	}
	return a.mantissa
}

// rescaleUp returns a's mantissa expressed at target scale, which must
// be >= a.scale; this is always exact.
func (a Amount) rescaleUp(target int32) *big.Int {
	m := new(big.Int).Set(a.normalized())
	if target == a.scale {
		return m
	}
	factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(target-a.scale)), nil)
	return m.Mul(m, factor)
}

// commonScale returns the larger of two scales so both operands can be
// promoted without loss.
func commonScale(a, b Amount) int32 {
	if a.scale > b.scale {
		return a.scale
	}
	return b.scale
}

// Add returns a+b, promoting both operands to their common (larger)
// scale. This never loses precision.
func (a Amount) Add(b Amount) Amount {
	scale := commonScale(a, b)
	sum := new(big.Int).Add(a.rescaleUp(scale), b.rescaleUp(scale))
	return Amount{mantissa: sum, scale: scale}
}

// Sub returns a-b, promoting both operands to their common scale.
func (a Amount) Sub(b Amount) Amount {
	scale := commonScale(a, b)
	diff := new(big.Int).Sub(a.rescaleUp(scale), b.rescaleUp(scale))
	return Amount{mantissa: diff, scale: scale}
}

// Neg returns -a.
func (a Amount) Neg() Amount {
	return Amount{mantissa: new(big.Int).Neg(a.normalized()), scale: a.scale}
}

// Cmp compares a and b numerically, regardless of scale.
func (a Amount) Cmp(b Amount) int {
	scale := commonScale(a, b)
	return a.rescaleUp(scale).Cmp(b.rescaleUp(scale))
}

func (a Amount) IsZero() bool     { return a.normalized().Sign() == 0 }
func (a Amount) IsNegative() bool { return a.normalized().Sign() < 0 }
func (a Amount) IsPositive() bool { return a.normalized().Sign() > 0 }

// RoundToScale rounds a down to targetScale (< a.scale) using banker's
// rounding (round-half-to-even), returning the rounded Amount and the
// RoundingDelta describing what was shaved off — callers that cross
// currencies with differing scales (FX conversion) must record this
// delta as its own ledger event rather than silently discarding it.
func (a Amount) RoundToScale(targetScale int32) (Amount, Amount) {
	if targetScale >= a.scale {
		return Amount{mantissa: a.rescaleUp(targetScale), scale: targetScale}, Zero(a.scale)
	}

	drop := a.scale - targetScale
	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(drop)), nil)

	quotient, remainder := new(big.Int).QuoRem(a.normalized(), divisor, new(big.Int))
	twiceRemainder := new(big.Int).Mul(remainder, big.NewInt(2))
	twiceRemainder.Abs(twiceRemainder)

	switch twiceRemainder.Cmp(divisor) {
	case 1:
		quotient.Add(quotient, big.NewInt(int64(a.normalized().Sign())))
	case 0:
		// Exactly half: round to even.
		if quotient.Bit(0) == 1 {
			quotient.Add(quotient, big.NewInt(int64(a.normalized().Sign())))
		}
	}

	rounded := Amount{mantissa: quotient, scale: targetScale}
	delta := a.Sub(Amount{mantissa: new(big.Int).Set(quotient), scale: targetScale})
	return rounded, delta
}

// String renders the canonical decimal representation, e.g. "-12.0500".
func (a Amount) String() string {
	m := a.normalized()
	neg := m.Sign() < 0
	abs := new(big.Int).Abs(m)
	digits := abs.String()

	if a.scale == 0 {
		if neg {
			return "-" + digits
		}
		return digits
	}
	for int32(len(digits)) <= a.scale {
		digits = "0" + digits
	}
	intLen := int32(len(digits)) - a.scale
	out := digits[:intLen] + "." + digits[intLen:]
	if neg {
		return "-" + out
	}
	return out
}
