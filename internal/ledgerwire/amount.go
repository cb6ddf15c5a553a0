package ledgerwire

import (
	"math/big"

	"github.com/crossbank/ledgerd/internal/ledgercore"
)

// amount encodes as: i32 scale | u8 sign (0 = zero/positive, 1 = negative) | u16 mantissa_len | mantissa_bytes (big-endian magnitude).
func writeAmount(w *Writer, a ledgercore.Amount) {
	m := a.Mantissa()
	sign := uint8(0)
	if m.Sign() < 0 {
		sign = 1
		m.Neg(m)
	}
	w.U32(uint32(int32(a.Scale())))
	w.U8(sign)
	w.Bytes16(m.Bytes())
}

func readAmount(r *Reader) ledgercore.Amount {
	scale := int32(r.U32())
	sign := r.U8()
	magnitude := r.Bytes16()

	m := new(big.Int).SetBytes(magnitude)
	if sign == 1 {
		m.Neg(m)
	}
	return ledgercore.NewAmount(m, scale)
}
