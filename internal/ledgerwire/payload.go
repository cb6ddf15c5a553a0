package ledgerwire

import (
	"fmt"

	"github.com/crossbank/ledgerd/internal/ledgercore"
)

func writeAccountId(w *Writer, a ledgercore.AccountId) { w.Str8(string(a)) }
func readAccountId(r *Reader) ledgercore.AccountId     { return ledgercore.AccountId(r.Str8()) }

func writeCurrency(w *Writer, c ledgercore.Currency) { w.Str8(string(c)) }
func readCurrency(r *Reader) ledgercore.Currency     { return ledgercore.Currency(r.Str8()) }

func writeBankId(w *Writer, b ledgercore.BankId) { w.Raw(b[:]) }
func readBankId(r *Reader) ledgercore.BankId {
	var b ledgercore.BankId
	copy(b[:], r.Raw(len(b)))
	return b
}

func writePaymentId(w *Writer, p ledgercore.PaymentId) { w.Raw(p[:]) }
func readPaymentId(r *Reader) ledgercore.PaymentId {
	var p ledgercore.PaymentId
	copy(p[:], r.Raw(len(p)))
	return p
}

// EncodePayload renders payload's fixed-field-order canonical bytes.
// The event envelope already carries the kind tag, so payload bytes
// carry only the fields specific to that kind.
func EncodePayload(p ledgercore.Payload) ([]byte, error) {
	w := NewWriter()
	switch v := p.(type) {
	case ledgercore.PaymentInitiatedPayload:
		writeAccountId(w, v.Debtor)
		writeAccountId(w, v.Creditor)
		writeCurrency(w, v.Currency)
		writeAmount(w, v.Amount)
	case ledgercore.PaymentAuthorizedPayload:
		writeBankId(w, v.DebtorBank)
		writeBankId(w, v.CreditorBank)
	case ledgercore.PaymentDebitedPayload:
		writeAccountId(w, v.Account)
		writeCurrency(w, v.Currency)
		writeAmount(w, v.Amount)
	case ledgercore.PaymentCreditedPayload:
		writeAccountId(w, v.Account)
		writeCurrency(w, v.Currency)
		writeAmount(w, v.Amount)
	case ledgercore.PaymentCompletedPayload:
		w.U64(v.WindowId)
		writePaymentId(w, v.BatchId)
	case ledgercore.PaymentFailedPayload:
		w.Bytes16([]byte(v.Reason))
	case ledgercore.SettlementBatchPayload:
		writeSettlementBatch(w, v)
	default:
		return nil, fmt.Errorf("ledgerwire: unknown payload type %T", p)
	}
	return w.Bytes(), nil
}

// DecodePayload parses payload bytes for the given kind.
func DecodePayload(kind ledgercore.EventKind, data []byte) (ledgercore.Payload, error) {
	r := NewReader(data)
	var payload ledgercore.Payload

	switch kind {
	case ledgercore.KindPaymentInitiated:
		p := ledgercore.PaymentInitiatedPayload{}
		p.Debtor = readAccountId(r)
		p.Creditor = readAccountId(r)
		p.Currency = readCurrency(r)
		p.Amount = readAmount(r)
		payload = p
	case ledgercore.KindPaymentAuthorized:
		p := ledgercore.PaymentAuthorizedPayload{}
		p.DebtorBank = readBankId(r)
		p.CreditorBank = readBankId(r)
		payload = p
	case ledgercore.KindPaymentDebited:
		p := ledgercore.PaymentDebitedPayload{}
		p.Account = readAccountId(r)
		p.Currency = readCurrency(r)
		p.Amount = readAmount(r)
		payload = p
	case ledgercore.KindPaymentCredited:
		p := ledgercore.PaymentCreditedPayload{}
		p.Account = readAccountId(r)
		p.Currency = readCurrency(r)
		p.Amount = readAmount(r)
		payload = p
	case ledgercore.KindPaymentCompleted:
		p := ledgercore.PaymentCompletedPayload{}
		p.WindowId = r.U64()
		p.BatchId = readPaymentId(r)
		payload = p
	case ledgercore.KindPaymentFailed:
		p := ledgercore.PaymentFailedPayload{}
		p.Reason = string(r.Bytes16())
		payload = p
	case ledgercore.KindSettlementBatch:
		p, err := readSettlementBatch(r)
		if err != nil {
			return nil, err
		}
		payload = p
	default:
		return nil, fmt.Errorf("ledgerwire: unknown event kind %d", kind)
	}

	if r.Err() != nil {
		return nil, r.Err()
	}
	if r.Remaining() != 0 {
		return nil, fmt.Errorf("ledgerwire: %d trailing bytes after kind %s payload", r.Remaining(), kind)
	}
	return payload, nil
}

func writeSettlementBatch(w *Writer, v ledgercore.SettlementBatchPayload) {
	writePaymentId(w, v.BatchId)
	w.U64(v.WindowId)
	w.U64(v.SnapshotSeq)

	w.U32(uint32(len(v.PaymentIds)))
	for _, id := range v.PaymentIds {
		writePaymentId(w, id)
	}

	w.U32(uint32(len(v.NetTransfers)))
	for _, t := range v.NetTransfers {
		writeBankId(w, t.FromBank)
		writeBankId(w, t.ToBank)
		writeCurrency(w, t.Currency)
		writeAmount(w, t.Amount)
		w.U8(uint8(t.Status))
	}

	writeCurrencyAmountMap(w, v.GrossTotals)
	writeCurrencyAmountMap(w, v.NetTotals)

	w.U32(uint32(len(v.RoundingDeltas)))
	for _, d := range v.RoundingDeltas {
		writeCurrency(w, d.Currency)
		writeAmount(w, d.Amount)
	}
}

func readSettlementBatch(r *Reader) (ledgercore.SettlementBatchPayload, error) {
	var v ledgercore.SettlementBatchPayload
	v.BatchId = readPaymentId(r)
	v.WindowId = r.U64()
	v.SnapshotSeq = r.U64()

	paymentCount := r.U32()
	v.PaymentIds = make([]ledgercore.PaymentId, paymentCount)
	for i := range v.PaymentIds {
		v.PaymentIds[i] = readPaymentId(r)
	}

	transferCount := r.U32()
	v.NetTransfers = make([]ledgercore.NetTransfer, transferCount)
	for i := range v.NetTransfers {
		v.NetTransfers[i].FromBank = readBankId(r)
		v.NetTransfers[i].ToBank = readBankId(r)
		v.NetTransfers[i].Currency = readCurrency(r)
		v.NetTransfers[i].Amount = readAmount(r)
		v.NetTransfers[i].Status = ledgercore.TransferStatus(r.U8())
	}

	v.GrossTotals = readCurrencyAmountMap(r)
	v.NetTotals = readCurrencyAmountMap(r)

	deltaCount := r.U32()
	v.RoundingDeltas = make([]ledgercore.RoundingDelta, deltaCount)
	for i := range v.RoundingDeltas {
		v.RoundingDeltas[i].Currency = readCurrency(r)
		v.RoundingDeltas[i].Amount = readAmount(r)
	}

	return v, r.Err()
}

func writeCurrencyAmountMap(w *Writer, m map[ledgercore.Currency]ledgercore.Amount) {
	currencies := make([]ledgercore.Currency, 0, len(m))
	for c := range m {
		currencies = append(currencies, c)
	}
	sortCurrencies(currencies)

	w.U32(uint32(len(currencies)))
	for _, c := range currencies {
		writeCurrency(w, c)
		writeAmount(w, m[c])
	}
}

func readCurrencyAmountMap(r *Reader) map[ledgercore.Currency]ledgercore.Amount {
	count := r.U32()
	m := make(map[ledgercore.Currency]ledgercore.Amount, count)
	for i := uint32(0); i < count; i++ {
		c := readCurrency(r)
		m[c] = readAmount(r)
	}
	return m
}

// sortCurrencies keeps the encoding deterministic: map iteration order
// is randomized in Go, but anything that feeds a hash must be
// reproducible byte-for-byte.
func sortCurrencies(c []ledgercore.Currency) {
	for i := 1; i < len(c); i++ {
		for j := i; j > 0 && c[j-1] > c[j]; j-- {
			c[j-1], c[j] = c[j], c[j-1]
		}
	}
}
