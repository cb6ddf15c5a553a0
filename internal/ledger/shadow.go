package ledger

import "github.com/crossbank/ledgerd/internal/ledgercore"

// paymentRecord is the writer's in-memory view of one payment, used to
// validate money conservation without replaying the whole stream on
// every append.
type paymentRecord struct {
	currency ledgercore.Currency
	amount   ledgercore.Amount
	debited  bool
	credited bool
}

// balanceShadow is owned exclusively by the writer goroutine. It is
// rebuilt from scratch during recovery and mutated only inside the
// writer loop thereafter — never accessed concurrently.
type balanceShadow struct {
	payments map[ledgercore.PaymentId]*paymentRecord
}

func newBalanceShadow() *balanceShadow {
	return &balanceShadow{payments: make(map[ledgercore.PaymentId]*paymentRecord)}
}

// applyInitiated records a new payment's committed amount.
func (s *balanceShadow) applyInitiated(id ledgercore.PaymentId, p ledgercore.PaymentInitiatedPayload) {
	s.payments[id] = &paymentRecord{currency: p.Currency, amount: p.Amount}
}

// checkDebit validates that a debit matches the payment's recorded
// amount and currency, and has not already happened.
func (s *balanceShadow) checkDebit(id ledgercore.PaymentId, currency ledgercore.Currency, amount ledgercore.Amount) error {
	rec, ok := s.payments[id]
	if !ok {
		return ledgercore.NewError(ledgercore.KindInvalidEvent, "debit references unknown payment")
	}
	if rec.debited {
		return ledgercore.NewError(ledgercore.KindInvalidEvent, "payment already debited")
	}
	if rec.currency != currency || rec.amount.Cmp(amount) != 0 {
		return ledgercore.NewError(ledgercore.KindInvariantViolation, "debit amount/currency does not match payment initiation")
	}
	return nil
}

func (s *balanceShadow) applyDebited(id ledgercore.PaymentId) {
	s.payments[id].debited = true
}

// checkCredit validates that a credit matches the payment's recorded
// amount and currency, and that a matching debit already landed —
// this is what makes the conservation invariant hold at every
// payment's completion boundary: every credited unit was debited
// first, for the same amount, in the same currency.
func (s *balanceShadow) checkCredit(id ledgercore.PaymentId, currency ledgercore.Currency, amount ledgercore.Amount) error {
	rec, ok := s.payments[id]
	if !ok {
		return ledgercore.NewError(ledgercore.KindInvalidEvent, "credit references unknown payment")
	}
	if !rec.debited {
		return ledgercore.NewError(ledgercore.KindInvariantViolation, "credit precedes matching debit")
	}
	if rec.credited {
		return ledgercore.NewError(ledgercore.KindInvalidEvent, "payment already credited")
	}
	if rec.currency != currency || rec.amount.Cmp(amount) != 0 {
		return ledgercore.NewError(ledgercore.KindInvariantViolation, "credit amount/currency does not match payment initiation")
	}
	return nil
}

func (s *balanceShadow) applyCredited(id ledgercore.PaymentId) {
	s.payments[id].credited = true
}

func (s *balanceShadow) clone() *balanceShadow {
	out := newBalanceShadow()
	for id, rec := range s.payments {
		copyRec := *rec
		out.payments[id] = &copyRec
	}
	return out
}
