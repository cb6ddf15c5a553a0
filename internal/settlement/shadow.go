package settlement

import (
	"bytes"

	"github.com/crossbank/ledgerd/internal/ledgercore"
)

// pendingPayment is the projection of one Authorized, not-yet-settled
// payment, enough to build an Obligation at freeze time.
type pendingPayment struct {
	debtorBank   ledgercore.BankId
	creditorBank ledgercore.BankId
	currency     ledgercore.Currency
	amount       ledgercore.Amount
	windowsSeen  int
}

// pendingShadow mirrors the live set of payments eligible for netting,
// rebuilt by folding the event stream the same way the ledger's own
// balanceShadow rebuilds conservation state: additions on
// PaymentAuthorized, removal on PaymentCompleted or PaymentFailed.
type pendingShadow struct {
	payments map[ledgercore.PaymentId]*pendingPayment
	// debtor/credit legs arrive as separate events (PaymentInitiated
	// carries the account-level amount/currency; PaymentAuthorized
	// carries the bank routing). A payment only becomes eligible once
	// both have been observed.
	partial map[ledgercore.PaymentId]*pendingPayment
}

func newPendingShadow() *pendingShadow {
	return &pendingShadow{
		payments: make(map[ledgercore.PaymentId]*pendingPayment),
		partial:  make(map[ledgercore.PaymentId]*pendingPayment),
	}
}

func (s *pendingShadow) apply(ev ledgercore.LedgerEvent) {
	switch p := ev.Payload.(type) {
	case ledgercore.PaymentInitiatedPayload:
		s.partial[ev.PaymentId] = &pendingPayment{currency: p.Currency, amount: p.Amount}
	case ledgercore.PaymentAuthorizedPayload:
		pp, ok := s.partial[ev.PaymentId]
		if !ok {
			return // PaymentInitiated predates this manager's subscription window
		}
		pp.debtorBank = p.DebtorBank
		pp.creditorBank = p.CreditorBank
		s.payments[ev.PaymentId] = pp
		delete(s.partial, ev.PaymentId)
	case ledgercore.PaymentCompletedPayload:
		delete(s.payments, ev.PaymentId)
	case ledgercore.PaymentFailedPayload:
		delete(s.payments, ev.PaymentId)
	}
}

// snapshot returns every currently-pending payment as an Obligation
// tagged with windowID, in a deterministic order (by PaymentId bytes)
// so netting and tests observe stable input ordering.
func (s *pendingShadow) snapshot(windowID uint64) []ledgercore.Obligation {
	ids := make([]ledgercore.PaymentId, 0, len(s.payments))
	for id := range s.payments {
		ids = append(ids, id)
	}
	sortPaymentIds(ids)

	obligations := make([]ledgercore.Obligation, 0, len(ids))
	for _, id := range ids {
		pp := s.payments[id]
		obligations = append(obligations, ledgercore.Obligation{
			PaymentId:    id,
			DebtorBank:   pp.debtorBank,
			CreditorBank: pp.creditorBank,
			Currency:     pp.currency,
			Amount:       pp.amount,
			WindowId:     windowID,
		})
	}
	return obligations
}

func (s *pendingShadow) recordWindowAttempt(id ledgercore.PaymentId) int {
	if pp, ok := s.payments[id]; ok {
		pp.windowsSeen++
		return pp.windowsSeen
	}
	return 0
}

func sortPaymentIds(ids []ledgercore.PaymentId) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && bytes.Compare(ids[j-1][:], ids[j][:]) > 0; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}
