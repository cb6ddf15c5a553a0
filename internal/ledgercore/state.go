package ledgercore

// PaymentStatus is the derived status of a payment's lifecycle.
type PaymentStatus uint8

const (
	StatusInitiated PaymentStatus = iota + 1
	StatusAuthorized
	StatusDebited
	StatusCredited
	StatusCompleted
	StatusFailed
)

func (s PaymentStatus) String() string {
	switch s {
	case StatusInitiated:
		return "Initiated"
	case StatusAuthorized:
		return "Authorized"
	case StatusDebited:
		return "Debited"
	case StatusCredited:
		return "Credited"
	case StatusCompleted:
		return "Completed"
	case StatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// PaymentState is the projection reconstructible purely from the event
// stream for a single PaymentId.
type PaymentState struct {
	PaymentId   PaymentId
	Status      PaymentStatus
	Debtor      AccountId
	Creditor    AccountId
	Amount      Amount
	Currency    Currency
	WindowsSeen int
	History     []uint64 // sequence numbers of every event naming this payment
}

// Apply folds one committed event into the projection, returning the
// updated state. It is pure: replaying the same prefix of the event
// stream always yields the same PaymentState.
func (s PaymentState) Apply(ev LedgerEvent) PaymentState {
	s.History = append(s.History, ev.Seq)

	switch p := ev.Payload.(type) {
	case PaymentInitiatedPayload:
		s.PaymentId = ev.PaymentId
		s.Status = StatusInitiated
		s.Debtor = p.Debtor
		s.Creditor = p.Creditor
		s.Currency = p.Currency
		s.Amount = p.Amount
	case PaymentAuthorizedPayload:
		s.Status = StatusAuthorized
	case PaymentDebitedPayload:
		s.Status = StatusDebited
	case PaymentCreditedPayload:
		s.Status = StatusCredited
	case PaymentCompletedPayload:
		s.Status = StatusCompleted
	case PaymentFailedPayload:
		s.Status = StatusFailed
	}
	return s
}

// IsPending reports whether the payment is eligible for netting: it
// has been authorized but not yet named in a SettlementBatch.
func (s PaymentState) IsPending() bool {
	return s.Status == StatusAuthorized
}
