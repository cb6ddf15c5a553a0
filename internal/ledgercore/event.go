package ledgercore

import (
	"time"

	"github.com/crossbank/ledgerd/internal/crypto"
)

// EventKind tags the fixed payload schema an event carries.
type EventKind uint8

const (
	KindPaymentInitiated EventKind = iota + 1
	KindPaymentAuthorized
	KindPaymentDebited
	KindPaymentCredited
	KindPaymentCompleted
	KindPaymentFailed
	KindSettlementBatch
)

func (k EventKind) String() string {
	switch k {
	case KindPaymentInitiated:
		return "PaymentInitiated"
	case KindPaymentAuthorized:
		return "PaymentAuthorized"
	case KindPaymentDebited:
		return "PaymentDebited"
	case KindPaymentCredited:
		return "PaymentCredited"
	case KindPaymentCompleted:
		return "PaymentCompleted"
	case KindPaymentFailed:
		return "PaymentFailed"
	case KindSettlementBatch:
		return "SettlementBatch"
	default:
		return "Unknown"
	}
}

// Payload is implemented by each event kind's fixed-schema payload.
type Payload interface {
	Kind() EventKind
}

// EventDraft is what external producers submit to the ledger. The
// writer is solely responsible for turning a draft into a durable,
// chained, signed LedgerEvent.
type EventDraft struct {
	PaymentId  PaymentId
	Payload    Payload
	ClientTime time.Time // optional; zero means "use writer's clock"
}

// LedgerEvent is a committed, chained, signed record. Once seq is
// assigned its bytes never change.
type LedgerEvent struct {
	Seq       uint64
	Kind      EventKind
	PaymentId PaymentId
	Timestamp time.Time
	Payload   Payload
	PrevHash  [32]byte
	Signature crypto.Signature
	KeyID     string
	Epoch     string
}

// PaymentInitiatedPayload opens a payment.
type PaymentInitiatedPayload struct {
	Debtor   AccountId
	Creditor AccountId
	Currency Currency
	Amount   Amount
}

func (PaymentInitiatedPayload) Kind() EventKind { return KindPaymentInitiated }

// PaymentAuthorizedPayload marks a payment as cleared for settlement,
// making it eligible for netting.
type PaymentAuthorizedPayload struct {
	DebtorBank   BankId
	CreditorBank BankId
}

func (PaymentAuthorizedPayload) Kind() EventKind { return KindPaymentAuthorized }

// PaymentDebitedPayload records the debtor-side ledger movement.
type PaymentDebitedPayload struct {
	Account  AccountId
	Currency Currency
	Amount   Amount
}

func (PaymentDebitedPayload) Kind() EventKind { return KindPaymentDebited }

// PaymentCreditedPayload records the creditor-side ledger movement.
type PaymentCreditedPayload struct {
	Account  AccountId
	Currency Currency
	Amount   Amount
}

func (PaymentCreditedPayload) Kind() EventKind { return KindPaymentCredited }

// PaymentCompletedPayload closes a payment out, referencing the batch
// that settled it (zero WindowId for payments completed outside
// netting, if any deployment allows that).
type PaymentCompletedPayload struct {
	WindowId  uint64
	BatchId   PaymentId
}

func (PaymentCompletedPayload) Kind() EventKind { return KindPaymentCompleted }

// PaymentFailedPayload is terminal: the payment exceeded its retry
// budget (max_windows_before_fail) or was rejected outright.
type PaymentFailedPayload struct {
	Reason string
}

func (PaymentFailedPayload) Kind() EventKind { return KindPaymentFailed }

// RoundingDelta records precision lost when an Amount was rescaled to
// a coarser currency scale (e.g. during FX conversion inside netting).
// It is never silently discarded; it rides along inside a
// SettlementBatch payload as an auditable line item.
type RoundingDelta struct {
	Currency Currency
	Amount   Amount
}

// SettlementBatchPayload is emitted exactly once per settlement tick.
type SettlementBatchPayload struct {
	BatchId       PaymentId
	WindowId      uint64
	PaymentIds    []PaymentId
	NetTransfers  []NetTransfer
	GrossTotals   map[Currency]Amount
	NetTotals     map[Currency]Amount
	RoundingDeltas []RoundingDelta
	SnapshotSeq   uint64
}

func (SettlementBatchPayload) Kind() EventKind { return KindSettlementBatch }
