package ledgercore

import (
	"fmt"

	"github.com/google/uuid"
)

// PaymentId is an opaque 128-bit identifier, globally unique and never
// reused once minted.
type PaymentId [16]byte

// NewPaymentId mints a fresh random identifier.
func NewPaymentId() PaymentId {
	return PaymentId(uuid.New())
}

func (p PaymentId) String() string {
	return uuid.UUID(p).String()
}

func (p PaymentId) IsZero() bool {
	return p == PaymentId{}
}

// ParsePaymentId parses a canonical UUID string form.
func ParsePaymentId(s string) (PaymentId, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return PaymentId{}, fmt.Errorf("ledgercore: invalid payment id %q: %w", s, err)
	}
	return PaymentId(u), nil
}

// AccountId identifies a ledger account. Together with Currency it
// uniquely scopes a balance row: the same debtor can hold distinct
// balances per currency.
type AccountId string

// Currency is an ISO-4217 three-letter code, fixed per deployment.
type Currency string

// BankId identifies a settlement participant, derived from its
// signing public key via crypto.CalcBankID.
type BankId [20]byte

func (b BankId) String() string {
	return fmt.Sprintf("%x", [20]byte(b))
}

func (b BankId) IsZero() bool {
	return b == BankId{}
}
