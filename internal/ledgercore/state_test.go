package ledgercore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaymentStateAppliesLifecycle(t *testing.T) {
	pid := NewPaymentId()
	amount, _ := ParseAmount("100.00", 2)

	var s PaymentState
	s = s.Apply(LedgerEvent{Seq: 1, PaymentId: pid, Payload: PaymentInitiatedPayload{
		Debtor: "debtor-1", Creditor: "creditor-1", Currency: "USD", Amount: amount,
	}})
	assert.Equal(t, StatusInitiated, s.Status)
	assert.False(t, s.IsPending())

	s = s.Apply(LedgerEvent{Seq: 2, PaymentId: pid, Payload: PaymentAuthorizedPayload{}})
	assert.Equal(t, StatusAuthorized, s.Status)
	assert.True(t, s.IsPending())

	s = s.Apply(LedgerEvent{Seq: 3, PaymentId: pid, Payload: PaymentDebitedPayload{}})
	s = s.Apply(LedgerEvent{Seq: 4, PaymentId: pid, Payload: PaymentCreditedPayload{}})
	s = s.Apply(LedgerEvent{Seq: 5, PaymentId: pid, Payload: PaymentCompletedPayload{}})
	assert.Equal(t, StatusCompleted, s.Status)
	assert.False(t, s.IsPending())
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, s.History)
}

func TestPaymentStateAppliesFailure(t *testing.T) {
	var s PaymentState
	s = s.Apply(LedgerEvent{Seq: 1, Payload: PaymentFailedPayload{Reason: "max_windows_before_fail exceeded"}})
	assert.Equal(t, StatusFailed, s.Status)
}
