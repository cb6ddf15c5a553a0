package settlement

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/crossbank/ledgerd/internal/ledger"
	"github.com/crossbank/ledgerd/internal/ledgercore"
)

// fakeLedger is a minimal in-memory stand-in for *ledger.Ledger that
// satisfies LedgerAppender: it assigns sequence numbers and fans events
// out to a single live subscriber, enough to drive the window manager's
// projection and commit steps under test.
type fakeLedger struct {
	mu      sync.Mutex
	seq     uint64
	sub     chan ledgercore.LedgerEvent
	applied []ledgercore.LedgerEvent
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{sub: make(chan ledgercore.LedgerEvent, 256)}
}

func (f *fakeLedger) Append(ctx context.Context, draft ledgercore.EventDraft) (ledger.AppendResult, error) {
	f.mu.Lock()
	f.seq++
	ev := ledgercore.LedgerEvent{Seq: f.seq, Kind: draft.Payload.Kind(), PaymentId: draft.PaymentId, Payload: draft.Payload, Timestamp: time.Now()}
	f.applied = append(f.applied, ev)
	f.mu.Unlock()
	f.sub <- ev
	return ledger.AppendResult{Seq: ev.Seq}, nil
}

func (f *fakeLedger) Subscribe(ctx context.Context, fromSeq uint64) (<-chan ledgercore.LedgerEvent, error) {
	return f.sub, nil
}

type allowAll struct{}

func (allowAll) Screen(ctx context.Context, o ledgercore.Obligation) (bool, error) { return true, nil }

type recordingConnector struct {
	mu   sync.Mutex
	seen []ledgercore.NetTransfer
	fail map[ledgercore.BankId]bool
}

func (c *recordingConnector) Transfer(ctx context.Context, t ledgercore.NetTransfer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, t)
	if c.fail[t.FromBank] {
		return errTransferFailed
	}
	return nil
}

var errTransferFailed = &transferErr{}

type transferErr struct{}

func (*transferErr) Error() string { return "simulated transfer failure" }

func bankID(b byte) ledgercore.BankId {
	var id ledgercore.BankId
	id[0] = b
	return id
}

// TestManagerOneBatchPerTick drives a window manager with a payment
// already Initiated+Authorized, ticks it once, and checks that exactly
// one SettlementBatch and one PaymentCompleted event were appended.
func TestManagerOneBatchPerTick(t *testing.T) {
	fl := newFakeLedger()
	connector := &recordingConnector{}
	mgr := New(Config{WindowInterval: 20 * time.Millisecond, MaxWindowsBeforeFail: 4}, fl, connector, allowAll{}, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go mgr.Run(ctx, 1)
	defer mgr.Stop()

	paymentID := ledgercore.NewPaymentId()
	usd := ledgercore.Currency("USD")
	amount, _ := ledgercore.ParseAmount("100.00", 2)

	if _, err := fl.Append(ctx, ledgercore.EventDraft{PaymentId: paymentID, Payload: ledgercore.PaymentInitiatedPayload{Currency: usd, Amount: amount}}); err != nil {
		t.Fatal(err)
	}
	if _, err := fl.Append(ctx, ledgercore.EventDraft{PaymentId: paymentID, Payload: ledgercore.PaymentAuthorizedPayload{DebtorBank: bankID('A'), CreditorBank: bankID('B')}}); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		fl.mu.Lock()
		n := len(fl.applied)
		fl.mu.Unlock()
		if n >= 4 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for settlement batch; got %d events", n)
		case <-time.After(10 * time.Millisecond):
		}
	}

	fl.mu.Lock()
	defer fl.mu.Unlock()

	var batches, completions int
	for _, ev := range fl.applied {
		switch ev.Payload.(type) {
		case ledgercore.SettlementBatchPayload:
			batches++
		case ledgercore.PaymentCompletedPayload:
			completions++
		}
	}
	if batches != 1 {
		t.Errorf("settlement batches = %d, want 1", batches)
	}
	if completions != 1 {
		t.Errorf("payment completions = %d, want 1", completions)
	}
}
