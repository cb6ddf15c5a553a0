package settlement

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crossbank/ledgerd/internal/ledgercore"
	"github.com/crossbank/ledgerd/internal/netting"
)

// Config controls the window manager's schedule and retry budget. Field
// names match the configuration keys of the same name in
// internal/config.
type Config struct {
	WindowInterval       time.Duration
	MaxWindowsBeforeFail int
}

// Manager ticks every WindowInterval and runs one settlement window:
// Freeze, Screen, Net, Attempt, Commit. It maintains its own live
// projection of Authorized payments by subscribing to the ledger's
// event stream, the same replay-to-rebuild-state idiom the ledger's
// writer uses for its balance shadow.
type Manager struct {
	cfg       Config
	ledger    LedgerAppender
	connector BankConnector
	screen    ScreeningPredicate
	liquidity netting.Liquidity
	log       *zap.Logger

	shadow   *pendingShadow
	shadowMu sync.Mutex
	lastSeq  uint64

	windowID uint64

	done chan struct{}
	wg   sync.WaitGroup
}

// New builds a Manager. liquidity may be nil, meaning no bank is
// liquidity-capped.
func New(cfg Config, ledger LedgerAppender, connector BankConnector, screen ScreeningPredicate, liquidity netting.Liquidity, log *zap.Logger) *Manager {
	if liquidity == nil {
		liquidity = netting.Liquidity{}
	}
	return &Manager{
		cfg:       cfg,
		ledger:    ledger,
		connector: connector,
		screen:    screen,
		liquidity: liquidity,
		log:       log,
		shadow:    newPendingShadow(),
		done:      make(chan struct{}),
	}
}

// Run subscribes to the ledger from fromSeq and starts the window
// ticker. It blocks until ctx is cancelled or Stop is called.
func (m *Manager) Run(ctx context.Context, fromSeq uint64) error {
	events, err := m.ledger.Subscribe(ctx, fromSeq)
	if err != nil {
		return ledgercore.WrapError(ledgercore.KindStorage, "subscribe for settlement projection", err)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				m.shadowMu.Lock()
				m.shadow.apply(ev)
				m.lastSeq = ev.Seq
				m.shadowMu.Unlock()
			case <-ctx.Done():
				return
			case <-m.done:
				return
			}
		}
	}()

	ticker := time.NewTicker(m.cfg.WindowInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.windowID++
			if err := m.runWindow(ctx, m.windowID); err != nil {
				m.log.Error("settlement window failed", zap.Uint64("window_id", m.windowID), zap.Error(err))
			}
		case <-ctx.Done():
			m.wg.Wait()
			return ctx.Err()
		case <-m.done:
			m.wg.Wait()
			return nil
		}
	}
}

// Stop halts the ticker loop and the projection goroutine.
func (m *Manager) Stop() {
	close(m.done)
}

// runWindow executes exactly one Freeze/Screen/Net/Attempt/Commit cycle.
// When at least one obligation survives screening it appends exactly one
// SettlementBatch event, regardless of how many individual transfers
// within it failed; otherwise it appends nothing.
func (m *Manager) runWindow(ctx context.Context, windowID uint64) error {
	obligations := m.freeze(windowID)
	if len(obligations) == 0 {
		return nil // nothing pending; no batch emitted this tick
	}

	screened, err := m.screenAll(ctx, obligations)
	if err != nil {
		return err
	}
	if len(screened) == 0 {
		return nil
	}

	plan, err := netting.Net(ctx, screened, m.liquidity)
	if err != nil {
		return ledgercore.WrapError(ledgercore.KindStorage, "net obligations", err)
	}

	m.attempt(ctx, plan.NetTransfers)

	return m.commit(ctx, windowID, m.snapshotSeq(), screened, plan)
}

// freeze takes a point-in-time copy of every Authorized payment, under
// lock so a concurrent event from the subscription goroutine cannot be
// applied mid-snapshot.
func (m *Manager) freeze(windowID uint64) []ledgercore.Obligation {
	m.shadowMu.Lock()
	defer m.shadowMu.Unlock()
	return m.shadow.snapshot(windowID)
}

func (m *Manager) snapshotSeq() uint64 {
	m.shadowMu.Lock()
	defer m.shadowMu.Unlock()
	return m.lastSeq
}

// screenAll filters obligations through the screening predicate and
// tracks each surviving payment's window-attempt count against
// MaxWindowsBeforeFail, failing out payments that have exhausted their
// retry budget instead of re-attempting them forever.
func (m *Manager) screenAll(ctx context.Context, obligations []ledgercore.Obligation) ([]ledgercore.Obligation, error) {
	var kept []ledgercore.Obligation
	for _, o := range obligations {
		ok, err := m.screen.Screen(ctx, o)
		if err != nil {
			return nil, ledgercore.WrapError(ledgercore.KindStorage, "screen obligation", err)
		}
		if !ok {
			continue // stays Authorized, reconsidered next window
		}

		m.shadowMu.Lock()
		seen := m.shadow.recordWindowAttempt(o.PaymentId)
		m.shadowMu.Unlock()

		if m.cfg.MaxWindowsBeforeFail > 0 && seen > m.cfg.MaxWindowsBeforeFail {
			m.failPayment(ctx, o.PaymentId, "exceeded max_windows_before_fail")
			continue
		}
		kept = append(kept, o)
	}
	return kept, nil
}

// attempt executes every planned transfer against the bank connector,
// marking each transfer's outcome in place. A transfer failure never
// aborts the remaining transfers in the plan.
func (m *Manager) attempt(ctx context.Context, transfers []ledgercore.NetTransfer) {
	for i := range transfers {
		if err := m.connector.Transfer(ctx, transfers[i]); err != nil {
			transfers[i].Status = ledgercore.TransferFailed
			m.log.Warn("net transfer failed", zap.String("from", transfers[i].FromBank.String()), zap.String("to", transfers[i].ToBank.String()), zap.Error(err))
			continue
		}
		transfers[i].Status = ledgercore.TransferSucceeded
	}
}

// commit appends the SettlementBatch event and, for every payment whose
// debtor and creditor legs both settled, a PaymentCompleted event. The
// batch event itself always commits: a partial failure is recorded
// inside it, never swallowed.
func (m *Manager) commit(ctx context.Context, windowID, snapshotSeq uint64, obligations []ledgercore.Obligation, plan netting.Plan) error {
	batchID := ledgercore.NewPaymentId()

	paymentIds := make([]ledgercore.PaymentId, len(obligations))
	for i, o := range obligations {
		paymentIds[i] = o.PaymentId
	}

	batch := ledgercore.SettlementBatchPayload{
		BatchId:      batchID,
		WindowId:     windowID,
		SnapshotSeq:  snapshotSeq,
		PaymentIds:   paymentIds,
		NetTransfers: plan.NetTransfers,
		GrossTotals:  netting.GrossTotal(obligations),
		NetTotals:    netting.NetTotal(plan.NetTransfers),
	}

	if _, err := m.ledger.Append(ctx, ledgercore.EventDraft{PaymentId: batchID, Payload: batch}); err != nil {
		return ledgercore.WrapError(ledgercore.KindStorage, "append settlement batch", err)
	}

	unnetted := make(map[ledgercore.PaymentId]bool, len(plan.Unnetted))
	for _, o := range plan.Unnetted {
		unnetted[o.PaymentId] = true
	}
	failedBanks := failedTransferBanks(plan.NetTransfers)
	for _, o := range obligations {
		if unnetted[o.PaymentId] {
			continue // excluded from netting this window; payment stays Authorized
		}
		if failedBanks[o.DebtorBank] || failedBanks[o.CreditorBank] {
			continue // leg involved a failed transfer; payment stays Authorized
		}
		completed := ledgercore.PaymentCompletedPayload{WindowId: windowID, BatchId: batchID}
		if _, err := m.ledger.Append(ctx, ledgercore.EventDraft{PaymentId: o.PaymentId, Payload: completed}); err != nil {
			m.log.Error("append payment completed", zap.Error(err))
		}
	}
	return nil
}

func (m *Manager) failPayment(ctx context.Context, id ledgercore.PaymentId, reason string) {
	if _, err := m.ledger.Append(ctx, ledgercore.EventDraft{PaymentId: id, Payload: ledgercore.PaymentFailedPayload{Reason: reason}}); err != nil {
		m.log.Error("append payment failed", zap.Error(err))
	}
}

// failedTransferBanks reports which banks had at least one transfer
// touching them fail this window. A bank untouched by any transfer (its
// obligations net exactly to zero) is never marked failed.
func failedTransferBanks(transfers []ledgercore.NetTransfer) map[ledgercore.BankId]bool {
	failed := make(map[ledgercore.BankId]bool)
	for _, t := range transfers {
		if t.Status == ledgercore.TransferFailed {
			failed[t.FromBank] = true
			failed[t.ToBank] = true
		}
	}
	return failed
}
