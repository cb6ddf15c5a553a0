// Package settlement runs the periodic window manager that turns
// authorized-but-unsettled payments into interbank transfers: Freeze the
// pending set, Screen it against compliance, Net it down to the minimum
// transfer count, Attempt those transfers against real bank rails, and
// Commit one SettlementBatch event regardless of individual transfer
// outcomes. Mirrors the teacher's ticker-driven subsystem idiom
// (internal/consensus/scheduler.go's time.Ticker-plus-select loop)
// generalized from consensus rounds to settlement windows.
package settlement

import (
	"context"

	"github.com/crossbank/ledgerd/internal/ledger"
	"github.com/crossbank/ledgerd/internal/ledgercore"
)

// BankConnector executes one net transfer against a bank's settlement
// rails. A failure here fails only that transfer, never the whole
// window: the SettlementBatch event still commits, carrying the
// transfer's Failed status as an auditable fact.
type BankConnector interface {
	Transfer(ctx context.Context, transfer ledgercore.NetTransfer) error
}

// ScreeningPredicate decides whether an obligation may enter this
// window's netting run. A false verdict leaves the payment Authorized
// and untouched; it is simply reconsidered next window.
type ScreeningPredicate interface {
	Screen(ctx context.Context, obligation ledgercore.Obligation) (bool, error)
}

// LedgerAppender is the subset of *ledger.Ledger the window manager
// needs. Defined here, not imported from internal/ledger, so tests can
// substitute a mock without depending on a live writer actor.
type LedgerAppender interface {
	Append(ctx context.Context, draft ledgercore.EventDraft) (ledger.AppendResult, error)
	Subscribe(ctx context.Context, fromSeq uint64) (<-chan ledgercore.LedgerEvent, error)
}
