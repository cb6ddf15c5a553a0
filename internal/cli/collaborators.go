package cli

import (
	"context"

	"github.com/crossbank/ledgerd/internal/ledgercore"
)

// noopConnector and allowAllScreen stand in for the bank connector
// adapters and screening rules a real deployment wires in; both are
// external collaborators the spec names only at the interface level
// (SWIFT/SEPA/ACH adapters, sanctions/AML screening), out of scope for
// this repository. They let `ledgerd server` start and drive a
// settlement window end to end against a ledger with no real banking
// rails attached.
type noopConnector struct{}

func (noopConnector) Transfer(ctx context.Context, transfer ledgercore.NetTransfer) error {
	return nil
}

type allowAllScreen struct{}

func (allowAllScreen) Screen(ctx context.Context, obligation ledgercore.Obligation) (bool, error) {
	return true, nil
}
