package ledger

import (
	"context"
	"fmt"

	"github.com/crossbank/ledgerd/internal/crypto"
	"github.com/crossbank/ledgerd/internal/ledgercore"
	"github.com/crossbank/ledgerd/internal/ledgerwire"
	"github.com/crossbank/ledgerd/internal/merkle"
	"github.com/crossbank/ledgerd/internal/storage/kv"
)

// VerifyReport is the outcome of VerifyRange: OK, or the seq of the
// first discrepancy found and a description of what failed there.
type VerifyReport struct {
	OK          bool
	FailedAtSeq uint64
	Detail      string
}

// GetEvent returns the committed event at seq, read from a storage
// snapshot so it never observes a partially-applied in-flight batch.
func (l *Ledger) GetEvent(ctx context.Context, seq uint64) (ledgercore.LedgerEvent, error) {
	snap, err := l.db.Snapshot(ctx)
	if err != nil {
		return ledgercore.LedgerEvent{}, ledgercore.WrapError(ledgercore.KindStorage, "open snapshot", err)
	}
	defer snap.Close()

	v, err := snap.Get(eventKey(seq))
	if err == kv.ErrNotFound {
		return ledgercore.LedgerEvent{}, ledgercore.NewError(ledgercore.KindNotFound, fmt.Sprintf("event seq=%d", seq))
	}
	if err != nil {
		return ledgercore.LedgerEvent{}, ledgercore.WrapError(ledgercore.KindStorage, "get event", err)
	}
	return decodeStoredEvent(v)
}

// GetBlock returns the block at height.
func (l *Ledger) GetBlock(ctx context.Context, height uint64) (ledgercore.Block, error) {
	snap, err := l.db.Snapshot(ctx)
	if err != nil {
		return ledgercore.Block{}, ledgercore.WrapError(ledgercore.KindStorage, "open snapshot", err)
	}
	defer snap.Close()

	v, err := snap.Get(blockKey(height))
	if err == kv.ErrNotFound {
		return ledgercore.Block{}, ledgercore.NewError(ledgercore.KindNotFound, fmt.Sprintf("block height=%d", height))
	}
	if err != nil {
		return ledgercore.Block{}, ledgercore.WrapError(ledgercore.KindStorage, "get block", err)
	}
	return ledgerwire.DecodeBlock(v)
}

// GetPayment folds every event indexed under paymentID into its current
// PaymentState, read from a single consistent snapshot.
func (l *Ledger) GetPayment(ctx context.Context, paymentID ledgercore.PaymentId) (ledgercore.PaymentState, error) {
	snap, err := l.db.Snapshot(ctx)
	if err != nil {
		return ledgercore.PaymentState{}, ledgercore.WrapError(ledgercore.KindStorage, "open snapshot", err)
	}
	defer snap.Close()

	idxIt, err := snap.Iterator(paymentIndexPrefix(paymentID), paymentIndexUpperBound(paymentID))
	if err != nil {
		return ledgercore.PaymentState{}, ledgercore.WrapError(ledgercore.KindStorage, "iterate payment index", err)
	}
	defer idxIt.Close()

	var state ledgercore.PaymentState
	var found bool
	for idxIt.Next() {
		seq := seqFromPaymentIndexKey(idxIt.Key())
		raw, err := snap.Get(eventKey(seq))
		if err != nil {
			return ledgercore.PaymentState{}, ledgercore.WrapError(ledgercore.KindStorage, "get indexed event", err)
		}
		ev, err := decodeStoredEvent(raw)
		if err != nil {
			return ledgercore.PaymentState{}, err
		}
		state = state.Apply(ev)
		found = true
	}
	if err := idxIt.Error(); err != nil {
		return ledgercore.PaymentState{}, ledgercore.WrapError(ledgercore.KindStorage, "iterate payment index", err)
	}
	if !found {
		return ledgercore.PaymentState{}, ledgercore.NewError(ledgercore.KindNotFound, fmt.Sprintf("payment %s", paymentID.String()))
	}
	return state, nil
}

// Range streams events in [fromSeq, toSeq] in order, read from a single
// snapshot taken at call time.
func (l *Ledger) Range(ctx context.Context, fromSeq, toSeq uint64) ([]ledgercore.LedgerEvent, error) {
	snap, err := l.db.Snapshot(ctx)
	if err != nil {
		return nil, ledgercore.WrapError(ledgercore.KindStorage, "open snapshot", err)
	}
	defer snap.Close()

	it, err := snap.Iterator(eventKey(fromSeq), eventKey(toSeq+1))
	if err != nil {
		return nil, ledgercore.WrapError(ledgercore.KindStorage, "iterate events", err)
	}
	defer it.Close()

	var out []ledgercore.LedgerEvent
	for it.Next() {
		ev, err := decodeStoredEvent(it.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, it.Error()
}

// VerifyRange re-hashes the event chain over [from, to] and re-verifies
// the Merkle root and signature of every closed block that lies wholly
// inside that range, returning the first discrepancy found rather than
// halting the writer (unlike the fatal check recovery performs at cold
// start). Blocks only partly inside the range are not checked.
func (l *Ledger) VerifyRange(ctx context.Context, from, to uint64) (VerifyReport, error) {
	events, err := l.Range(ctx, from, to)
	if err != nil {
		return VerifyReport{}, err
	}

	var prevHash [32]byte
	if from > 1 {
		prior, err := l.GetEvent(ctx, from-1)
		if err != nil {
			return VerifyReport{}, err
		}
		canonical, err := ledgerwire.EncodeEvent(prior)
		if err != nil {
			return VerifyReport{}, err
		}
		prevHash = crypto.Hash(canonical)
	}

	for _, ev := range events {
		if ev.PrevHash != prevHash {
			return VerifyReport{FailedAtSeq: ev.Seq, Detail: "prev_hash mismatch"}, nil
		}
		canonical, err := ledgerwire.EncodeEvent(ev)
		if err != nil {
			return VerifyReport{}, err
		}
		prevHash = crypto.Hash(canonical)
	}

	blockReport, err := l.verifyBlockRange(ctx, events)
	if err != nil {
		return VerifyReport{}, err
	}
	if !blockReport.OK {
		return blockReport, nil
	}

	return VerifyReport{OK: true}, nil
}

func (l *Ledger) verifyBlockRange(ctx context.Context, events []ledgercore.LedgerEvent) (VerifyReport, error) {
	if len(events) == 0 {
		return VerifyReport{OK: true}, nil
	}

	byBlock := make(map[uint64][]ledgercore.LedgerEvent)
	var heights []uint64
	seen := make(map[uint64]bool)
	for _, ev := range events {
		height := (ev.Seq-1)/uint64(max(l.cfg.BlockSize, 1)) + 1
		if !seen[height] {
			seen[height] = true
			heights = append(heights, height)
		}
		byBlock[height] = append(byBlock[height], ev)
	}

	for _, height := range heights {
		block, err := l.GetBlock(ctx, height)
		if err != nil {
			if kind, ok := ledgercore.KindOf(err); ok && kind == ledgercore.KindNotFound {
				continue // block not yet closed; nothing to verify yet
			}
			return VerifyReport{}, err
		}
		var leaves [][]byte
		for _, ev := range byBlock[height] {
			canonical, err := ledgerwire.EncodeEvent(ev)
			if err != nil {
				return VerifyReport{}, err
			}
			leaves = append(leaves, canonical)
		}
		if len(leaves) != int(block.LastSeq-block.FirstSeq+1) {
			continue // partial range of a block; can't recompute its root from this slice alone
		}
		tree := merkle.Build(leaves)
		if tree.Root() != block.MerkleRoot {
			return VerifyReport{FailedAtSeq: block.FirstSeq, Detail: "merkle root mismatch"}, nil
		}
		if l.signer != nil {
			sig := block.Signature
			sig.KeyType = l.signer.PublicKey().KeyType
			if !l.signer.Verify(block.SigningBytes(), sig, l.signer.PublicKey()) {
				return VerifyReport{FailedAtSeq: block.FirstSeq, Detail: "block signature invalid"}, nil
			}
		}
	}
	return VerifyReport{OK: true}, nil
}

func paymentIndexUpperBound(paymentID [16]byte) []byte {
	prefix := paymentIndexPrefix(paymentID)
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] != 0xFF {
			upper[i]++
			return upper
		}
		upper[i] = 0
	}
	return upper
}

func seqFromPaymentIndexKey(key []byte) uint64 {
	r := ledgerwire.NewReader(key[len(key)-8:])
	return r.U64()
}
