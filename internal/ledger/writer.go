package ledger

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/crossbank/ledgerd/internal/crypto"
	"github.com/crossbank/ledgerd/internal/ledgercore"
	"github.com/crossbank/ledgerd/internal/ledgerwire"
	"github.com/crossbank/ledgerd/internal/merkle"
	"github.com/crossbank/ledgerd/internal/storage/kv"
)

// AppendResult is the successful outcome of minting one draft.
type AppendResult struct {
	Seq         uint64
	BlockHeight uint64
}

// writeRequest is one draft enqueued on the mailbox, with a one-shot
// reply channel — the actor's only synchronization primitive.
type writeRequest struct {
	ctx   context.Context
	draft ledgercore.EventDraft
	reply chan writeReply
}

type writeReply struct {
	result AppendResult
	err    error
}

// Append enqueues a draft and waits for the writer to durably commit it
// (or reject it). Honors ctx cancellation and the ledger's configured
// append timeout, whichever is shorter; per spec a cancelled or timed
// out append may or may not have landed — callers must re-query by
// payment id to learn the outcome.
func (l *Ledger) Append(ctx context.Context, draft ledgercore.EventDraft) (AppendResult, error) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.AppendTimeout)
	defer cancel()

	req := writeRequest{ctx: ctx, draft: draft, reply: make(chan writeReply, 1)}

	select {
	case l.mailbox <- req:
	case <-l.done:
		return AppendResult{}, ledgercore.NewError(ledgercore.KindConcurrency, "writer shut down")
	case <-ctx.Done():
		return AppendResult{}, ledgercore.NewError(ledgercore.KindTimeout, "append timed out enqueuing")
	}

	select {
	case rep := <-req.reply:
		return rep.result, rep.err
	case <-ctx.Done():
		return AppendResult{}, ledgercore.NewError(ledgercore.KindTimeout, "append timed out waiting for commit")
	}
}

// pendingDraft pairs a dequeued request with the result of validating and
// minting it, before the batch is committed as a whole.
type pendingDraft struct {
	req       writeRequest
	event     ledgercore.LedgerEvent
	canonical []byte
	err       error // per-draft rejection; nil means it will be committed
}

// runWriter is the single actor goroutine: the only place that assigns
// seq, mutates the balance shadow, and touches storage for writes.
func (l *Ledger) runWriter(shadow *balanceShadow, tip chainTip) {
	defer l.wg.Done()

	for {
		batch, ok := l.collectBatch()
		if !ok {
			return
		}
		tip = l.commitBatch(shadow, tip, batch)
	}
}

// collectBatch drains up to batch_max_events, or waits up to
// batch_max_delay_ms after the first arrival for more to coalesce in.
// Returns ok=false once the ledger is closing and the mailbox is empty.
func (l *Ledger) collectBatch() ([]writeRequest, bool) {
	var batch []writeRequest

	select {
	case req := <-l.mailbox:
		batch = append(batch, req)
	case <-l.done:
		select {
		case req := <-l.mailbox:
			batch = append(batch, req)
		default:
			return nil, false
		}
	}

	timer := time.NewTimer(l.cfg.BatchMaxDelay)
	defer timer.Stop()

drain:
	for len(batch) < l.cfg.BatchMaxEvents {
		select {
		case req := <-l.mailbox:
			batch = append(batch, req)
		case <-timer.C:
			break drain
		}
	}
	return batch, true
}

// commitBatch runs steps 2-5 of the writer pipeline over one coalesced
// batch and returns the chain tip as it stands after the batch.
func (l *Ledger) commitBatch(shadow *balanceShadow, tip chainTip, batch []writeRequest) chainTip {
	shadowBefore := shadow.clone()
	tipBefore := tip

	pending := make([]pendingDraft, 0, len(batch))
	var ops []kv.Op
	nextSeq := tip.lastSeq + 1

	for _, req := range batch {
		// A caller that cancelled or timed out while waiting does not
		// pull its draft out of an already-dequeued batch: once a draft
		// is here it is minted and committed like any other, and the
		// caller (having already given up on the reply) must consult
		// the stream or re-query by payment id to learn the outcome.
		ev, err := l.validateAndMint(shadow, tip, nextSeq, req.draft)
		if err != nil {
			pending = append(pending, pendingDraft{req: req, err: err})
			continue
		}

		canonical, eerr := ledgerwire.EncodeEvent(ev)
		if eerr != nil {
			pending = append(pending, pendingDraft{req: req, err: ledgercore.WrapError(ledgercore.KindInvalidEvent, "encode event", eerr)})
			continue
		}
		stored, zerr := encodeStoredEvent(canonical)
		if zerr != nil {
			pending = append(pending, pendingDraft{req: req, err: ledgercore.WrapError(ledgercore.KindInvalidEvent, "compress event", zerr)})
			continue
		}

		applyToShadow(shadow, ev)
		tip.lastSeq = nextSeq
		tip.lastEventHash = crypto.Hash(canonical)
		tip.blockLeaves = append(tip.blockLeaves, canonical)

		ops = append(ops, kv.Op{Type: kv.OpPut, Key: eventKey(ev.Seq), Value: stored})
		ops = append(ops, kv.Op{Type: kv.OpPut, Key: paymentIndexKey(ev.PaymentId, ev.Seq), Value: []byte{}})

		pending = append(pending, pendingDraft{req: req, event: ev, canonical: canonical})
		nextSeq++
	}

	var closedBlock *ledgercore.Block
	if len(tip.blockLeaves) > 0 {
		elapsed := time.Since(tip.blockOpenedAt)
		if uint64(len(tip.blockLeaves)) >= uint64(l.cfg.BlockSize) || elapsed >= l.cfg.BlockTimeout {
			block, signErr := l.closeBlock(tip)
			if signErr != nil {
				*shadow = *shadowBefore
				l.failBatch(pending, signErr)
				return tipBefore
			}
			closedBlock = &block
			ops = append(ops, kv.Op{Type: kv.OpPut, Key: blockKey(block.Height), Value: ledgerwire.EncodeBlock(block)})
			tip.lastBlock = block.Height
			tip.lastBlockHash = crypto.Hash(ledgerwire.EncodeBlock(block))
			tip.blockStart = tip.lastSeq + 1
			tip.blockLeaves = nil
			tip.blockOpenedAt = time.Now()
		}
	}

	if len(ops) > 0 {
		ops = append(ops, kv.Op{Type: kv.OpPut, Key: metaLastSeqKey, Value: ledgerwire.NewWriter().U64(tip.lastSeq).Bytes()})
		if closedBlock != nil {
			ops = append(ops, kv.Op{Type: kv.OpPut, Key: metaLastBlockKey, Value: ledgerwire.NewWriter().U64(tip.lastBlock).Bytes()})
		}

		if err := l.putBatchWithRetry(context.Background(), ops); err != nil {
			*shadow = *shadowBefore
			l.log.Error("batch commit failed, rolling back", zap.Error(err))
			l.resyncLastSeq()
			l.failBatch(pending, ledgercore.WrapError(ledgercore.KindStorage, "batch commit failed", err))
			return tipBefore
		}
	}

	var blockHeight uint64
	if closedBlock != nil {
		blockHeight = closedBlock.Height
	} else {
		blockHeight = tip.lastBlock
	}

	for _, p := range pending {
		if p.err != nil {
			p.req.reply <- writeReply{err: p.err}
			continue
		}
		p.req.reply <- writeReply{result: AppendResult{Seq: p.event.Seq, BlockHeight: blockHeight}}
		l.publish(p.event)
	}

	return tip
}

// validateAndMint turns a draft into a fully-formed, signed event without
// touching storage: assigns seq, computes prev_hash from the in-memory
// chain tip, validates money conservation against the shadow, and signs.
func (l *Ledger) validateAndMint(shadow *balanceShadow, tip chainTip, seq uint64, draft ledgercore.EventDraft) (ledgercore.LedgerEvent, error) {
	if draft.Payload == nil {
		return ledgercore.LedgerEvent{}, ledgercore.NewError(ledgercore.KindInvalidEvent, "nil payload")
	}

	if err := l.checkConservation(shadow, draft); err != nil {
		return ledgercore.LedgerEvent{}, err
	}

	ts := draft.ClientTime
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	ev := ledgercore.LedgerEvent{
		Seq:       seq,
		Kind:      draft.Payload.Kind(),
		PaymentId: draft.PaymentId,
		Timestamp: ts,
		Payload:   draft.Payload,
		PrevHash:  tip.lastEventHash,
	}

	signing, err := ledgerwire.SigningBytes(ev)
	if err != nil {
		return ledgercore.LedgerEvent{}, ledgercore.WrapError(ledgercore.KindInvalidEvent, "encode signing bytes", err)
	}

	sig, err := l.signWithRetry(signing)
	if err != nil {
		return ledgercore.LedgerEvent{}, ledgercore.WrapError(ledgercore.KindSignature, "sign event", err)
	}
	ev.Signature = sig
	ev.KeyID = l.signer.KeyID()
	ev.Epoch = l.signer.Epoch()

	return ev, nil
}

// checkConservation validates the draft against the balance shadow
// without mutating it; callers apply the mutation only once the whole
// event is known to be mintable.
func (l *Ledger) checkConservation(shadow *balanceShadow, draft ledgercore.EventDraft) error {
	switch p := draft.Payload.(type) {
	case ledgercore.PaymentDebitedPayload:
		return shadow.checkDebit(draft.PaymentId, p.Currency, p.Amount)
	case ledgercore.PaymentCreditedPayload:
		return shadow.checkCredit(draft.PaymentId, p.Currency, p.Amount)
	default:
		return nil
	}
}

// closeBlock builds the Merkle tree over the currently-open block's
// canonical event bytes and signs the block header.
func (l *Ledger) closeBlock(tip chainTip) (ledgercore.Block, error) {
	tree := merkle.Build(tip.blockLeaves)

	block := ledgercore.Block{
		Height:        tip.lastBlock + 1,
		FirstSeq:      tip.blockStart,
		LastSeq:       tip.lastSeq,
		MerkleRoot:    tree.Root(),
		PrevBlockHash: tip.lastBlockHash,
		CreatedAt:     time.Now().UTC(),
	}

	sig, err := l.signWithRetry(block.SigningBytes())
	if err != nil {
		return ledgercore.Block{}, ledgercore.WrapError(ledgercore.KindSignature, "sign block", err)
	}
	block.Signature = sig
	return block, nil
}

func (l *Ledger) signWithRetry(data []byte) (crypto.Signature, error) {
	var lastErr error
	backoff := l.cfg.SignatureBackoff
	for attempt := 0; attempt <= l.cfg.SignatureRetries; attempt++ {
		sig, err := l.signer.Sign(data)
		if err == nil {
			return sig, nil
		}
		lastErr = err
		if attempt < l.cfg.SignatureRetries {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return crypto.Signature{}, lastErr
}

// putBatchWithRetry is the durability fence; storage errors are retried
// with bounded backoff before being surfaced as batch-level failures.
func (l *Ledger) putBatchWithRetry(ctx context.Context, ops []kv.Op) error {
	var lastErr error
	backoff := l.cfg.SignatureBackoff
	for attempt := 0; attempt <= l.cfg.SignatureRetries; attempt++ {
		if err := l.db.PutBatch(ctx, ops); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt < l.cfg.SignatureRetries {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return lastErr
}

// resyncLastSeq re-reads meta/last_seq from storage after a failed
// batch, per spec: the writer must not trust its in-memory tip once a
// storage write has failed. The batch's ops were atomic, so this is a
// consistency confirmation rather than a source of new information —
// but it is the defined recovery path, not an optimization to skip.
func (l *Ledger) resyncLastSeq() {
	seq, ok, err := l.readU64(context.Background(), metaLastSeqKey)
	if err != nil {
		l.log.Error("failed to resync last_seq after storage failure", zap.Error(err))
		return
	}
	if !ok {
		seq = 0
	}
	l.log.Warn("resynced last_seq after storage failure", zap.Uint64("last_seq", seq))
}

func (l *Ledger) failBatch(pending []pendingDraft, err error) {
	for _, p := range pending {
		select {
		case p.req.reply <- writeReply{err: err}:
		default:
		}
	}
}
