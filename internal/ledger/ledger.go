// Package ledger implements the single-writer, append-only event ledger:
// a bounded-mailbox actor that mints events (assigns seq, chains, signs,
// batches, persists) and a set of snapshot-consistent read paths. Mirrors
// the teacher's single-writer transaction-queue idiom
// (internal/core/txq/txq.go, internal/core/ledger/service) generalized
// from XRPL transaction application to payment-event minting.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crossbank/ledgerd/internal/crypto"
	"github.com/crossbank/ledgerd/internal/ledgercore"
	"github.com/crossbank/ledgerd/internal/ledgerwire"
	"github.com/crossbank/ledgerd/internal/merkle"
	"github.com/crossbank/ledgerd/internal/storage/blobzip"
	"github.com/crossbank/ledgerd/internal/storage/kv"
)

// Config controls batching, block closing and backpressure. Field names
// match the configuration keys of the same name in internal/config.
type Config struct {
	BlockSize        int
	BlockTimeout     time.Duration
	BatchMaxEvents   int
	BatchMaxDelay    time.Duration
	MailboxCapacity  int
	AppendTimeout    time.Duration
	SignatureRetries int
	SignatureBackoff time.Duration
}

// DefaultConfig matches spec's enumerated defaults.
func DefaultConfig() Config {
	return Config{
		BlockSize:        1000,
		BlockTimeout:     5 * time.Second,
		BatchMaxEvents:   512,
		BatchMaxDelay:    10 * time.Millisecond,
		MailboxCapacity:  1024,
		AppendTimeout:    5 * time.Second,
		SignatureRetries: 3,
		SignatureBackoff: 50 * time.Millisecond,
	}
}

func (c Config) validate() error {
	if c.BlockSize < 1 {
		return ledgercore.NewError(ledgercore.KindInvalidEvent, "block_size must be >= 1")
	}
	if c.BatchMaxEvents < 1 {
		return ledgercore.NewError(ledgercore.KindInvalidEvent, "batch_max_events must be >= 1")
	}
	if c.MailboxCapacity < 1 {
		return ledgercore.NewError(ledgercore.KindInvalidEvent, "mailbox_capacity must be >= 1")
	}
	return nil
}

// Ledger is the single-writer event ledger. Reads go straight to storage
// snapshots; writes are serialized through a single actor goroutine.
type Ledger struct {
	cfg    Config
	db     kv.DB
	signer crypto.Signer
	log    *zap.Logger

	mailbox chan writeRequest
	done    chan struct{}
	wg      sync.WaitGroup

	closeOnce sync.Once

	subMu       sync.Mutex
	subscribers map[int]*subscriber
	nextSubID   int
}

// chainTip is the writer-private view of where the chain currently ends.
type chainTip struct {
	lastSeq       uint64
	lastEventHash [32]byte
	lastBlockHash [32]byte
	lastBlock     uint64
	blockStart    uint64 // seq of the first event in the still-open block
	blockLeaves   [][]byte
	blockOpenedAt time.Time
}

// Open opens (or creates) the ledger at the DB's configured path, replays
// persisted events to rebuild the balance shadow and chain tip, verifies
// every closed block, and starts the writer actor. Replay failure is
// fatal: it surfaces before the writer accepts new events.
func Open(ctx context.Context, db kv.DB, signer crypto.Signer, cfg Config, log *zap.Logger) (*Ledger, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	l := &Ledger{
		cfg:         cfg,
		db:          db,
		signer:      signer,
		log:         log,
		mailbox:     make(chan writeRequest, cfg.MailboxCapacity),
		done:        make(chan struct{}),
		subscribers: make(map[int]*subscriber),
	}

	shadow, tip, err := l.recover(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: recovery failed: %w", err)
	}

	l.wg.Add(1)
	go l.runWriter(shadow, tip)

	log.Info("ledger opened", zap.Uint64("last_seq", tip.lastSeq), zap.Uint64("last_block", tip.lastBlock))
	return l, nil
}

// Close stops accepting new work and waits for the writer to drain and
// exit. Idempotent.
func (l *Ledger) Close() {
	l.closeOnce.Do(func() {
		close(l.done)
		l.wg.Wait()
	})
}

// recover reads meta/last_seq and meta/last_block, replays every
// persisted event to rebuild the balance shadow, and re-verifies every
// closed block's Merkle root and signature. Any mismatch is fatal.
func (l *Ledger) recover(ctx context.Context) (*balanceShadow, chainTip, error) {
	shadow := newBalanceShadow()
	tip := chainTip{blockStart: 1, blockOpenedAt: time.Now()}

	lastSeq, ok, err := l.readU64(ctx, metaLastSeqKey)
	if err != nil {
		return nil, tip, err
	}
	if !ok {
		return shadow, tip, nil
	}
	tip.lastSeq = lastSeq

	lastBlock, ok, err := l.readU64(ctx, metaLastBlockKey)
	if err != nil {
		return nil, tip, err
	}
	if ok {
		tip.lastBlock = lastBlock
	}

	it, err := l.db.Iterator(ctx, eventPrefixStart, eventPrefixEnd)
	if err != nil {
		return nil, tip, err
	}
	defer it.Close()

	var blockLeaves [][]byte
	blockFirstSeq := uint64(1)
	for it.Next() {
		ev, derr := decodeStoredEvent(it.Value())
		if derr != nil {
			return nil, tip, fmt.Errorf("ledger: corrupt event at seq boundary: %w", derr)
		}
		canonical, eerr := ledgerwire.EncodeEvent(ev)
		if eerr != nil {
			return nil, tip, eerr
		}
		if ev.Seq > 1 && ev.PrevHash != tip.lastEventHash {
			return nil, tip, ledgercore.NewError(ledgercore.KindInvariantViolation, "chain discontinuity during replay")
		}
		applyToShadow(shadow, ev)
		tip.lastEventHash = crypto.Hash(canonical)
		blockLeaves = append(blockLeaves, canonical)

		if ev.Seq-blockFirstSeq+1 >= uint64(l.cfg.BlockSize) {
			blockFirstSeq = ev.Seq + 1
			blockLeaves = nil
		}
	}
	if err := it.Error(); err != nil {
		return nil, tip, err
	}
	tip.blockStart = blockFirstSeq
	tip.blockLeaves = blockLeaves
	tip.blockOpenedAt = time.Now()

	lastBlockHash, err := l.verifyBlocks(ctx)
	if err != nil {
		return nil, tip, err
	}
	tip.lastBlockHash = lastBlockHash

	return shadow, tip, nil
}

// verifyBlocks recomputes every closed block's Merkle root over its
// event range and checks the chain-of-custody hash between consecutive
// blocks. Signature verification is delegated to the configured signer's
// public key.
func (l *Ledger) verifyBlocks(ctx context.Context) ([32]byte, error) {
	it, err := l.db.Iterator(ctx, blockPrefixStart, blockPrefixEnd)
	if err != nil {
		return [32]byte{}, err
	}
	defer it.Close()

	var prevHash [32]byte
	for it.Next() {
		block, derr := ledgerwire.DecodeBlock(it.Value())
		if derr != nil {
			return [32]byte{}, fmt.Errorf("ledger: corrupt block record: %w", derr)
		}
		if block.Height > 1 && block.PrevBlockHash != prevHash {
			return [32]byte{}, ledgercore.NewError(ledgercore.KindInvariantViolation, "block chain discontinuity during replay")
		}
		leaves, err := l.collectCanonicalEvents(ctx, block.FirstSeq, block.LastSeq)
		if err != nil {
			return [32]byte{}, err
		}
		tree := merkle.Build(leaves)
		if tree.Root() != block.MerkleRoot {
			return [32]byte{}, ledgercore.NewError(ledgercore.KindInvariantViolation, "merkle root mismatch during replay")
		}
		if l.signer != nil {
			// The stored block record carries only the signature bytes;
			// the key type comes from the configured signer.
			sig := block.Signature
			sig.KeyType = l.signer.PublicKey().KeyType
			if !l.signer.Verify(block.SigningBytes(), sig, l.signer.PublicKey()) {
				return [32]byte{}, ledgercore.NewError(ledgercore.KindInvariantViolation, "block signature invalid during replay")
			}
		}
		prevHash = crypto.Hash(ledgerwire.EncodeBlock(block))
	}
	if err := it.Error(); err != nil {
		return [32]byte{}, err
	}
	return prevHash, nil
}

// collectCanonicalEvents returns the canonical encoding of every event in
// [from, to], in seq order — the raw material for both Merkle leaves and
// the event hash chain.
func (l *Ledger) collectCanonicalEvents(ctx context.Context, from, to uint64) ([][]byte, error) {
	it, err := l.db.Iterator(ctx, eventKey(from), eventKey(to+1))
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out [][]byte
	for it.Next() {
		ev, err := decodeStoredEvent(it.Value())
		if err != nil {
			return nil, err
		}
		canonical, err := ledgerwire.EncodeEvent(ev)
		if err != nil {
			return nil, err
		}
		out = append(out, canonical)
	}
	return out, it.Error()
}

// encodeStoredEvent and decodeStoredEvent are the only places that know
// event records are blobzip-compressed on disk; everywhere else works
// in terms of canonical (uncompressed) bytes, which is what the event
// hash chain and Merkle tree are computed over.
func encodeStoredEvent(canonical []byte) ([]byte, error) {
	return blobzip.Encode(canonical)
}

func decodeStoredEvent(stored []byte) (ledgercore.LedgerEvent, error) {
	canonical, err := blobzip.Decode(stored)
	if err != nil {
		return ledgercore.LedgerEvent{}, err
	}
	return ledgerwire.DecodeEvent(canonical)
}

func (l *Ledger) readU64(ctx context.Context, key []byte) (uint64, bool, error) {
	v, err := l.db.Get(ctx, key)
	if err == kv.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	r := ledgerwire.NewReader(v)
	val := r.U64()
	if err := r.Err(); err != nil {
		return 0, false, err
	}
	return val, true, nil
}

func applyToShadow(shadow *balanceShadow, ev ledgercore.LedgerEvent) {
	switch p := ev.Payload.(type) {
	case ledgercore.PaymentInitiatedPayload:
		shadow.applyInitiated(ev.PaymentId, p)
	case ledgercore.PaymentDebitedPayload:
		shadow.applyDebited(ev.PaymentId)
	case ledgercore.PaymentCreditedPayload:
		shadow.applyCredited(ev.PaymentId)
	}
}
