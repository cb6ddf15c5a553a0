package ledger

import (
	"context"

	"github.com/crossbank/ledgerd/internal/ledgercore"
)

// subscriber is a single subscribe() call's mailbox. The writer never
// blocks trying to deliver: a subscriber slow enough to fill its buffer
// is dropped rather than letting one reader stall the writer, and must
// resume via Subscribe(fromSeq) once it notices the gap.
type subscriber struct {
	id     int
	events chan ledgercore.LedgerEvent
	done   chan struct{}
}

const subscriberBuffer = 256

// Subscribe returns a channel of committed events starting at fromSeq
// (inclusive). If fromSeq is at or below the current tip, the backlog
// is replayed from storage before live events take over; the caller
// sees no gap and no duplicate.
func (l *Ledger) Subscribe(ctx context.Context, fromSeq uint64) (<-chan ledgercore.LedgerEvent, error) {
	out := make(chan ledgercore.LedgerEvent, subscriberBuffer)

	sub := &subscriber{id: l.nextSubscriberID(), events: make(chan ledgercore.LedgerEvent, subscriberBuffer), done: make(chan struct{})}
	l.subMu.Lock()
	l.subscribers[sub.id] = sub
	l.subMu.Unlock()

	go func() {
		defer close(out)
		defer l.unsubscribe(sub.id)

		next := fromSeq
		backlog, err := l.drainBacklog(ctx, next)
		if err != nil {
			return
		}
		for _, ev := range backlog {
			select {
			case out <- ev:
				next = ev.Seq + 1
			case <-ctx.Done():
				return
			case <-l.done:
				return
			}
		}

		for {
			select {
			case ev, ok := <-sub.events:
				if !ok {
					return
				}
				if ev.Seq < next {
					continue // already delivered from the backlog replay
				}
				select {
				case out <- ev:
					next = ev.Seq + 1
				case <-ctx.Done():
					return
				case <-l.done:
					return
				}
			case <-ctx.Done():
				return
			case <-l.done:
				return
			case <-sub.done:
				return
			}
		}
	}()

	return out, nil
}

// drainBacklog reads every already-committed event from fromSeq up to
// whatever meta/last_seq currently is, so a subscriber restarting from a
// past seq catches up from storage before switching to the live feed.
func (l *Ledger) drainBacklog(ctx context.Context, fromSeq uint64) ([]ledgercore.LedgerEvent, error) {
	lastSeq, ok, err := l.readU64(ctx, metaLastSeqKey)
	if err != nil {
		return nil, err
	}
	if !ok || fromSeq > lastSeq {
		return nil, nil
	}
	return l.Range(ctx, fromSeq, lastSeq)
}

// publish fans a freshly-committed event out to every live subscriber.
// Called only by the writer goroutine, after durable acknowledgement.
func (l *Ledger) publish(ev ledgercore.LedgerEvent) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	for _, sub := range l.subscribers {
		select {
		case sub.events <- ev:
		default:
			// Subscriber fell behind its buffer; drop it rather than
			// block the writer. It must resubscribe from its last seen
			// seq to resume without a gap.
			close(sub.events)
			delete(l.subscribers, sub.id)
		}
	}
}

func (l *Ledger) nextSubscriberID() int {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	l.nextSubID++
	return l.nextSubID
}

func (l *Ledger) unsubscribe(id int) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	if sub, ok := l.subscribers[id]; ok {
		delete(l.subscribers, id)
		close(sub.done)
	}
}
