package ledgerwire

import (
	"fmt"
	"time"

	"github.com/crossbank/ledgerd/internal/crypto"
	"github.com/crossbank/ledgerd/internal/ledgercore"
)

// CurrentVersion is the envelope version byte-layout revision this
// package encodes and decodes.
const CurrentVersion uint32 = 1

// SigningBytes returns the exact bytes the event signature covers:
// version | kind_tag | seq | ts_nanos | payment_id | payload_len |
// payload | prev_hash. This excludes the signature and key metadata
// that follow it in the full record, since an event cannot sign over
// its own signature.
func SigningBytes(ev ledgercore.LedgerEvent) ([]byte, error) {
	payloadBytes, err := EncodePayload(ev.Payload)
	if err != nil {
		return nil, fmt.Errorf("ledgerwire: encode payload for seq %d: %w", ev.Seq, err)
	}

	w := NewWriter()
	w.U32(CurrentVersion)
	w.U8(uint8(ev.Kind))
	w.U64(ev.Seq)
	w.U64(uint64(ev.Timestamp.UnixNano()))
	w.Raw(ev.PaymentId[:])
	w.Bytes32(payloadBytes)
	w.Raw(ev.PrevHash[:])
	return w.Bytes(), nil
}

// EncodeEvent renders the full canonical record (signing bytes plus
// signature and key metadata) exactly per the persisted layout: this
// is what gets hashed to become the next event's prev_hash.
func EncodeEvent(ev ledgercore.LedgerEvent) ([]byte, error) {
	signing, err := SigningBytes(ev)
	if err != nil {
		return nil, err
	}

	w := NewWriter()
	w.Raw(signing)
	w.Bytes16(ev.Signature.Bytes)
	w.Bytes16([]byte(ev.KeyID))
	w.Bytes16([]byte(ev.Epoch))
	return w.Bytes(), nil
}

// DecodeEvent reverses EncodeEvent.
func DecodeEvent(data []byte) (ledgercore.LedgerEvent, error) {
	r := NewReader(data)
	var ev ledgercore.LedgerEvent

	version := r.U32()
	if r.Err() == nil && version != CurrentVersion {
		return ledgercore.LedgerEvent{}, fmt.Errorf("ledgerwire: unsupported event envelope version %d", version)
	}

	ev.Kind = ledgercore.EventKind(r.U8())
	ev.Seq = r.U64()
	ev.Timestamp = time.Unix(0, int64(r.U64())).UTC()
	copy(ev.PaymentId[:], r.Raw(len(ev.PaymentId)))
	payloadBytes := r.Bytes32()
	copy(ev.PrevHash[:], r.Raw(len(ev.PrevHash)))

	sigBytes := r.Bytes16()
	keyID := string(r.Bytes16())
	epoch := string(r.Bytes16())

	if r.Err() != nil {
		return ledgercore.LedgerEvent{}, r.Err()
	}
	if r.Remaining() != 0 {
		return ledgercore.LedgerEvent{}, fmt.Errorf("ledgerwire: %d trailing bytes after event seq %d", r.Remaining(), ev.Seq)
	}

	payload, err := DecodePayload(ev.Kind, payloadBytes)
	if err != nil {
		return ledgercore.LedgerEvent{}, fmt.Errorf("ledgerwire: decode payload for seq %d: %w", ev.Seq, err)
	}
	ev.Payload = payload
	ev.KeyID = keyID
	ev.Epoch = epoch
	// KeyType is not part of the wire layout: the decoded signature
	// carries only its bytes (KeyTypeUnknown), so a verifier must set the
	// key type itself before calling Verify.
	ev.Signature = crypto.Signature{Bytes: sigBytes}
	return ev, nil
}
