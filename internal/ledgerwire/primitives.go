// Package ledgerwire implements the canonical, fixed-field-order,
// length-prefixed, big-endian binary encoding every event and block
// signature and hash chain is computed over. It deliberately does not
// reuse any general-purpose serializer (encoding/gob, encoding/json,
// protobuf): anything that feeds a hash or a signature must have one
// exact byte representation, chosen here rather than left to a
// library's own (and possibly evolving) wire format, grounded on the
// teacher's internal/codec/binary-codec fixed-layout idiom.
package ledgerwire

import (
	"encoding/binary"
	"fmt"
)

// Writer appends canonical fields to an in-memory buffer.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) U8(v uint8) *Writer {
	w.buf = append(w.buf, v)
	return w
}

func (w *Writer) U16(v uint16) *Writer {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
	return w
}

func (w *Writer) U32(v uint32) *Writer {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
	return w
}

func (w *Writer) U64(v uint64) *Writer {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
	return w
}

func (w *Writer) Raw(b []byte) *Writer {
	w.buf = append(w.buf, b...)
	return w
}

// Bytes16 appends a u16 length prefix followed by b. Panics if b does
// not fit in a uint16 — callers bound their inputs well under that.
func (w *Writer) Bytes16(b []byte) *Writer {
	if len(b) > 0xFFFF {
		panic(fmt.Sprintf("ledgerwire: value of length %d exceeds u16 length prefix", len(b)))
	}
	w.U16(uint16(len(b)))
	w.Raw(b)
	return w
}

// Bytes32 appends a u32 length prefix followed by b.
func (w *Writer) Bytes32(b []byte) *Writer {
	w.U32(uint32(len(b)))
	w.Raw(b)
	return w
}

// Str8 appends a u8 length prefix followed by s's bytes. Intended for
// short fixed-domain strings (currency codes, account ids).
func (w *Writer) Str8(s string) *Writer {
	if len(s) > 0xFF {
		panic(fmt.Sprintf("ledgerwire: string of length %d exceeds u8 length prefix", len(s)))
	}
	w.U8(uint8(len(s)))
	w.Raw([]byte(s))
	return w
}

// Reader consumes canonical fields from a byte slice in order.
type Reader struct {
	buf []byte
	pos int
	err error
}

func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

func (r *Reader) Err() error { return r.err }

func (r *Reader) fail(format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf("ledgerwire: "+format, args...)
	}
}

func (r *Reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.pos+n > len(r.buf) {
		r.fail("truncated: need %d bytes at offset %d, have %d total", n, r.pos, len(r.buf))
		return false
	}
	return true
}

func (r *Reader) U8() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.buf[r.pos]
	r.pos++
	return v
}

func (r *Reader) U16() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v
}

func (r *Reader) U32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v
}

func (r *Reader) U64() uint64 {
	if !r.need(8) {
		return 0
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v
}

func (r *Reader) Raw(n int) []byte {
	if !r.need(n) {
		return nil
	}
	v := r.buf[r.pos : r.pos+n]
	r.pos += n
	return v
}

func (r *Reader) Bytes16() []byte {
	n := int(r.U16())
	return r.Raw(n)
}

func (r *Reader) Bytes32() []byte {
	n := int(r.U32())
	return r.Raw(n)
}

func (r *Reader) Str8() string {
	n := int(r.U8())
	return string(r.Raw(n))
}

// Remaining reports how many unread trailing bytes exist — a non-empty
// tail always indicates a malformed or truncated record.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}
