package ledgerwire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriterReaderRoundTripPrimitives(t *testing.T) {
	w := NewWriter()
	w.U8(7).U16(1234).U32(99999).U64(123456789012).Bytes16([]byte("hello")).Str8("EUR")

	r := NewReader(w.Bytes())
	assert.Equal(t, uint8(7), r.U8())
	assert.Equal(t, uint16(1234), r.U16())
	assert.Equal(t, uint32(99999), r.U32())
	assert.Equal(t, uint64(123456789012), r.U64())
	assert.Equal(t, []byte("hello"), r.Bytes16())
	assert.Equal(t, "EUR", r.Str8())
	assert.NoError(t, r.Err())
	assert.Equal(t, 0, r.Remaining())
}

func TestReaderReportsTruncation(t *testing.T) {
	r := NewReader([]byte{0, 1})
	r.U32()
	assert.Error(t, r.Err())
}
