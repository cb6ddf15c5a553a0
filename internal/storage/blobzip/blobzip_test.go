package blobzip

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmallPayloadStoredRaw(t *testing.T) {
	data := []byte("small")
	encoded, err := Encode(data)
	require.NoError(t, err)
	assert.Equal(t, tagRaw, encoded[0])

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, decoded))
}

func TestLargeRepetitivePayloadRoundTrips(t *testing.T) {
	data := []byte(strings.Repeat("transfer-instruction-payload;", 200))
	encoded, err := Encode(data)
	require.NoError(t, err)
	assert.Equal(t, tagLZ4, encoded[0])
	assert.Less(t, len(encoded), len(data))

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, decoded))
}

func TestDecodeRejectsUnknownTag(t *testing.T) {
	_, err := Decode([]byte{0xFF, 1, 2, 3})
	assert.Error(t, err)
}

func TestDecodeRejectsEmptyInput(t *testing.T) {
	_, err := Decode(nil)
	assert.Error(t, err)
}
