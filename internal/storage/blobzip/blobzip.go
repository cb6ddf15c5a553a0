// Package blobzip compresses large event payloads before they are
// written to the kv store, the way the teacher's node store compresses
// large ledger objects (internal/storage/nodestore/compression) before
// they hit disk. Payloads below MinSize are stored raw: LZ4's frame
// overhead isn't worth paying on the common case of small transfer
// instructions.
package blobzip

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pierrec/lz4"
)

// MinSize is the smallest payload blobzip will bother compressing.
const MinSize = 512

const (
	tagRaw  byte = 0x00
	tagLZ4  byte = 0x01
)

// Encode compresses data when it is large enough to benefit, prefixing
// the result with a one-byte tag so Decode knows whether to inflate it.
func Encode(data []byte) ([]byte, error) {
	if len(data) < MinSize {
		return append([]byte{tagRaw}, data...), nil
	}

	var buf bytes.Buffer
	buf.WriteByte(tagLZ4)
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("blobzip: compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("blobzip: compress: %w", err)
	}

	// If the frame overhead made this not worth it, fall back to raw.
	if buf.Len() >= len(data)+1 {
		return append([]byte{tagRaw}, data...), nil
	}
	return buf.Bytes(), nil
}

// Decode reverses Encode.
func Decode(encoded []byte) ([]byte, error) {
	if len(encoded) == 0 {
		return nil, fmt.Errorf("blobzip: empty input")
	}

	tag, body := encoded[0], encoded[1:]
	switch tag {
	case tagRaw:
		out := make([]byte, len(body))
		copy(out, body)
		return out, nil
	case tagLZ4:
		r := lz4.NewReader(bytes.NewReader(body))
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("blobzip: decompress: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("blobzip: unknown tag 0x%02x", tag)
	}
}
