package shimclient

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// MaxFrameSize bounds a single inbound frame. Outbound frames are only
// limited by the 32-bit length prefix.
const MaxFrameSize = 64 * 1024 * 1024

const headerSize = 4

// WriteFrame writes a 4-byte little-endian length followed by payload.
func WriteFrame(w io.Writer, payload []byte) error {
	if uint64(len(payload)) > math.MaxUint32 {
		return fmt.Errorf("frame size %d exceeds 32-bit length prefix", len(payload))
	}
	var header [headerSize]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(payload)))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("failed to write frame length: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("failed to write frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame. Frames larger than limit are
// rejected before the payload is read.
func ReadFrame(r io.Reader, limit int) ([]byte, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("failed to read frame length: %w", err)
	}
	size := binary.LittleEndian.Uint32(header[:])
	if limit > 0 && uint64(size) > uint64(limit) {
		return nil, fmt.Errorf("frame size %d exceeds limit %d", size, limit)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("failed to read frame payload: %w", err)
	}
	return payload, nil
}
