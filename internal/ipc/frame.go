package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize is the largest payload a single frame may carry (spec: 16
// MiB). A length prefix above this fails closed rather than allocating.
const MaxFrameSize = 16 * 1024 * 1024

// ErrMessageTooLarge is returned when a frame's declared length exceeds
// MaxFrameSize.
var ErrMessageTooLarge = errors.New("ipc: message too large")

// ErrConnectionClosed is returned when a partial frame is interrupted by
// EOF: the length prefix (or some of the payload) was read but the
// connection closed before the frame completed.
var ErrConnectionClosed = errors.New("ipc: connection closed mid-frame")

// WriteFrame writes a single length-prefixed frame: a 4-byte big-endian
// length followed by payload.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return ErrMessageTooLarge
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("ipc: write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("ipc: write frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads a single length-prefixed frame from r.
//
// A clean EOF before any header byte is read returns io.EOF unwrapped (the
// caller's end-of-stream signal). An EOF partway through the header or
// payload returns ErrConnectionClosed. A declared length over MaxFrameSize
// returns ErrMessageTooLarge without attempting to read the oversized
// payload.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, ErrConnectionClosed
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > MaxFrameSize {
		return nil, ErrMessageTooLarge
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, ErrConnectionClosed
	}
	return payload, nil
}
