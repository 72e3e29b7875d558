package transport

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
)

// readBufferSize is the size of the buffer each peer reads through.
const readBufferSize = 1024

// maxFrameSize bounds the size of a single message on the wire.
const maxFrameSize = 16 << 20

// writeFrame writes the data prefixed by its length as 4 big-endian bytes.
func writeFrame(w io.Writer, data []byte) error {
	if len(data) > maxFrameSize {
		return NewNetworkError(KindMessage, "message of %d bytes exceeds the %d byte limit", len(data), maxFrameSize)
	}

	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(data)))

	if _, err := w.Write(size[:]); err != nil {
		return err
	}

	if _, err := w.Write(data); err != nil {
		return err
	}

	return nil
}

// readFrame reads a single length prefixed frame. A clean end of stream
// before the length is returned as io.EOF.
func readFrame(r *bufio.Reader) ([]byte, error) {
	var size [4]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		return nil, err
	}

	n := binary.BigEndian.Uint32(size[:])
	if n > maxFrameSize {
		return nil, NewNetworkError(KindDecoding, "frame of %d bytes exceeds the %d byte limit", n, maxFrameSize)
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	return data, nil
}
