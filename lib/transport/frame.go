package transport

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/go-i2p/go-cbcservice/lib/protocol"
	"github.com/samber/oops"
)

// FrameHeaderSize is the size of the length prefix.
const FrameHeaderSize = 4

// DefaultMaxFrameSize fits the largest message the protocol can express.
const DefaultMaxFrameSize = protocol.MaxMessageSize

// ErrFrameTooLarge is returned when a peer announces a frame above the limit.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// ReadFrame reads one length-prefixed frame from r.
func ReadFrame(r io.Reader, maxSize int) ([]byte, error) {
	var header [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(header[:])
	if maxSize > 0 && uint64(length) > uint64(maxSize) {
		return nil, oops.Wrapf(ErrFrameTooLarge, "frame of %d bytes, limit %d", length, maxSize)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, oops.Wrapf(err, "short frame body")
	}
	return data, nil
}

// WriteFrame writes data as a single length-prefixed frame.
func WriteFrame(w io.Writer, data []byte) error {
	buf := make([]byte, FrameHeaderSize+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[FrameHeaderSize:], data)
	_, err := w.Write(buf)
	return err
}
