package transport

import (
	"errors"
	"io"
)

// ProtocolVersion is the first byte of every handshake.
const ProtocolVersion byte = 0x01

const (
	handshakeAccepted byte = 0x00
	handshakeRejected byte = 0x01
)

// maxHandshakeSize bounds the secret a client may present.
const maxHandshakeSize = 1 + 256

var (
	// ErrHandshakeRejected is returned to a client the server turned away.
	ErrHandshakeRejected = errors.New("handshake rejected")
	// ErrBadHandshake is returned for a malformed handshake frame.
	ErrBadHandshake = errors.New("malformed handshake")
)

// ClientHandshake performs the client side of the handshake on rw.
func ClientHandshake(rw io.ReadWriter, secret []byte) error {
	hello := make([]byte, 1+len(secret))
	hello[0] = ProtocolVersion
	copy(hello[1:], secret)
	if err := WriteFrame(rw, hello); err != nil {
		return err
	}

	reply, err := ReadFrame(rw, 1)
	if err != nil {
		return err
	}
	if len(reply) != 1 {
		return ErrBadHandshake
	}
	if reply[0] != handshakeAccepted {
		return ErrHandshakeRejected
	}
	return nil
}
