// Package protocol implements the request/response wire format of the CBC service.
//
// Every message starts with a fixed 5 byte header followed by an
// operation-specific payload:
//
//	operation (2 bytes, big endian)
//	status    (1 byte)
//	length    (2 bytes, big endian) - payload length
//
// Requests carry status 0. Responses echo the request's operation and report
// the outcome in the status byte.
package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"
)

var log = logger.GetGoI2PLogger()

// Operation identifies the requested service operation.
type Operation uint16

// Operations. The numeric values are part of the wire format.
const (
	OpInit    Operation = 0 // key + IV -> handle
	OpDeinit  Operation = 1 // handle -> (empty)
	OpEncrypt Operation = 2 // handle + block -> block
	OpDecrypt Operation = 3 // handle + block -> block
)

const (
	// HeaderSize is the mandatory header length. A request no longer than this
	// carries no payload and is rejected before dispatch.
	HeaderSize = 5

	// MaxPayloadSize is the largest payload the length field can describe.
	MaxPayloadSize = 0xFFFF

	// MaxMessageSize is the largest encodable message.
	MaxMessageSize = HeaderSize + MaxPayloadSize
)

// Header is the fixed message prefix.
type Header struct {
	Operation Operation
	Status    Status
	Length    uint16
}

// Message is a header plus payload.
type Message struct {
	Header
	Payload []byte
}

// MarshalBinary serializes the message. Header.Length is taken from the payload.
func (m *Message) MarshalBinary() ([]byte, error) {
	payloadLen := len(m.Payload)
	if payloadLen > MaxPayloadSize {
		return nil, oops.Errorf("message payload too large: %d bytes (max %d)", payloadLen, MaxPayloadSize)
	}

	result := make([]byte, HeaderSize+payloadLen)
	binary.BigEndian.PutUint16(result[0:2], uint16(m.Operation))
	result[2] = byte(m.Status)
	binary.BigEndian.PutUint16(result[3:5], uint16(payloadLen))
	copy(result[HeaderSize:], m.Payload)

	return result, nil
}

// UnmarshalBinary parses a message. The payload is whatever follows the header;
// the header length field is kept as sent and is not required to match, since
// payload sizes are fixed per operation and checked by the typed parsers.
func (m *Message) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderSize {
		return oops.Errorf("message too short: need at least %d bytes, got %d", HeaderSize, len(data))
	}

	m.Header = ParseHeader(data)
	m.Payload = make([]byte, len(data)-HeaderSize)
	copy(m.Payload, data[HeaderSize:])

	return nil
}

// ParseHeader reads the header fields from data, which must hold at least HeaderSize bytes.
func ParseHeader(data []byte) Header {
	return Header{
		Operation: Operation(binary.BigEndian.Uint16(data[0:2])),
		Status:    Status(data[2]),
		Length:    binary.BigEndian.Uint16(data[3:5]),
	}
}

// PeekOperation returns the operation field of a possibly truncated message,
// or 0 when fewer than two bytes are available.
func PeekOperation(data []byte) Operation {
	if len(data) < 2 {
		return 0
	}
	return Operation(binary.BigEndian.Uint16(data[0:2]))
}

// String returns a human-readable operation name.
func (op Operation) String() string {
	switch op {
	case OpInit:
		return "Init"
	case OpDeinit:
		return "Deinit"
	case OpEncrypt:
		return "Encrypt"
	case OpDecrypt:
		return "Decrypt"
	default:
		return fmt.Sprintf("Unknown(%d)", uint16(op))
	}
}

// Known reports whether op is one of the defined operations.
func (op Operation) Known() bool {
	return op <= OpDecrypt
}

// Encode marshals m, logging failures the same way for every caller.
func Encode(m *Message) ([]byte, error) {
	data, err := m.MarshalBinary()
	if err != nil {
		log.WithFields(logger.Fields{
			"at":        "protocol.Encode",
			"operation": m.Operation.String(),
			"status":    m.Status.String(),
			"error":     err.Error(),
		}).Error("failed_to_marshal_message")
		return nil, err
	}
	return data, nil
}
