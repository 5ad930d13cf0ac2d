package protocol

import (
	"encoding/binary"
	"errors"
)

// Payload sizes in bytes.
const (
	KeySize    = 32
	BlockSize  = 16
	HandleSize = 4

	InitPayloadSize   = KeySize + BlockSize    // key + IV
	DeinitPayloadSize = HandleSize             // handle
	BlockPayloadSize  = HandleSize + BlockSize // handle + block
)

// ErrShortPayload is returned by the payload parsers when the payload is
// smaller than the operation requires.
var ErrShortPayload = errors.New("payload too short for operation")

// InitRequest is the decoded payload of an init request.
type InitRequest struct {
	Key [KeySize]byte
	IV  [BlockSize]byte
}

// BlockRequest is the decoded payload of an encrypt or decrypt request.
type BlockRequest struct {
	Handle uint32
	Block  [BlockSize]byte
}

// ParseInit decodes an init payload. Bytes past the IV are ignored.
func ParseInit(payload []byte) (InitRequest, error) {
	var req InitRequest
	if len(payload) < InitPayloadSize {
		return req, ErrShortPayload
	}
	copy(req.Key[:], payload[:KeySize])
	copy(req.IV[:], payload[KeySize:InitPayloadSize])
	return req, nil
}

// ParseHandle decodes the leading handle of a deinit, encrypt or decrypt payload,
// or of an init response.
func ParseHandle(payload []byte) (uint32, error) {
	if len(payload) < HandleSize {
		return 0, ErrShortPayload
	}
	return binary.BigEndian.Uint32(payload[:HandleSize]), nil
}

// ParseBlockRequest decodes an encrypt or decrypt payload: exactly one block is
// read and anything after it is ignored.
func ParseBlockRequest(payload []byte) (BlockRequest, error) {
	var req BlockRequest
	if len(payload) < BlockPayloadSize {
		return req, ErrShortPayload
	}
	req.Handle = binary.BigEndian.Uint32(payload[:HandleSize])
	copy(req.Block[:], payload[HandleSize:BlockPayloadSize])
	return req, nil
}

// ParseBlock decodes the block carried by an encrypt or decrypt response.
func ParseBlock(payload []byte) ([BlockSize]byte, error) {
	var block [BlockSize]byte
	if len(payload) < BlockSize {
		return block, ErrShortPayload
	}
	copy(block[:], payload[:BlockSize])
	return block, nil
}

// NewInitRequest builds an init request.
func NewInitRequest(key [KeySize]byte, iv [BlockSize]byte) *Message {
	payload := make([]byte, InitPayloadSize)
	copy(payload, key[:])
	copy(payload[KeySize:], iv[:])
	return &Message{Header: Header{Operation: OpInit}, Payload: payload}
}

// NewDeinitRequest builds a deinit request.
func NewDeinitRequest(handle uint32) *Message {
	return &Message{Header: Header{Operation: OpDeinit}, Payload: HandlePayload(handle)}
}

// NewBlockRequest builds an encrypt or decrypt request.
func NewBlockRequest(op Operation, handle uint32, block [BlockSize]byte) *Message {
	payload := make([]byte, BlockPayloadSize)
	binary.BigEndian.PutUint32(payload, handle)
	copy(payload[HandleSize:], block[:])
	return &Message{Header: Header{Operation: op}, Payload: payload}
}

// HandlePayload encodes a handle as a payload.
func HandlePayload(handle uint32) []byte {
	payload := make([]byte, HandleSize)
	binary.BigEndian.PutUint32(payload, handle)
	return payload
}

// NewResponse builds a successful response to op.
func NewResponse(op Operation, payload []byte) *Message {
	return &Message{Header: Header{Operation: op, Status: StatusSuccess}, Payload: payload}
}

// NewErrorResponse builds an empty response carrying a failure status.
func NewErrorResponse(op Operation, status Status) *Message {
	return &Message{Header: Header{Operation: op, Status: status}}
}
