package client

import (
	"context"

	"github.com/go-i2p/go-cbcservice/lib/protocol"
	"github.com/samber/oops"
)

// Session is an open service session. Encrypt and Decrypt share the
// session's chaining vector.
type Session struct {
	client *Client
	handle uint32
}

// Handle returns the opaque session handle.
func (s *Session) Handle() uint32 {
	return s.handle
}

// Encrypt encrypts one block.
func (s *Session) Encrypt(ctx context.Context, block [protocol.BlockSize]byte) ([protocol.BlockSize]byte, error) {
	return s.transform(ctx, protocol.OpEncrypt, block)
}

// Decrypt decrypts one block.
func (s *Session) Decrypt(ctx context.Context, block [protocol.BlockSize]byte) ([protocol.BlockSize]byte, error) {
	return s.transform(ctx, protocol.OpDecrypt, block)
}

func (s *Session) transform(ctx context.Context, op protocol.Operation, block [protocol.BlockSize]byte) ([protocol.BlockSize]byte, error) {
	resp, err := s.client.roundTrip(ctx, protocol.NewBlockRequest(op, s.handle, block))
	if err != nil {
		return [protocol.BlockSize]byte{}, err
	}
	out, err := protocol.ParseBlock(resp.Payload)
	if err != nil {
		return out, oops.Wrapf(err, "%s response", op)
	}
	return out, nil
}

// Close releases the session on the service.
func (s *Session) Close(ctx context.Context) error {
	_, err := s.client.roundTrip(ctx, protocol.NewDeinitRequest(s.handle))
	return err
}
