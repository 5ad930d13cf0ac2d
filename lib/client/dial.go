package client

import (
	"context"
	"errors"
	"net"
	"os"
	"time"

	"github.com/go-i2p/go-cbcservice/lib/transport"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
)

// SocketConn is a Conn over a stream socket served by transport.Server.
type SocketConn struct {
	conn net.Conn
}

// Dial connects to a socket transport and completes the handshake with
// secret (nil when the server has no authenticator).
func Dial(ctx context.Context, network, address string, secret []byte) (*SocketConn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, oops.Wrapf(err, "failed to connect to %s", address)
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	if err := transport.ClientHandshake(conn, secret); err != nil {
		conn.Close()
		return nil, oops.Wrapf(err, "handshake with %s failed", address)
	}
	conn.SetDeadline(time.Time{})

	log.WithFields(logger.Fields{
		"at":      "client.Dial",
		"network": network,
		"address": address,
	}).Debug("connected")

	return &SocketConn{conn: conn}, nil
}

// Send writes one framed message.
func (s *SocketConn) Send(data []byte) error {
	return transport.WriteFrame(s.conn, data)
}

// Recv reads one framed message. The read is bounded by ctx's deadline.
func (s *SocketConn) Recv(ctx context.Context) ([]byte, error) {
	deadline, _ := ctx.Deadline()
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}

	data, err := transport.ReadFrame(s.conn, transport.DefaultMaxFrameSize)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return nil, context.DeadlineExceeded
	}
	return data, err
}

// Close closes the socket.
func (s *SocketConn) Close() error {
	return s.conn.Close()
}
