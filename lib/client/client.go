package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-i2p/go-cbcservice/lib/protocol"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
)

var log = logger.GetGoI2PLogger()

// DefaultTimeout bounds each request.
const DefaultTimeout = 2000 * time.Millisecond

// ErrPoisoned is returned by every request after one has timed out. The late
// reply may still arrive, so the connection can no longer pair requests
// with responses.
var ErrPoisoned = errors.New("client unusable after a timed out request")

// Conn carries encoded messages to and from the service.
// *mailbox.Endpoint satisfies it.
type Conn interface {
	Send(data []byte) error
	Recv(ctx context.Context) ([]byte, error)
	Close() error
}

// Client issues requests over a Conn.
type Client struct {
	conn    Conn
	timeout time.Duration

	mu       sync.Mutex
	poisoned bool
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New wraps conn.
func New(conn Conn, opts ...Option) *Client {
	c := &Client{conn: conn, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close closes the underlying connection. Sessions still open on the
// service are not released.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Init opens a session keyed with key and chained from iv.
func (c *Client) Init(ctx context.Context, key [protocol.KeySize]byte, iv [protocol.BlockSize]byte) (*Session, error) {
	resp, err := c.roundTrip(ctx, protocol.NewInitRequest(key, iv))
	if err != nil {
		return nil, err
	}

	handle, err := protocol.ParseHandle(resp.Payload)
	if err != nil {
		return nil, oops.Wrapf(err, "init response")
	}

	log.WithFields(logger.Fields{
		"at":     "client.Init",
		"handle": handle,
	}).Debug("session_opened")

	return &Session{client: c, handle: handle}, nil
}

// roundTrip sends req and waits for the matching response.
func (c *Client) roundTrip(ctx context.Context, req *protocol.Message) (*protocol.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.poisoned {
		return nil, ErrPoisoned
	}

	data, err := req.MarshalBinary()
	if err != nil {
		return nil, oops.Wrapf(err, "failed to encode %s request", req.Operation)
	}
	if err := c.conn.Send(data); err != nil {
		return nil, oops.Wrapf(err, "failed to send %s request", req.Operation)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reply, err := c.conn.Recv(ctx)
	if err != nil {
		c.poisoned = true
		if errors.Is(err, context.DeadlineExceeded) {
			log.WithFields(logger.Fields{
				"at":        "client.roundTrip",
				"operation": req.Operation.String(),
				"timeout":   c.timeout.String(),
			}).Warn("request_timed_out")
			return nil, protocol.StatusTimeout.Err(req.Operation)
		}
		return nil, oops.Wrapf(err, "failed to receive %s response", req.Operation)
	}

	var resp protocol.Message
	if err := resp.UnmarshalBinary(reply); err != nil {
		return nil, oops.Wrapf(err, "malformed %s response", req.Operation)
	}
	if resp.Operation != req.Operation {
		return nil, oops.Errorf("response for %s while waiting for %s", resp.Operation, req.Operation)
	}
	if err := resp.Status.Err(req.Operation); err != nil {
		return nil, err
	}
	return &resp, nil
}
