package mailbox

import (
	"context"
	"errors"
	"sync"
)

// ErrEndpointFull is returned to the service when a caller stops reading replies.
var ErrEndpointFull = errors.New("endpoint reply buffer full")

const endpointBuffer = 16

// Endpoint is an in-process caller attached to a mailbox under one identity.
type Endpoint struct {
	id      Identity
	mb      *Mailbox
	replies chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

// Open registers a new endpoint for id.
func (m *Mailbox) Open(id Identity) (*Endpoint, error) {
	ep := &Endpoint{
		id:      id,
		mb:      m,
		replies: make(chan []byte, endpointBuffer),
		closed:  make(chan struct{}),
	}
	if err := m.Register(id, ep); err != nil {
		return nil, err
	}
	return ep, nil
}

// ID returns the endpoint's identity.
func (e *Endpoint) ID() Identity {
	return e.id
}

// Deliver implements Receiver.
func (e *Endpoint) Deliver(data []byte) error {
	select {
	case <-e.closed:
		return ErrClosed
	default:
	}

	select {
	case e.replies <- data:
		return nil
	default:
		return ErrEndpointFull
	}
}

// Send posts a request to the mailbox under the endpoint's identity.
func (e *Endpoint) Send(data []byte) error {
	select {
	case <-e.closed:
		return ErrClosed
	default:
	}
	return e.mb.Post(e.id, data)
}

// Recv waits for the next reply.
func (e *Endpoint) Recv(ctx context.Context) ([]byte, error) {
	select {
	case <-e.closed:
		return nil, ErrClosed
	default:
	}

	select {
	case data := <-e.replies:
		return data, nil
	case <-e.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close detaches the endpoint from the mailbox. Sessions the endpoint left
// open are released by the service once it reaches the disconnect notice.
func (e *Endpoint) Close() error {
	e.closeOnce.Do(func() {
		close(e.closed)
		e.mb.Unregister(e.id)
		e.mb.Disconnect(e.id)
	})
	return nil
}
