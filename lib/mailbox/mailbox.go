// Package mailbox is the in-process message substrate between callers and the
// service loop.
//
// Any number of goroutines may Post messages tagged with the sender's identity.
// A single consumer drains them with Poll and blocks in Wait when the queue is
// empty. Wait consumes a wake token that Post leaves behind, so a message posted
// after Poll reported an empty queue but before Wait was entered still wakes the
// consumer. Replies are routed by identity to registered Receivers.
package mailbox

import (
	"context"
	"errors"
	"sync"

	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

var (
	ErrClosed          = errors.New("mailbox closed")
	ErrQueueFull       = errors.New("mailbox queue full")
	ErrUnknownReceiver = errors.New("no receiver registered for identity")
	ErrIdentityInUse   = errors.New("identity already registered")
)

// Identity names a message sender or receiver.
type Identity uint16

// Envelope is one queued inbound message. A Disconnect envelope carries no
// data and reports that Sender has gone away.
type Envelope struct {
	Sender     Identity
	Data       []byte
	Disconnect bool
}

// Receiver accepts replies addressed to one identity.
type Receiver interface {
	Deliver(data []byte) error
}

// Mailbox is a bounded multi-producer, single-consumer queue with reply routing.
type Mailbox struct {
	mu        sync.Mutex
	queue     []Envelope
	capacity  int
	receivers map[Identity]Receiver
	closed    bool

	wake chan struct{}
	done chan struct{}
}

// New creates a mailbox that holds at most capacity undelivered messages.
func New(capacity int) *Mailbox {
	if capacity < 1 {
		capacity = 1
	}
	return &Mailbox{
		queue:     make([]Envelope, 0, capacity),
		capacity:  capacity,
		receivers: make(map[Identity]Receiver),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// Post queues data from sender for the consumer.
func (m *Mailbox) Post(sender Identity, data []byte) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if len(m.queue) >= m.capacity {
		m.mu.Unlock()
		log.WithFields(logger.Fields{
			"at":       "mailbox.Post",
			"sender":   sender,
			"capacity": m.capacity,
		}).Warn("mailbox_queue_full")
		return ErrQueueFull
	}
	m.queue = append(m.queue, Envelope{Sender: sender, Data: data})
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
	return nil
}

// Disconnect queues a notice that id has gone away. The notice ignores the
// queue capacity so it is never lost, and it is ordered after everything id
// posted before it.
func (m *Mailbox) Disconnect(id Identity) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.queue = append(m.queue, Envelope{Sender: id, Disconnect: true})
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
	return nil
}

// Poll removes and returns the oldest queued message, if any.
func (m *Mailbox) Poll() (Envelope, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.queue) == 0 {
		return Envelope{}, false
	}
	env := m.queue[0]
	m.queue[0] = Envelope{}
	m.queue = m.queue[1:]
	return env, true
}

// Wait blocks until a message may be available, the mailbox is closed, or ctx
// is done. Callers Poll again after Wait returns nil; a wakeup can be spurious.
func (m *Mailbox) Wait(ctx context.Context) error {
	select {
	case <-m.wake:
		return nil
	case <-m.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued messages.
func (m *Mailbox) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Send routes data to the receiver registered for to.
func (m *Mailbox) Send(to Identity, data []byte) error {
	m.mu.Lock()
	r, ok := m.receivers[to]
	m.mu.Unlock()

	if !ok {
		return ErrUnknownReceiver
	}
	return r.Deliver(data)
}

// Register routes replies for id to r.
func (m *Mailbox) Register(id Identity, r Receiver) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if _, exists := m.receivers[id]; exists {
		return ErrIdentityInUse
	}
	m.receivers[id] = r
	return nil
}

// Unregister removes the receiver for id.
func (m *Mailbox) Unregister(id Identity) {
	m.mu.Lock()
	delete(m.receivers, id)
	m.mu.Unlock()
}

// Registered reports whether a receiver exists for id.
func (m *Mailbox) Registered(id Identity) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.receivers[id]
	return ok
}

// Close rejects further posts and wakes the consumer with ErrClosed.
// Messages still queued can be drained with Poll.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	close(m.done)
}
