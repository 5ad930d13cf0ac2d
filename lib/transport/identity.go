package transport

import (
	"errors"
	"sync"

	"github.com/go-i2p/go-cbcservice/lib/mailbox"
)

// Identities 0 and 0xFFFF are never handed to connections.
const (
	firstIdentity mailbox.Identity = 1
	lastIdentity  mailbox.Identity = 0xFFFE
)

// ErrNoIdentity is returned when every connection identity is taken.
var ErrNoIdentity = errors.New("no free connection identity")

// identityPool hands out connection identities, moving forward through the
// range so a freshly released identity is not immediately reused.
type identityPool struct {
	mu    sync.Mutex
	next  mailbox.Identity
	inUse map[mailbox.Identity]bool
}

func newIdentityPool() *identityPool {
	return &identityPool{
		next:  firstIdentity,
		inUse: make(map[mailbox.Identity]bool),
	}
}

func (p *identityPool) acquire() (mailbox.Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	span := int(lastIdentity-firstIdentity) + 1
	for i := 0; i < span; i++ {
		id := p.next
		if p.next == lastIdentity {
			p.next = firstIdentity
		} else {
			p.next++
		}
		if !p.inUse[id] {
			p.inUse[id] = true
			return id, nil
		}
	}
	return 0, ErrNoIdentity
}

func (p *identityPool) release(id mailbox.Identity) {
	p.mu.Lock()
	delete(p.inUse, id)
	p.mu.Unlock()
}

func (p *identityPool) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inUse)
}
