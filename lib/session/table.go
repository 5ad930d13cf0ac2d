package session

import (
	"github.com/go-i2p/go-cbcservice/lib/cipher"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
)

var log = logger.GetGoI2PLogger()

// slot is one entry of the table. state is valid iff inUse is true.
type slot struct {
	inUse bool
	owner OwnerID
	state cipher.State
}

// Table is a fixed-capacity arena of session slots.
type Table struct {
	slots []slot
	live  int
}

// NewTable creates a table with the given number of slots.
func NewTable(capacity int) (*Table, error) {
	if capacity < 1 || capacity > MaxCapacity {
		return nil, oops.Errorf("session table capacity %d out of range [1, %d]", capacity, MaxCapacity)
	}

	log.WithFields(logger.Fields{
		"at":       "session.NewTable",
		"capacity": capacity,
	}).Debug("session_table_created")

	return &Table{slots: make([]slot, capacity)}, nil
}

// Allocate claims the lowest-index free slot for owner and returns its index and
// cipher state. The caller initializes the state; if that fails it must Release
// the slot.
func (t *Table) Allocate(owner OwnerID) (int, *cipher.State, error) {
	for i := range t.slots {
		s := &t.slots[i]
		if s.inUse {
			continue
		}

		s.inUse = true
		s.owner = owner
		t.live++

		log.WithFields(logger.Fields{
			"at":    "session.Table.Allocate",
			"owner": owner,
			"index": i,
			"live":  t.live,
		}).Debug("slot_allocated")

		return i, &s.state, nil
	}

	log.WithFields(logger.Fields{
		"at":       "session.Table.Allocate",
		"owner":    owner,
		"capacity": len(t.slots),
	}).Warn("session_table_exhausted")

	return -1, nil, ErrExhausted
}

// Release frees a slot and disposes its cipher state. Ownership is not checked
// here; callers validate first. Releasing a free or out-of-range slot does nothing.
func (t *Table) Release(index int) {
	if index < 0 || index >= len(t.slots) {
		return
	}

	s := &t.slots[index]
	if !s.inUse {
		return
	}

	s.state.Dispose()
	s.inUse = false
	s.owner = 0
	t.live--

	log.WithFields(logger.Fields{
		"at":    "session.Table.Release",
		"index": index,
		"live":  t.live,
	}).Debug("slot_released")
}

// ReleaseOwner frees every slot owned by owner and returns how many were live.
func (t *Table) ReleaseOwner(owner OwnerID) int {
	released := 0
	for i := range t.slots {
		if t.slots[i].inUse && t.slots[i].owner == owner {
			t.Release(i)
			released++
		}
	}
	return released
}

// Validate returns the cipher state of the slot at index if it is in use and
// owned by owner.
func (t *Table) Validate(owner OwnerID, index int) (*cipher.State, error) {
	if index < 0 || index >= len(t.slots) {
		return nil, ErrInvalidSession
	}

	s := &t.slots[index]
	if !s.inUse || s.owner != owner {
		return nil, ErrInvalidSession
	}

	return &s.state, nil
}

// InUse reports whether the slot at index holds a live session.
func (t *Table) InUse(index int) bool {
	return index >= 0 && index < len(t.slots) && t.slots[index].inUse
}

// Len returns the number of live sessions.
func (t *Table) Len() int {
	return t.live
}

// Cap returns the number of slots.
func (t *Table) Cap() int {
	return len(t.slots)
}

// Full reports whether every slot is in use.
func (t *Table) Full() bool {
	return t.live >= len(t.slots)
}
