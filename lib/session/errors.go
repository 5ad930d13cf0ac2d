package session

import "errors"

var (
	// ErrExhausted is returned by Allocate when every slot is in use.
	ErrExhausted = errors.New("session table exhausted")

	// ErrInvalidSession is returned by Validate when a slot index is out of
	// range, the slot is free, or the slot belongs to another owner.
	ErrInvalidSession = errors.New("invalid session")
)
