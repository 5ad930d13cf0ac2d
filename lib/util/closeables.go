package util

import (
	"io"
	"sync"

	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

var (
	closeOnExit []io.Closer
	closeMutex  sync.Mutex
)

// RegisterCloser registers c to be closed by CloseAll.
func RegisterCloser(c io.Closer) {
	closeMutex.Lock()
	defer closeMutex.Unlock()
	closeOnExit = append(closeOnExit, c)
}

// CloserFunc adapts a function to io.Closer.
type CloserFunc func() error

func (f CloserFunc) Close() error { return f() }

// CloseAll closes every registered closer, newest first, and clears the
// list. The first error is returned after all closers have run.
func CloseAll() error {
	closeMutex.Lock()
	closers := closeOnExit
	closeOnExit = nil
	closeMutex.Unlock()

	log.WithField("count", len(closers)).Debug("closing_registered_closers")

	var first error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			log.WithError(err).Warn("error_closing_resource")
			if first == nil {
				first = err
			}
		}
	}
	return first
}
