// Package signals routes process signals to registered handlers.
package signals

import (
	"context"
	"os"
	"os/signal"
	"sync"

	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

// Handler is a function called when a signal is received.
type Handler func()

// Dispatcher delivers reload (SIGHUP) and interrupt (SIGINT, SIGTERM)
// signals to handlers in registration order.
type Dispatcher struct {
	mu           sync.RWMutex
	reloaders    []Handler
	interrupters []Handler

	ch       chan os.Signal
	stopOnce sync.Once
}

// New subscribes to the platform's reload and interrupt signals.
func New() *Dispatcher {
	d := &Dispatcher{ch: make(chan os.Signal, 1)}
	notify(d.ch)
	return d
}

// OnReload registers a handler for reload signals. Nil is ignored.
func (d *Dispatcher) OnReload(h Handler) {
	if h == nil {
		return
	}
	d.mu.Lock()
	d.reloaders = append(d.reloaders, h)
	d.mu.Unlock()
}

// OnInterrupt registers a handler for interrupt signals. Nil is ignored.
func (d *Dispatcher) OnInterrupt(h Handler) {
	if h == nil {
		return
	}
	d.mu.Lock()
	d.interrupters = append(d.interrupters, h)
	d.mu.Unlock()
}

// Run dispatches signals until ctx is done or Stop is called.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-d.ch:
			if !ok {
				return
			}
			d.dispatch(sig)
		}
	}
}

// Stop unsubscribes from signals and makes Run return.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		signal.Stop(d.ch)
		close(d.ch)
	})
}

func (d *Dispatcher) dispatch(sig os.Signal) {
	log.WithField("signal", sig.String()).Info("signal_received")

	d.mu.RLock()
	var handlers []Handler
	if isReload(sig) {
		handlers = append(handlers, d.reloaders...)
	} else {
		handlers = append(handlers, d.interrupters...)
	}
	d.mu.RUnlock()

	for _, h := range handlers {
		run(sig, h)
	}
}

func run(sig os.Signal, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logger.Fields{
				"at":     "signals.run",
				"signal": sig.String(),
				"panic":  r,
			}).Error("panic_in_signal_handler")
		}
	}()
	h()
}
