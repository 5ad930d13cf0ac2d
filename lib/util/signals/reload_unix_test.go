//go:build !windows

package signals

import (
	"syscall"
	"testing"
)

func TestReloadOnlyReachesReloadHandlers(t *testing.T) {
	d := New()
	defer d.Stop()

	var reloads, interrupts int
	d.OnReload(func() { reloads++ })
	d.OnInterrupt(func() { interrupts++ })

	d.dispatch(syscall.SIGHUP)
	d.dispatch(syscall.SIGTERM)

	if reloads != 1 || interrupts != 1 {
		t.Errorf("reloads=%d interrupts=%d, want 1 and 1", reloads, interrupts)
	}
}
