//go:build windows

package signals

import (
	"os"
	"os/signal"
)

func notify(ch chan os.Signal) {
	signal.Notify(ch, os.Interrupt)
}

func isReload(os.Signal) bool {
	return false
}
