// Package sigcapture keeps interrupt signals from reaching the host while a
// child process owns the terminal.
package sigcapture

import (
	"os"
	"os/signal"
	"sync"

	"golang.org/x/sys/unix"
)

// DefaultSignals are the signals intercepted by Run.
var DefaultSignals = []os.Signal{unix.SIGINT, unix.SIGTERM}

// Run calls fn while sigs are intercepted. Each received signal is passed to
// onSignal instead of terminating the process. Previous handling is restored
// when fn returns, including on panic.
func Run(sigs []os.Signal, onSignal func(os.Signal), fn func() error) error {
	if len(sigs) == 0 {
		sigs = DefaultSignals
	}
	ch := make(chan os.Signal, 4)
	signal.Notify(ch, sigs...)

	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case sig := <-ch:
				if onSignal != nil {
					onSignal(sig)
				}
			case <-done:
				return
			}
		}
	}()

	defer func() {
		signal.Stop(ch)
		close(done)
		wg.Wait()
	}()
	return fn()
}
