package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// withInterrupts returns a stop channel closed on the first SIGINT/SIGTERM
// and a context cancelled on the second. cleanup must be called when the run
// ends.
func withInterrupts(parent context.Context, notice io.Writer) (context.Context, <-chan struct{}, func()) {
	ctx, cancel := context.WithCancel(parent)
	stop := make(chan struct{})
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		received := 0
		for {
			select {
			case <-done:
				return
			case <-signals:
				received++
				if received == 1 {
					fmt.Fprintln(notice, "Stopping after the current file; interrupt again to abort.")
					close(stop)
					continue
				}
				fmt.Fprintln(notice, "Aborting.")
				cancel()
				return
			}
		}
	}()

	cleanup := func() {
		signal.Stop(signals)
		close(done)
		cancel()
	}
	return ctx, stop, cleanup
}
