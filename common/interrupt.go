package common

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func Interrupted() <-chan os.Signal {
	interrupt := make(chan os.Signal, 2)
	signal.Notify(interrupt,
		os.Interrupt,
		syscall.SIGTERM, syscall.SIGQUIT,
	)
	return interrupt
}

// InterruptContext returns a context canceled on the first interrupt signal.
func InterruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-Interrupted():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
