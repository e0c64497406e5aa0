package cmd

import (
	"context"
	"os/signal"
	"syscall"
)

// signalContext returns a context cancelled on SIGINT or SIGTERM. The engine
// checks it between steps: no new subprocesses start after cancellation,
// in-flight syncs and unmounts complete, and the journal keeps the last
// finished step.
func signalContext() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	return ctx
}
