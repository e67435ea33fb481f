package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Runtime runs the poller and the TTL sweeper as one unit with a shared
// lifetime. Cancel the context to stop both; Run returns once in-flight
// work has drained.
type Runtime struct {
	poller  *Poller
	sweeper *Sweeper
	log     *slog.Logger
}

// NewRuntime bundles a poller and sweeper.
func NewRuntime(poller *Poller, sweeper *Sweeper, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runtime{poller: poller, sweeper: sweeper, log: logger}
}

// Run blocks until the context is cancelled and both loops have stopped.
func (r *Runtime) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := r.poller.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.log.Error("poller stopped", "error", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := r.sweeper.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.log.Error("sweeper stopped", "error", err)
		}
	}()

	<-ctx.Done()
	wg.Wait()
	r.log.Info("worker runtime stopped")
	return ctx.Err()
}
