package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/printforge/preflight/pkg/core"
	"github.com/printforge/preflight/pkg/security"
)

// DefaultPollInterval is how often an idle poller checks for queued jobs.
const DefaultPollInterval = 10 * time.Second

// Poller feeds claimed jobs to a fixed set of processing goroutines. Claims
// happen in the poll loop, so exclusivity never depends on the channel.
type Poller struct {
	proc        *Processor
	interval    time.Duration
	concurrency int
	log         *slog.Logger
	wg          sync.WaitGroup
	running     atomic.Bool
	processed   atomic.Uint64
}

// NewPoller creates a poller with the given interval and concurrency.
// Non-positive values fall back to defaults; concurrency is clamped to the
// supported range.
func NewPoller(proc *Processor, interval time.Duration, concurrency int, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		proc:        proc,
		interval:    interval,
		concurrency: security.ClampConcurrency(concurrency),
		log:         logger,
	}
}

// Start polls for queued jobs until the context is cancelled. It drains
// in-flight jobs before returning. Starting an already running poller is a
// no-op.
func (p *Poller) Start(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return nil
	}
	defer p.running.Store(false)

	jobs := make(chan *core.Job, p.concurrency)

	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.processLoop(ctx, jobs)
	}

	p.log.Info("poller started", "interval", p.interval, "concurrency", p.concurrency)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(jobs)
			p.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			p.pollBatch(ctx, jobs)
		}
	}
}

// pollBatch claims as many jobs as there are free slots, then goes back to
// sleep. An empty queue is not an error.
func (p *Poller) pollBatch(ctx context.Context, jobs chan<- *core.Job) {
	for i := 0; i < p.concurrency; i++ {
		job, err := p.proc.store.Claim(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				p.log.Error("claim failed", "error", err)
			}
			return
		}
		if job == nil {
			return
		}
		select {
		case jobs <- job:
		case <-ctx.Done():
			return
		}
	}
}

// Processed reports how many claimed jobs this poller has run to a terminal
// state since it was created.
func (p *Poller) Processed() uint64 {
	return p.processed.Load()
}

func (p *Poller) processLoop(ctx context.Context, jobs <-chan *core.Job) {
	defer p.wg.Done()

	for job := range jobs {
		// After cancellation, claims still parked in the channel are left
		// in running for TTL recovery instead of being run against a dead
		// context.
		if ctx.Err() != nil {
			p.log.Info("dropping claimed job on shutdown", "job_id", job.ID)
			continue
		}
		p.proc.Process(ctx, job)
		p.processed.Add(1)
	}
}
