package worker

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/printforge/preflight/pkg/schedule"
	"github.com/printforge/preflight/pkg/storage"
)

// DefaultSweepBatch bounds how many expired jobs one sweep pass removes.
const DefaultSweepBatch = 100

// JobDirRemover deletes a job's whole on-disk directory, outputs included.
type JobDirRemover interface {
	RemoveJobDir(jobID string) error
}

// Sweeper deletes jobs whose retention window has passed, files first and
// row second so a crash between the two re-selects the job next pass.
// Running jobs past their TTL are swept too; that is the recovery path for
// workers that died mid-job.
type Sweeper struct {
	store   storage.Store
	files   JobDirRemover
	sched   schedule.Schedule
	batch   int
	log     *slog.Logger
	running atomic.Bool
}

// NewSweeper creates a sweeper on the given schedule. A nil schedule falls
// back to every 30 minutes.
func NewSweeper(store storage.Store, files JobDirRemover, sched schedule.Schedule, logger *slog.Logger) *Sweeper {
	if sched == nil {
		sched = schedule.Every(30 * time.Minute)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{store: store, files: files, sched: sched, batch: DefaultSweepBatch, log: logger}
}

// Start sweeps immediately, then on schedule, until the context is
// cancelled. An immediate first pass clears backlog accumulated while the
// process was down. Starting an already running sweeper is a no-op.
func (s *Sweeper) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}
	defer s.running.Store(false)

	s.sweep(ctx)

	for {
		next := s.sched.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			s.sweep(ctx)
		}
	}
}

// sweep removes one batch of expired jobs. Per-job failures are logged and
// skipped so one bad row cannot stall retention.
func (s *Sweeper) sweep(ctx context.Context) {
	expired, err := s.store.SelectExpired(ctx, time.Now(), s.batch)
	if err != nil {
		s.log.Error("could not select expired jobs", "error", err)
		return
	}
	if len(expired) == 0 {
		return
	}

	removed := 0
	for _, job := range expired {
		if err := s.files.RemoveJobDir(job.ID); err != nil {
			s.log.Error("could not remove job files", "job_id", job.ID, "error", err)
			continue
		}
		if err := s.store.DeleteJob(ctx, job.ID); err != nil {
			s.log.Error("could not delete expired job", "job_id", job.ID, "error", err)
			continue
		}
		removed++
	}
	s.log.Info("ttl sweep complete", "expired", len(expired), "removed", removed)
}
