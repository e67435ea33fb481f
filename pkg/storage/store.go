// Package storage provides the durable job, finding, and fix-log store for
// the preflight pipeline.
package storage

import (
	"context"
	"time"

	"github.com/printforge/preflight/pkg/core"
)

// Store defines the persistence layer for preflight jobs.
//
// Multiple worker processes may run against the same tables concurrently;
// there is no cross-process lock, so exclusivity of job ownership rests
// entirely on Claim's atomicity.
type Store interface {
	// Migrate creates the necessary database tables.
	Migrate(ctx context.Context) error

	// Job lifecycle
	CreateJob(ctx context.Context, job *core.Job) error
	// Claim atomically transitions one queued job to running and returns it.
	// Returns (nil, nil) when no queued job exists; that is not an error.
	Claim(ctx context.Context) (*core.Job, error)
	Succeed(ctx context.Context, jobID string, summary core.ReportSummaryData, manifest core.OutputManifestData) error
	Fail(ctx context.Context, jobID string, jobErr core.JobError) error
	// Cancel transitions a queued job to cancelled. Jobs already claimed run
	// to completion; Cancel returns ErrJobNotQueued for them.
	Cancel(ctx context.Context, jobID string) error
	UpdateProgress(ctx context.Context, jobID string, message string) error

	// Queries
	GetJob(ctx context.Context, jobID string) (*core.Job, error)
	ListJobsByStatus(ctx context.Context, status core.JobStatus, limit int) ([]*core.Job, error)
	ListJobsForOrg(ctx context.Context, orgID string, limit int) ([]*core.Job, error)

	// Findings and fix logs: append-only while the parent job is live,
	// immutable once it is terminal, always read org-scoped.
	AddFinding(ctx context.Context, f *core.Finding) error
	ListFindings(ctx context.Context, orgID *string, jobID string) ([]core.Finding, error)
	AddFixLog(ctx context.Context, fl *core.FixLog) error
	ListFixLogs(ctx context.Context, orgID *string, jobID string) ([]core.FixLog, error)

	// TTL sweep support
	SelectExpired(ctx context.Context, now time.Time, limit int) ([]*core.Job, error)
	// DeleteJob removes the row and cascades to findings and fix logs.
	DeleteJob(ctx context.Context, jobID string) error
}
