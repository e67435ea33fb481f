// Package preflight checks print-ready files before they reach production.
//
// This is the main package users should import. It re-exports the public
// types from the pkg/ packages for a clean API surface.
//
// Basic usage:
//
//	// Open storage and the local file workspace
//	db, _ := gorm.Open(sqlite.Open("preflight.db"), &gorm.Config{})
//	store := preflight.NewGormStore(db)
//	store.Migrate(context.Background())
//	files := preflight.NewLocalStore(os.TempDir())
//
//	// Probe the external toolchain
//	runner := preflight.NewExecRunner(0, nil)
//	detector := preflight.NewDetector(runner, nil)
//	avail, versions := detector.Detect(context.Background())
//
//	// Submit a file
//	job, _ := preflight.Submit(ctx, store, files, preflight.SubmitParams{
//	    Filename:    "brochure.pdf",
//	    ContentType: "application/pdf",
//	    Data:        data,
//	    Mode:        preflight.ModeCheck,
//	    TTL:         72 * time.Hour,
//	})
//
//	// Run the worker runtime
//	orch := preflight.NewOrchestrator(files, files, store, runner, avail, versions,
//	    files.Paths(), preflight.DefaultPipelineConfig(), nil)
//	proc := preflight.NewProcessor(store, orch, files, nil)
//	rt := preflight.NewRuntime(
//	    preflight.NewPoller(proc, 0, 1, nil),
//	    preflight.NewSweeper(store, files, nil, nil),
//	    nil)
//	rt.Run(ctx)
package preflight

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printforge/preflight/pkg/core"
	"github.com/printforge/preflight/pkg/pipeline"
	"github.com/printforge/preflight/pkg/report"
	"github.com/printforge/preflight/pkg/schedule"
	"github.com/printforge/preflight/pkg/security"
	"github.com/printforge/preflight/pkg/storage"
	"github.com/printforge/preflight/pkg/tools"
	"github.com/printforge/preflight/pkg/worker"
	"github.com/printforge/preflight/pkg/workspace"
)

// Type aliases for the public surface
type (
	// Job is one preflight request tracked in the durable job table.
	Job = core.Job

	// JobStatus is the lifecycle state of a job.
	JobStatus = core.JobStatus

	// JobMode selects check-only or check-and-repair processing.
	JobMode = core.JobMode

	// JobError describes why a job failed.
	JobError = core.JobError

	// Issue is one problem discovered in a file.
	Issue = core.Issue

	// Severity ranks an issue's impact on printability.
	Severity = core.Severity

	// IssueCounts tallies issues by severity.
	IssueCounts = core.IssueCounts

	// Finding is a persisted, org-scoped record of a notable issue.
	Finding = core.Finding

	// FixLog records one repair applied to a job's file.
	FixLog = core.FixLog

	// Store defines the persistence layer for jobs.
	Store = storage.Store

	// GormStore implements Store using GORM.
	GormStore = storage.GormStore

	// LocalStore keeps job inputs and outputs on the local filesystem.
	LocalStore = workspace.LocalStore

	// Runner invokes the external PDF toolchain.
	Runner = tools.Runner

	// ExecRunner runs the real binaries.
	ExecRunner = tools.ExecRunner

	// Detector probes which tools are installed.
	Detector = tools.Detector

	// Orchestrator runs the preflight pipeline for one job.
	Orchestrator = pipeline.Orchestrator

	// PipelineConfig tunes the pipeline's thresholds.
	PipelineConfig = pipeline.Config

	// Report is the versioned result of one preflight run.
	Report = report.Report

	// Processor finalizes claimed jobs through the pipeline.
	Processor = worker.Processor

	// Poller feeds queued jobs to processing goroutines.
	Poller = worker.Poller

	// Sweeper deletes jobs past their retention window.
	Sweeper = worker.Sweeper

	// Runtime runs the poller and sweeper as one unit.
	Runtime = worker.Runtime

	// Schedule determines when recurring work next runs.
	Schedule = schedule.Schedule
)

// Status constants
const (
	StatusQueued    = core.StatusQueued
	StatusRunning   = core.StatusRunning
	StatusSucceeded = core.StatusSucceeded
	StatusFailed    = core.StatusFailed
	StatusCancelled = core.StatusCancelled
)

// Mode constants
const (
	ModeCheck       = core.ModeCheck
	ModeCheckAndFix = core.ModeCheckAndFix
)

// Severity constants
const (
	SeverityBlocker = core.SeverityBlocker
	SeverityWarning = core.SeverityWarning
	SeverityInfo    = core.SeverityInfo
)

// Report contract version
const ReportVersion = report.Version

// Security limits
const (
	MaxConcurrency        = security.MaxConcurrency
	MaxErrorMessageLength = security.MaxErrorMessageLength
	DefaultMaxUploadBytes = security.DefaultMaxUploadBytes
)

// Error variables
var (
	ErrJobNotFound    = core.ErrJobNotFound
	ErrJobTerminal    = core.ErrJobTerminal
	ErrJobNotQueued   = core.ErrJobNotQueued
	ErrInvalidJobID   = core.ErrInvalidJobID
	ErrUploadTooLarge = core.ErrUploadTooLarge
	ErrMissingTTL     = core.ErrMissingTTL
	ErrInputMissing   = workspace.ErrInputMissing
)

// NewGormStore creates a GORM-backed job store.
func NewGormStore(db *gorm.DB) *GormStore {
	return storage.NewGormStore(db)
}

// NewLocalStore creates a local-filesystem workspace rooted at tempRoot.
func NewLocalStore(tempRoot string) *LocalStore {
	return workspace.NewLocalStore(tempRoot)
}

// NewExecRunner creates a tool runner with the given invocation timeout.
func NewExecRunner(timeout time.Duration, logger *slog.Logger) *ExecRunner {
	return tools.NewExecRunner(timeout, logger)
}

// NewDetector creates a tool detector over the given prober.
func NewDetector(p tools.Prober, logger *slog.Logger) *Detector {
	return tools.NewDetector(p, logger)
}

// NewOrchestrator wires the preflight pipeline.
func NewOrchestrator(
	input workspace.InputAdapter,
	output workspace.OutputAdapter,
	store Store,
	runner Runner,
	avail tools.Availability,
	versions tools.Versions,
	paths workspace.Paths,
	cfg PipelineConfig,
	logger *slog.Logger,
) *Orchestrator {
	return pipeline.New(input, output, store, runner, avail, versions, paths, cfg, logger)
}

// DefaultPipelineConfig returns the standard pipeline thresholds.
func DefaultPipelineConfig() PipelineConfig {
	return pipeline.DefaultConfig()
}

// NewProcessor wires a job processor.
func NewProcessor(store Store, orch worker.Pipeline, inputs worker.InputRemover, logger *slog.Logger) *Processor {
	return worker.NewProcessor(store, orch, inputs, logger)
}

// NewPoller creates a poller with the given interval and concurrency.
func NewPoller(proc *Processor, interval time.Duration, concurrency int, logger *slog.Logger) *Poller {
	return worker.NewPoller(proc, interval, concurrency, logger)
}

// NewSweeper creates a TTL sweeper on the given schedule.
func NewSweeper(store Store, files worker.JobDirRemover, sched Schedule, logger *slog.Logger) *Sweeper {
	return worker.NewSweeper(store, files, sched, logger)
}

// NewRuntime bundles a poller and sweeper under one lifetime.
func NewRuntime(poller *Poller, sweeper *Sweeper, logger *slog.Logger) *Runtime {
	return worker.NewRuntime(poller, sweeper, logger)
}

// Every creates a schedule that runs at fixed intervals.
func Every(d time.Duration) Schedule {
	return schedule.Every(d)
}

// Daily creates a schedule that runs at a specific UTC time each day.
func Daily(hour, minute int) Schedule {
	return schedule.Daily(hour, minute)
}

// Cron creates a schedule from a five-field cron expression.
func Cron(expr string) (Schedule, error) {
	return schedule.Cron(expr)
}

// SubmitParams describes one upload.
type SubmitParams struct {
	Filename       string
	ContentType    string
	Data           []byte
	Mode           JobMode
	TTL            time.Duration
	OrganizationID *string
	// MaxUploadBytes caps Data; non-positive uses DefaultMaxUploadBytes.
	MaxUploadBytes int64
}

// Submit validates an upload, persists its bytes, and enqueues a job for it.
// The returned job is queued; a worker claims and processes it. The input
// bytes are written before the row is created, so a claimable job always
// has its input in place and a failed write leaves nothing to claim.
func Submit(ctx context.Context, store Store, files *LocalStore, p SubmitParams) (*Job, error) {
	if err := security.CheckUploadSize(int64(len(p.Data)), p.MaxUploadBytes); err != nil {
		return nil, err
	}
	if p.TTL <= 0 {
		return nil, core.ErrMissingTTL
	}

	jobID := uuid.New().String()
	if err := files.WriteInput(ctx, jobID, p.Data); err != nil {
		return nil, err
	}

	job := &core.Job{
		ID:               jobID,
		OrganizationID:   p.OrganizationID,
		Mode:             p.Mode,
		OriginalFilename: p.Filename,
		ContentType:      p.ContentType,
		SizeBytes:        int64(len(p.Data)),
		ExpiresAt:        time.Now().Add(p.TTL),
	}
	if err := store.CreateJob(ctx, job); err != nil {
		// No row was created; do not leave orphaned bytes behind.
		if rerr := files.RemoveJobDir(jobID); rerr != nil {
			slog.Warn("could not remove input for failed submission", "job_id", jobID, "error", rerr)
		}
		return nil, err
	}
	return job, nil
}
