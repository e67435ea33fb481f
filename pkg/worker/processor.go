// Package worker claims queued jobs, runs the preflight pipeline on them,
// and keeps the job table tidy via the TTL sweep.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/printforge/preflight/pkg/core"
	"github.com/printforge/preflight/pkg/pipeline"
	"github.com/printforge/preflight/pkg/storage"
	"github.com/printforge/preflight/pkg/workspace"
)

// Error codes surfaced on failed jobs.
const (
	ErrCodeInputUnavailable = "INPUT_UNAVAILABLE"
	ErrCodeProcessing       = "PROCESSING_ERROR"
)

// InputRemover deletes a job's scratch input after finalization.
type InputRemover interface {
	RemoveInput(jobID string) error
}

// Pipeline is the slice of the orchestrator the processor needs.
type Pipeline interface {
	Run(ctx context.Context, job *core.Job) (*pipeline.Result, error)
}

// Processor drains one job at a time: claim, run the pipeline, finalize.
type Processor struct {
	store  storage.Store
	orch   Pipeline
	inputs InputRemover
	log    *slog.Logger
}

// NewProcessor wires a processor.
func NewProcessor(store storage.Store, orch Pipeline, inputs InputRemover, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{store: store, orch: orch, inputs: inputs, log: logger}
}

// ProcessOne claims and fully processes a single job. Returns false when the
// queue was empty. The returned error covers claim failures only; job-level
// failures finalize the job as failed and return nil.
func (p *Processor) ProcessOne(ctx context.Context) (bool, error) {
	job, err := p.store.Claim(ctx)
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	if job == nil {
		return false, nil
	}
	p.Process(ctx, job)
	return true, nil
}

// Process runs a claimed job to a terminal state. The scratch input is
// removed afterwards regardless of outcome; durable outputs stay until the
// TTL sweep.
func (p *Processor) Process(ctx context.Context, job *core.Job) {
	log := p.log.With("job_id", job.ID, "mode", job.Mode)
	log.Info("processing job", "filename", job.OriginalFilename, "size_bytes", job.SizeBytes)

	res, err := p.runPipeline(ctx, job)
	if err != nil {
		p.fail(ctx, job, err)
	} else {
		p.succeed(ctx, job, res)
	}

	if err := p.inputs.RemoveInput(job.ID); err != nil {
		log.Warn("could not remove scratch input", "error", err)
	}
}

// runPipeline isolates panics so a single malformed file cannot take the
// worker down.
func (p *Processor) runPipeline(ctx context.Context, job *core.Job) (res *pipeline.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.orch.Run(ctx, job)
}

func (p *Processor) succeed(ctx context.Context, job *core.Job, res *pipeline.Result) {
	summary := core.ReportSummaryData{
		Score:     res.Report.Summary.Score,
		Counts:    res.Report.Summary.Counts,
		PageCount: res.Report.Analysis.PageCount,
	}
	if err := p.store.Succeed(ctx, job.ID, summary, res.Manifest); err != nil {
		p.log.Error("could not finalize succeeded job", "job_id", job.ID, "error", err)
		return
	}
	p.log.Info("job succeeded", "job_id", job.ID, "score", summary.Score,
		"blockers", summary.Counts.Blocker, "warnings", summary.Counts.Warning)
}

func (p *Processor) fail(ctx context.Context, job *core.Job, err error) {
	code := ErrCodeProcessing
	if errors.Is(err, workspace.ErrInputMissing) {
		code = ErrCodeInputUnavailable
	}
	jobErr := core.JobError{
		Message: err.Error(),
		Code:    code,
		Details: fmt.Sprintf("filename=%s content_type=%s", job.OriginalFilename, job.ContentType),
	}
	if ferr := p.store.Fail(ctx, job.ID, jobErr); ferr != nil {
		p.log.Error("could not finalize failed job", "job_id", job.ID, "error", ferr)
		return
	}
	p.log.Warn("job failed", "job_id", job.ID, "code", code, "error", err)
}
