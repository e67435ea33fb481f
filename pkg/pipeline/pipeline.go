// Package pipeline sequences the preflight checks into one report:
// fetch, normalize, validate, analyze, render, score, and optionally repair.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/printforge/preflight/pkg/core"
	"github.com/printforge/preflight/pkg/normalize"
	"github.com/printforge/preflight/pkg/report"
	"github.com/printforge/preflight/pkg/storage"
	"github.com/printforge/preflight/pkg/tools"
	"github.com/printforge/preflight/pkg/workspace"
)

// Config tunes the pipeline's fixed knobs.
type Config struct {
	// ProofDPI is the resolution of the first-page proof render.
	ProofDPI int
	// FindingDPIBelow is the threshold under which a persistent DPI finding
	// is recorded. Severity stays INFO for now; order blocking on low DPI
	// is a product decision still pending.
	FindingDPIBelow float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{ProofDPI: 150, FindingDPIBelow: 300}
}

// Result is what one pipeline run produced.
type Result struct {
	Report   *report.Report
	Manifest core.OutputManifestData
}

// Orchestrator runs the preflight sequence for one job at a time. Stages
// thread an append-only issue slice through; the only shared state is the
// per-job scratch directory, written solely by the claiming worker.
type Orchestrator struct {
	input    workspace.InputAdapter
	output   workspace.OutputAdapter
	store    storage.Store
	runner   tools.Runner
	avail    tools.Availability
	versions tools.Versions
	paths    workspace.Paths
	norm     *normalize.Normalizer
	cfg      Config
	log      *slog.Logger
}

// New wires an orchestrator. Adapters and the tool runner are injected so
// tests can substitute fakes for every external dependency.
func New(
	input workspace.InputAdapter,
	output workspace.OutputAdapter,
	store storage.Store,
	runner tools.Runner,
	avail tools.Availability,
	versions tools.Versions,
	paths workspace.Paths,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ProofDPI <= 0 {
		cfg.ProofDPI = DefaultConfig().ProofDPI
	}
	if cfg.FindingDPIBelow <= 0 {
		cfg.FindingDPIBelow = DefaultConfig().FindingDPIBelow
	}
	return &Orchestrator{
		input:    input,
		output:   output,
		store:    store,
		runner:   runner,
		avail:    avail,
		versions: versions,
		paths:    paths,
		norm:     normalize.New(runner, avail, logger),
		cfg:      cfg,
		log:      logger,
	}
}

// Run executes the full pipeline for a claimed job. Tool problems degrade
// to issues; only genuinely unexpected internal errors (missing input,
// scratch IO, report persistence) escape to the caller.
func (o *Orchestrator) Run(ctx context.Context, job *core.Job) (*Result, error) {
	rep := report.New(job.ID, job.Mode)
	rep.Input = report.Input{Filename: job.OriginalFilename, SizeBytes: job.SizeBytes}
	for tool, ok := range o.avail {
		rep.ToolAvailability[string(tool)] = ok
	}
	for tool, v := range o.versions {
		rep.ToolVersions[string(tool)] = v
	}

	data, err := o.input.FetchInput(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch input: %w", err)
	}

	o.progress(ctx, job.ID, "normalizing input")
	scratch := o.paths.JobDir(job.ID)
	norm := o.norm.Normalize(ctx, scratch, data, job.ContentType, job.OriginalFilename)
	issues := append([]core.Issue{}, norm.Issues...)
	rep.Normalization = &report.Normalization{
		OriginalFormat:   string(norm.OriginalFormat),
		NormalizedFormat: string(norm.NormalizedFormat),
		Notes:            norm.Notes,
	}
	if norm.Metadata != nil {
		rep.Normalization.Metadata = &report.NormalizationMeta{
			DPI:        norm.Metadata.DPI,
			Width:      norm.Metadata.Width,
			Height:     norm.Metadata.Height,
			ColorSpace: norm.Metadata.ColorSpace,
		}
		rep.Analysis.ColorSpace = norm.Metadata.ColorSpace
	}

	// Without a normalized PDF there is nothing to check: score the
	// normalization issues alone and persist what we have.
	if norm.Normalized == nil {
		rep.Issues = issues
		rep.Finalize()
		manifest, err := o.persistReport(ctx, job.ID, rep, core.OutputManifestData{})
		if err != nil {
			return nil, err
		}
		return &Result{Report: rep, Manifest: manifest}, nil
	}

	pdfPath := filepath.Join(scratch, "normalized.pdf")
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return nil, fmt.Errorf("scratch dir: %w", err)
	}
	if err := os.WriteFile(pdfPath, norm.Normalized, 0o644); err != nil {
		return nil, fmt.Errorf("stage normalized pdf: %w", err)
	}

	manifest := core.OutputManifestData{}

	o.progress(ctx, job.ID, "validating structure")
	issues = append(issues, o.structuralIssues(ctx, pdfPath)...)

	o.progress(ctx, job.ID, "extracting metadata")
	issues = o.analyzeMetadata(ctx, pdfPath, rep, issues)

	o.persistDPIFinding(ctx, job, norm)

	o.progress(ctx, job.ID, "checking fonts")
	fontIssues, checked, allEmbedded := o.fontIssues(ctx, pdfPath)
	issues = append(issues, fontIssues...)
	rep.Analysis.FontsEmbedded = checked && allEmbedded

	o.progress(ctx, job.ID, "rendering proof")
	issues = o.renderProof(ctx, job.ID, pdfPath, manifest, issues)

	if job.Mode == core.ModeCheckAndFix {
		o.progress(ctx, job.ID, "attempting repair")
		issues = o.attemptFix(ctx, job, pdfPath, rep, manifest, issues)
	}

	rep.Issues = issues
	rep.Finalize()

	o.progress(ctx, job.ID, "writing report")
	manifest, err = o.persistReport(ctx, job.ID, rep, manifest)
	if err != nil {
		return nil, err
	}
	return &Result{Report: rep, Manifest: manifest}, nil
}

// structuralIssues validates the PDF. The validator failing (or reporting
// errors) is a blocker because every downstream check reads the same bytes;
// the validator merely being absent is only a warning.
func (o *Orchestrator) structuralIssues(ctx context.Context, pdfPath string) []core.Issue {
	if !o.avail[tools.ToolQPDF] {
		return []core.Issue{toolMissing(tools.ToolQPDF, "structural validation skipped")}
	}
	res, err := o.runner.ValidateStructure(ctx, pdfPath)
	if err != nil {
		return []core.Issue{{
			Severity: core.SeverityBlocker,
			Code:     core.CodeStructureError,
			Message:  fmt.Sprintf("structural validation could not run: %v", err),
		}}
	}
	var issues []core.Issue
	for _, msg := range res.Errors {
		issues = append(issues, core.Issue{
			Severity: core.SeverityBlocker,
			Code:     core.CodeStructureError,
			Message:  "PDF structure error: " + msg,
		})
	}
	for _, msg := range res.Warnings {
		issues = append(issues, core.Issue{
			Severity: core.SeverityWarning,
			Code:     core.CodeStructureWarning,
			Message:  "PDF structure warning: " + msg,
		})
	}
	return issues
}

// analyzeMetadata fills page count and sizes; absence or failure of the
// extractor degrades to a warning and leaves the page data empty.
func (o *Orchestrator) analyzeMetadata(ctx context.Context, pdfPath string, rep *report.Report, issues []core.Issue) []core.Issue {
	if !o.avail[tools.ToolPDFInfo] {
		return append(issues, toolMissing(tools.ToolPDFInfo, "page metadata unavailable"))
	}
	meta, err := o.runner.ExtractMetadata(ctx, pdfPath)
	if err != nil {
		return append(issues, core.Issue{
			Severity: core.SeverityWarning,
			Code:     core.CodeMetadataFailed,
			Message:  fmt.Sprintf("metadata extraction failed: %v", err),
		})
	}
	rep.Input.PageCount = meta.PageCount
	rep.Analysis.PageCount = meta.PageCount
	for _, ps := range meta.PageSizes {
		rep.Analysis.PageSizes = append(rep.Analysis.PageSizes, report.PageSize{
			WidthPts:  ps.WidthPts,
			HeightPts: ps.HeightPts,
		})
	}
	return issues
}

// persistDPIFinding records a durable low-DPI finding for raster inputs
// under the threshold. Persistence failure is logged and swallowed; the
// report still carries the corresponding issue.
func (o *Orchestrator) persistDPIFinding(ctx context.Context, job *core.Job, norm *normalize.Result) {
	if norm.Metadata == nil || norm.Metadata.DPI <= 0 || norm.Metadata.DPI >= o.cfg.FindingDPIBelow {
		return
	}
	meta, _ := json.Marshal(norm.Metadata)
	err := o.store.AddFinding(ctx, &core.Finding{
		OrganizationID: job.OrganizationID,
		JobID:          job.ID,
		FindingType:    core.FindingLowDPI,
		Severity:       core.SeverityInfo,
		Message:        fmt.Sprintf("input resolution %.0f DPI is below the %.0f DPI print threshold", norm.Metadata.DPI, o.cfg.FindingDPIBelow),
		DPI:            norm.Metadata.DPI,
		Metadata:       meta,
	})
	if err != nil {
		o.log.Warn("could not persist dpi finding", "job_id", job.ID, "error", err)
	}
}

// fontIssues reports one warning per non-embedded font. checked is false
// when the extractor was unavailable or failed, in which case embedding
// status is unknown.
func (o *Orchestrator) fontIssues(ctx context.Context, pdfPath string) (issues []core.Issue, checked, allEmbedded bool) {
	if !o.avail[tools.ToolPDFFonts] {
		return []core.Issue{toolMissing(tools.ToolPDFFonts, "font embedding unverified")}, false, false
	}
	fonts, err := o.runner.ListFonts(ctx, pdfPath)
	if err != nil {
		return []core.Issue{{
			Severity: core.SeverityWarning,
			Code:     core.CodeFontCheckFailed,
			Message:  fmt.Sprintf("font check failed: %v", err),
		}}, false, false
	}
	allEmbedded = true
	for _, f := range fonts {
		if !f.Embedded {
			allEmbedded = false
			issues = append(issues, core.Issue{
				Severity: core.SeverityWarning,
				Code:     core.CodeFontNotEmbedded,
				Message:  fmt.Sprintf("font %q is not embedded; output devices may substitute it", f.Name),
				Meta:     map[string]any{"font": f.Name, "type": f.Type},
			})
		}
	}
	return issues, true, allEmbedded
}

// renderProof rasterizes page one and stores it as a durable output.
// Failures never block the report.
func (o *Orchestrator) renderProof(ctx context.Context, jobID, pdfPath string, manifest core.OutputManifestData, issues []core.Issue) []core.Issue {
	if !o.avail[tools.ToolPDFToPPM] {
		return append(issues, toolMissing(tools.ToolPDFToPPM, "no proof image rendered"))
	}
	proofPath := filepath.Join(o.paths.JobDir(jobID), "proof.png")
	if err := o.runner.RenderProof(ctx, pdfPath, proofPath, o.cfg.ProofDPI); err != nil {
		return append(issues, proofFailed(err))
	}
	png, err := os.ReadFile(proofPath)
	if err == nil {
		err = o.output.StoreOutput(ctx, jobID, core.OutputProofPNG, png)
	}
	if err != nil {
		return append(issues, proofFailed(err))
	}
	manifest[core.OutputProofPNG] = workspace.OutputName(core.OutputProofPNG)
	return issues
}

// attemptFix runs the safe Ghostscript repair, persists the repaired PDF
// and an immutable fix log, and attaches before/after snapshots. The before
// snapshot scores the issues found so far; the after snapshot independently
// re-scores the repaired bytes with the structural and font checks.
func (o *Orchestrator) attemptFix(ctx context.Context, job *core.Job, pdfPath string, rep *report.Report, manifest core.OutputManifestData, issues []core.Issue) []core.Issue {
	if !o.avail[tools.ToolGhostscript] {
		return append(issues,
			toolMissing(tools.ToolGhostscript, "automatic repair skipped"),
			core.Issue{
				Severity: core.SeverityWarning,
				Code:     core.CodeAutoFixUnavailable,
				Message:  "check_and_fix was requested but the repair tool is not installed",
			})
	}

	before := report.Snapshot{Score: core.Score(issues), Counts: core.CountIssues(issues)}

	fixedPath := filepath.Join(o.paths.JobDir(job.ID), "fixed.pdf")
	if err := o.runner.Repair(ctx, pdfPath, fixedPath); err != nil {
		return append(issues, fixFailed(err))
	}
	fixed, err := os.ReadFile(fixedPath)
	if err == nil {
		err = o.output.StoreOutput(ctx, job.ID, core.OutputFixedPDF, fixed)
	}
	if err != nil {
		return append(issues, fixFailed(err))
	}
	manifest[core.OutputFixedPDF] = workspace.OutputName(core.OutputFixedPDF)

	afterIssues := o.structuralIssues(ctx, fixedPath)
	fontAfter, _, _ := o.fontIssues(ctx, fixedPath)
	afterIssues = append(afterIssues, fontAfter...)
	after := report.Snapshot{Score: core.Score(afterIssues), Counts: core.CountIssues(afterIssues)}

	beforeJSON, _ := json.Marshal(before)
	afterJSON, _ := json.Marshal(after)
	if err := o.store.AddFixLog(ctx, &core.FixLog{
		OrganizationID: job.OrganizationID,
		JobID:          job.ID,
		FixType:        core.FixNormalizeGhostscript,
		Description:    "re-distilled via Ghostscript: fonts embedded, color preserved, PDF 1.4, no auto-rotate",
		BeforeSnapshot: beforeJSON,
		AfterSnapshot:  afterJSON,
	}); err != nil {
		o.log.Warn("could not persist fix log", "job_id", job.ID, "error", err)
	}

	rep.Fix = &report.Fix{
		Before:  before,
		After:   after,
		Applied: []string{core.FixNormalizeGhostscript},
	}
	return issues
}

// persistReport serializes and stores the report, completing the manifest.
func (o *Orchestrator) persistReport(ctx context.Context, jobID string, rep *report.Report, manifest core.OutputManifestData) (core.OutputManifestData, error) {
	data, err := rep.Marshal()
	if err != nil {
		return nil, fmt.Errorf("serialize report: %w", err)
	}
	if err := o.output.StoreOutput(ctx, jobID, core.OutputReportJSON, data); err != nil {
		return nil, fmt.Errorf("store report: %w", err)
	}
	manifest[core.OutputReportJSON] = workspace.OutputName(core.OutputReportJSON)
	return manifest, nil
}

func (o *Orchestrator) progress(ctx context.Context, jobID, message string) {
	if err := o.store.UpdateProgress(ctx, jobID, message); err != nil {
		o.log.Debug("progress update failed", "job_id", jobID, "error", err)
	}
}

func toolMissing(tool tools.Tool, consequence string) core.Issue {
	return core.Issue{
		Severity: core.SeverityWarning,
		Code:     core.CodeToolMissing,
		Message:  fmt.Sprintf("%s is not installed; %s", tool, consequence),
		Meta:     map[string]any{"tool": string(tool)},
	}
}

func proofFailed(err error) core.Issue {
	return core.Issue{
		Severity: core.SeverityWarning,
		Code:     core.CodeProofRenderFailed,
		Message:  fmt.Sprintf("proof render failed: %v", err),
	}
}

func fixFailed(err error) core.Issue {
	return core.Issue{
		Severity: core.SeverityWarning,
		Code:     core.CodeAutoFixFailed,
		Message:  fmt.Sprintf("automatic repair failed: %v", err),
	}
}
