// Package workspace provides the per-job scratch area: deterministic
// jobId-derived paths and the local input/output adapters over them.
package workspace

import (
	"path/filepath"

	"github.com/printforge/preflight/pkg/core"
)

// Output file names by artifact kind. Only relative names are ever
// persisted; absolute paths are always re-derived from the temp root.
var outputNames = map[core.OutputKind]string{
	core.OutputReportJSON: "report.json",
	core.OutputProofPNG:   "proof.png",
	core.OutputFixedPDF:   "fixed.pdf",
}

// OutputName returns the file name an artifact kind is stored under.
func OutputName(kind core.OutputKind) string {
	return outputNames[kind]
}

// Paths derives every per-job location from the temp root and the job id:
//
//	{root}/{jobId}/input.pdf
//	{root}/{jobId}/output/{report.json|proof.png|fixed.pdf}
type Paths struct {
	Root string
}

// JobDir returns the job's scratch directory.
func (p Paths) JobDir(jobID string) string {
	return filepath.Join(p.Root, jobID)
}

// InputPath returns where the uploaded bytes live during processing.
func (p Paths) InputPath(jobID string) string {
	return filepath.Join(p.JobDir(jobID), "input.pdf")
}

// OutputDir returns the job's durable-output directory.
func (p Paths) OutputDir(jobID string) string {
	return filepath.Join(p.JobDir(jobID), "output")
}

// OutputPath returns the full path for one artifact kind.
func (p Paths) OutputPath(jobID string, kind core.OutputKind) string {
	return filepath.Join(p.OutputDir(jobID), OutputName(kind))
}
