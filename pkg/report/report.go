// Package report defines the prepress_report_v1 serialized contract.
// The contract evolves additively only: fields may be appended, never
// renamed or removed.
package report

import (
	"encoding/json"
	"time"

	"github.com/printforge/preflight/pkg/core"
)

// Version is the current report contract identifier.
const Version = "prepress_report_v1"

// Report is the full preflight result persisted as the report_json artifact.
type Report struct {
	Version          string            `json:"version"`
	JobID            string            `json:"jobId"`
	Mode             core.JobMode      `json:"mode"`
	Timestamp        time.Time         `json:"timestamp"`
	Input            Input             `json:"input"`
	Summary          Summary           `json:"summary"`
	Issues           []core.Issue      `json:"issues"`
	Analysis         Analysis          `json:"analysis"`
	ToolAvailability map[string]bool   `json:"toolAvailability"`
	ToolVersions     map[string]string `json:"toolVersions"`
	Normalization    *Normalization    `json:"normalization,omitempty"`
	Fix              *Fix              `json:"fix,omitempty"`
}

// Input describes the uploaded file.
type Input struct {
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"sizeBytes"`
	PageCount int    `json:"pageCount"`
}

// Summary is the scored rollup of all issues.
type Summary struct {
	Score  float64          `json:"score"`
	Counts core.IssueCounts `json:"counts"`
}

// PageSize is one page's dimensions in points.
type PageSize struct {
	WidthPts  float64 `json:"widthPts"`
	HeightPts float64 `json:"heightPts"`
}

// Analysis carries what the PDF checks could determine.
type Analysis struct {
	PageCount     int        `json:"pageCount"`
	PageSizes     []PageSize `json:"pageSizes"`
	FontsEmbedded bool       `json:"fontsEmbedded"`
	Images        int        `json:"images"`
	ColorSpace    string     `json:"colorSpace,omitempty"`
}

// NormalizationMeta mirrors what the normalizer learned about a raster input.
type NormalizationMeta struct {
	DPI        float64 `json:"dpi,omitempty"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	ColorSpace string  `json:"colorSpace,omitempty"`
}

// Normalization records how the input became a PDF (or why it could not).
type Normalization struct {
	OriginalFormat   string             `json:"originalFormat"`
	NormalizedFormat string             `json:"normalizedFormat,omitempty"`
	Notes            []string           `json:"notes,omitempty"`
	Metadata         *NormalizationMeta `json:"metadata,omitempty"`
}

// Snapshot is a score-and-counts pair taken before or after a repair.
type Snapshot struct {
	Score  float64          `json:"score"`
	Counts core.IssueCounts `json:"counts"`
}

// Fix records an attempted automatic repair. The after snapshot is an
// independent re-scoring of the repaired bytes; no ordering relative to
// before is guaranteed.
type Fix struct {
	Before  Snapshot `json:"before"`
	After   Snapshot `json:"after"`
	Applied []string `json:"applied"`
}

// New builds a report skeleton with the version and timestamp set.
func New(jobID string, mode core.JobMode) *Report {
	return &Report{
		Version:          Version,
		JobID:            jobID,
		Mode:             mode,
		Timestamp:        time.Now().UTC(),
		Issues:           []core.Issue{},
		ToolAvailability: map[string]bool{},
		ToolVersions:     map[string]string{},
	}
}

// Finalize computes the summary from the issue list. The same issues always
// produce the same summary.
func (r *Report) Finalize() {
	r.Summary = Summary{
		Score:  core.Score(r.Issues),
		Counts: core.CountIssues(r.Issues),
	}
}

// Marshal serializes the report, validating it against the contract schema
// first so a malformed report can never be persisted.
func (r *Report) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := Validate(data); err != nil {
		return nil, err
	}
	return data, nil
}
