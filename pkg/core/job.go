// Package core provides the domain models for the preflight pipeline.
package core

import (
	"encoding/json"
	"time"
)

// JobStatus represents the current state of a preflight job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusSucceeded JobStatus = "succeeded"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled" // Removed from the queue before a worker claimed it
)

// Terminal reports whether a job in this status will never transition again.
func (s JobStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// JobMode selects whether the pipeline only reports problems or also
// attempts a safe automatic repair.
type JobMode string

const (
	ModeCheck       JobMode = "check"
	ModeCheckAndFix JobMode = "check_and_fix"
)

// Job is one preflight run over a single uploaded file.
//
// ExpiresAt is fixed at creation (CreatedAt plus the configured TTL) and is
// never extended; the cleanup sweep is the only thing that acts on it. A job
// whose worker crashed stays `running` until the sweep purges it.
type Job struct {
	ID               string    `gorm:"primaryKey;size:36"`
	OrganizationID   *string   `gorm:"index;size:36"`
	Status           JobStatus `gorm:"index;size:20;default:'queued'"`
	Mode             JobMode   `gorm:"size:20;default:'check'"`
	OriginalFilename string    `gorm:"size:512;not null"`
	ContentType      string    `gorm:"size:128"`
	SizeBytes        int64     `gorm:"not null"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
	StartedAt        *time.Time
	FinishedAt       *time.Time
	ExpiresAt        time.Time `gorm:"index;not null"`

	// Serialized ReportSummaryData / OutputManifestData, set on success.
	ReportSummary  []byte `gorm:"type:bytes"`
	OutputManifest []byte `gorm:"type:bytes"`

	ErrorMessage string `gorm:"type:text"`
	ErrorCode    string `gorm:"size:64"`
	ErrorDetails string `gorm:"type:text"`

	ProgressMessage string `gorm:"size:255"`
}

// ReportSummaryData is the compact result stored on the job row so status
// polling does not need to load the full report artifact.
type ReportSummaryData struct {
	Score     float64     `json:"score"`
	Counts    IssueCounts `json:"counts"`
	PageCount int         `json:"pageCount"`
}

// OutputKind names a durable artifact produced by the pipeline.
type OutputKind string

const (
	OutputReportJSON OutputKind = "report_json"
	OutputProofPNG   OutputKind = "proof_png"
	OutputFixedPDF   OutputKind = "fixed_pdf"
)

// OutputManifestData maps artifact kinds to the file names stored under the
// job's output directory.
type OutputManifestData map[OutputKind]string

// JobError describes why a job reached the failed state.
type JobError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

// SetReportSummary serializes and stores the summary on the row.
func (j *Job) SetReportSummary(s ReportSummaryData) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	j.ReportSummary = b
	return nil
}

// GetReportSummary deserializes the stored summary, or returns nil if unset.
func (j *Job) GetReportSummary() (*ReportSummaryData, error) {
	if len(j.ReportSummary) == 0 {
		return nil, nil
	}
	var s ReportSummaryData
	if err := json.Unmarshal(j.ReportSummary, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SetOutputManifest serializes and stores the manifest on the row.
func (j *Job) SetOutputManifest(m OutputManifestData) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	j.OutputManifest = b
	return nil
}

// GetOutputManifest deserializes the stored manifest, or returns nil if unset.
func (j *Job) GetOutputManifest() (OutputManifestData, error) {
	if len(j.OutputManifest) == 0 {
		return nil, nil
	}
	var m OutputManifestData
	if err := json.Unmarshal(j.OutputManifest, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Error returns the stored failure info, or nil for non-failed jobs.
func (j *Job) Error() *JobError {
	if j.ErrorMessage == "" && j.ErrorCode == "" {
		return nil
	}
	return &JobError{Message: j.ErrorMessage, Code: j.ErrorCode, Details: j.ErrorDetails}
}
