package core

import "time"

// Finding is a persisted, org-scoped record of a notable issue. Findings are
// append-only and become immutable once the parent job is terminal; they are
// cascade-deleted with the job by the TTL sweep.
type Finding struct {
	ID             string   `gorm:"primaryKey;size:36"`
	OrganizationID *string  `gorm:"index;size:36"`
	JobID          string   `gorm:"index;size:36;not null"`
	FindingType    string   `gorm:"size:64;not null"`
	Severity       Severity `gorm:"size:16;not null"`
	Message        string   `gorm:"type:text"`
	Page           int      `gorm:"default:0"`
	Location       string   `gorm:"size:255"`
	DPI            float64  `gorm:"default:0"`
	SpotColor      string   `gorm:"size:128"`
	Metadata       []byte   `gorm:"type:bytes"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

// FixLog records one repair action applied to a job's file, with serialized
// before/after snapshots. Actor is nil for automated fixes. Same
// append-only, immutable-after-terminal, cascade-delete rules as Finding.
type FixLog struct {
	ID             string  `gorm:"primaryKey;size:36"`
	OrganizationID *string `gorm:"index;size:36"`
	JobID          string  `gorm:"index;size:36;not null"`
	FixType        string  `gorm:"size:64;not null"`
	Description    string  `gorm:"type:text"`
	Actor          *string `gorm:"size:128"`
	BeforeSnapshot []byte  `gorm:"type:bytes"`
	AfterSnapshot  []byte  `gorm:"type:bytes"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

// Finding types persisted by the pipeline.
const (
	FindingLowDPI = "low_dpi"
)

// Fix types recorded by the pipeline.
const (
	FixNormalizeGhostscript = "normalize_via_ghostscript"
)
