package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/printforge/preflight/pkg/core"
	"github.com/printforge/preflight/pkg/security"
)

// GormStore implements Store using GORM. SQLite serializes writers, so the
// claim race cannot happen there; on PostgreSQL the conditional update plus
// SKIP LOCKED carry the exclusivity guarantee.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// DB returns the underlying gorm handle.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

// IsPostgres reports whether the store is backed by PostgreSQL.
func (s *GormStore) IsPostgres() bool {
	if s.db == nil {
		return false
	}
	return s.db.Dialector.Name() == "postgres"
}

// Migrate creates the necessary tables.
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&core.Job{}, &core.Finding{}, &core.FixLog{})
}

// CreateJob inserts a queued job. The ID is generated when absent; ExpiresAt
// must already be set by the caller (creation time plus TTL) and is never
// touched again.
func (s *GormStore) CreateJob(ctx context.Context, job *core.Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if err := security.ValidateJobID(job.ID); err != nil {
		return err
	}
	if job.Status == "" {
		job.Status = core.StatusQueued
	}
	if job.Mode == "" {
		job.Mode = core.ModeCheck
	}
	if job.ExpiresAt.IsZero() {
		return core.ErrMissingTTL
	}
	return s.db.WithContext(ctx).Create(job).Error
}

// Claim atomically selects the oldest queued job and transitions it to
// running. The select narrows the candidate; the conditional update with its
// status guard is what makes exactly one of N racing callers win.
func (s *GormStore) Claim(ctx context.Context) (*core.Job, error) {
	var job core.Job
	now := time.Now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("status = ?", core.StatusQueued).Order("created_at ASC")
		if s.IsPostgres() {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		if err := q.First(&job).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				job = core.Job{}
				return nil
			}
			return err
		}

		res := tx.Model(&core.Job{}).
			Where("id = ? AND status = ?", job.ID, core.StatusQueued).
			Updates(map[string]any{
				"status":           core.StatusRunning,
				"started_at":       now,
				"progress_message": "claimed by worker",
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race to a concurrent claimer.
			job = core.Job{}
			return nil
		}

		job.Status = core.StatusRunning
		job.StartedAt = &now
		job.ProgressMessage = "claimed by worker"
		return nil
	})
	if err != nil {
		return nil, err
	}
	if job.ID == "" {
		return nil, nil
	}
	return &job, nil
}

// Succeed finalizes a running job with its summary and output manifest.
func (s *GormStore) Succeed(ctx context.Context, jobID string, summary core.ReportSummaryData, manifest core.OutputManifestData) error {
	j := &core.Job{}
	if err := j.SetReportSummary(summary); err != nil {
		return err
	}
	if err := j.SetOutputManifest(manifest); err != nil {
		return err
	}
	now := time.Now()
	res := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("id = ? AND status = ?", jobID, core.StatusRunning).
		Updates(map[string]any{
			"status":           core.StatusSucceeded,
			"finished_at":      now,
			"report_summary":   j.ReportSummary,
			"output_manifest":  j.OutputManifest,
			"progress_message": "done",
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return core.ErrJobNotFound
	}
	return nil
}

// Fail finalizes a running job with a sanitized error.
func (s *GormStore) Fail(ctx context.Context, jobID string, jobErr core.JobError) error {
	now := time.Now()
	res := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("id = ? AND status = ?", jobID, core.StatusRunning).
		Updates(map[string]any{
			"status":           core.StatusFailed,
			"finished_at":      now,
			"error_message":    security.SanitizeErrorMessage(jobErr.Message),
			"error_code":       jobErr.Code,
			"error_details":    security.SanitizeErrorMessage(jobErr.Details),
			"progress_message": "failed",
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return core.ErrJobNotFound
	}
	return nil
}

// Cancel transitions a queued job to cancelled. The conditional update means
// a job claimed between read and cancel simply reports ErrJobNotQueued.
func (s *GormStore) Cancel(ctx context.Context, jobID string) error {
	now := time.Now()
	res := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("id = ? AND status = ?", jobID, core.StatusQueued).
		Updates(map[string]any{
			"status":           core.StatusCancelled,
			"finished_at":      now,
			"progress_message": "cancelled",
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		job, err := s.GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		if job == nil {
			return core.ErrJobNotFound
		}
		return core.ErrJobNotQueued
	}
	return nil
}

// UpdateProgress records a human-readable stage message on a running job.
func (s *GormStore) UpdateProgress(ctx context.Context, jobID string, message string) error {
	return s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("id = ? AND status = ?", jobID, core.StatusRunning).
		Update("progress_message", message).Error
}

// GetJob retrieves a job by ID, or nil if absent.
func (s *GormStore) GetJob(ctx context.Context, jobID string) (*core.Job, error) {
	var job core.Job
	err := s.db.WithContext(ctx).First(&job, "id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobsByStatus retrieves jobs in a given status, oldest first.
func (s *GormStore) ListJobsByStatus(ctx context.Context, status core.JobStatus, limit int) ([]*core.Job, error) {
	var jobs []*core.Job
	err := s.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

// ListJobsForOrg retrieves an organization's jobs, newest first.
func (s *GormStore) ListJobsForOrg(ctx context.Context, orgID string, limit int) ([]*core.Job, error) {
	var jobs []*core.Job
	err := s.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

// AddFinding appends a finding for a live job. Once the parent job is
// terminal the findings are immutable and the append is refused.
func (s *GormStore) AddFinding(ctx context.Context, f *core.Finding) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireLiveJob(tx, f.JobID); err != nil {
			return err
		}
		return tx.Create(f).Error
	})
}

// ListFindings returns a job's findings scoped to the given organization.
// Tenant isolation is enforced here, at the query boundary.
func (s *GormStore) ListFindings(ctx context.Context, orgID *string, jobID string) ([]core.Finding, error) {
	var findings []core.Finding
	err := s.scopeOrg(s.db.WithContext(ctx), orgID).
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Find(&findings).Error
	return findings, err
}

// AddFixLog appends a fix-log entry for a live job.
func (s *GormStore) AddFixLog(ctx context.Context, fl *core.FixLog) error {
	if fl.ID == "" {
		fl.ID = uuid.New().String()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireLiveJob(tx, fl.JobID); err != nil {
			return err
		}
		return tx.Create(fl).Error
	})
}

// ListFixLogs returns a job's fix logs scoped to the given organization.
func (s *GormStore) ListFixLogs(ctx context.Context, orgID *string, jobID string) ([]core.FixLog, error) {
	var logs []core.FixLog
	err := s.scopeOrg(s.db.WithContext(ctx), orgID).
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Find(&logs).Error
	return logs, err
}

// SelectExpired returns up to limit jobs, in any status, whose TTL has
// passed. Sweeping running rows is deliberate: it is the only recovery for
// jobs whose worker crashed mid-run.
func (s *GormStore) SelectExpired(ctx context.Context, now time.Time, limit int) ([]*core.Job, error) {
	var jobs []*core.Job
	err := s.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

// DeleteJob removes the row and its findings and fix logs in one transaction.
func (s *GormStore) DeleteJob(ctx context.Context, jobID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id = ?", jobID).Delete(&core.Finding{}).Error; err != nil {
			return err
		}
		if err := tx.Where("job_id = ?", jobID).Delete(&core.FixLog{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", jobID).Delete(&core.Job{}).Error
	})
}

func (s *GormStore) requireLiveJob(tx *gorm.DB, jobID string) error {
	var job core.Job
	if err := tx.Select("id", "status").First(&job, "id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return core.ErrJobNotFound
		}
		return err
	}
	if job.Status.Terminal() {
		return core.ErrJobTerminal
	}
	return nil
}

func (s *GormStore) scopeOrg(tx *gorm.DB, orgID *string) *gorm.DB {
	if orgID == nil {
		return tx.Where("organization_id IS NULL")
	}
	return tx.Where("organization_id = ?", *orgID)
}
