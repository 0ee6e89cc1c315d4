package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nguyenhaitrieu10/jobworker/internal/job"
	"github.com/nguyenhaitrieu10/jobworker/internal/models"
	"github.com/nguyenhaitrieu10/jobworker/internal/scheduler"
)

// JobRepository persists jobs in PostgreSQL through gorm. It serves both
// the producer API (create/get/list/cancel) and the scheduler's JobStore
// contract (claim and transition persistence).
type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

var (
	_ job.JobRepoInterface = (*JobRepository)(nil)
	_ scheduler.JobStore   = (*JobRepository)(nil)
)

// Create inserts a new job record.
func (r *JobRepository) Create(ctx context.Context, j *models.Job) error {
	if err := r.db.WithContext(ctx).Create(j).Error; err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// Get retrieves a single job record by its ID.
func (r *JobRepository) Get(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var j models.Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("job not found: %w", err)
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &j, nil
}

// List retrieves jobs filtered by status and/or job type, newest first.
func (r *JobRepository) List(ctx context.Context, filter job.ListFilter) ([]models.Job, error) {
	q := r.db.WithContext(ctx).Model(&models.Job{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.JobType != "" {
		q = q.Where("job_type = ?", filter.JobType)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var jobs []models.Job
	if err := q.Order("created_at DESC").Limit(limit).Offset(filter.Offset).Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// Cancel transitions a pending or running job to cancelled. Returns false
// when the job does not exist or is already terminal.
func (r *JobRepository) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status IN ?", id,
			[]models.JobStatus{models.JobStatusPending, models.JobStatusRunning}).
		Updates(map[string]any{
			"status":       models.JobStatusCancelled,
			"completed_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("cancel job: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ClaimPending atomically claims up to batchSize eligible pending jobs and
// marks them running. Candidate rows are selected oldest-created-first and
// locked FOR UPDATE SKIP LOCKED on PostgreSQL, so concurrent workers never
// claim the same row; the conditional status check in the update keeps the
// claim safe on dialects without SKIP LOCKED (the sqlite test database).
func (r *JobRepository) ClaimPending(ctx context.Context, batchSize int, jobTypes []string, now time.Time) ([]models.Job, error) {
	var claimed []models.Job

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.Job{}).
			Where("status = ? AND scheduled_at <= ?", models.JobStatusPending, now)
		if len(jobTypes) > 0 {
			q = q.Where("job_type IN ?", jobTypes)
		}
		q = q.Order("created_at ASC").Limit(batchSize)
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		var candidates []models.Job
		if err := q.Find(&candidates).Error; err != nil {
			return fmt.Errorf("select pending jobs: %w", err)
		}
		if len(candidates) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, len(candidates))
		for i := range candidates {
			ids[i] = candidates[i].ID
		}

		res := tx.Model(&models.Job{}).
			Where("id IN ? AND status = ?", ids, models.JobStatusPending).
			Updates(map[string]any{
				"status":     models.JobStatusRunning,
				"started_at": now,
				"updated_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("mark jobs running: %w", res.Error)
		}

		startedAt := now
		for i := range candidates {
			candidates[i].Status = models.JobStatusRunning
			candidates[i].StartedAt = &startedAt
			candidates[i].UpdatedAt = now
		}
		claimed = candidates
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// MarkCompleted records the terminal completed state. The status guard
// means a job cancelled externally mid-run stays cancelled.
func (r *JobRepository) MarkCompleted(ctx context.Context, id uuid.UUID, result datatypes.JSON) error {
	now := time.Now().UTC()
	if err := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status = ?", id, models.JobStatusRunning).
		Updates(map[string]any{
			"status":       models.JobStatusCompleted,
			"result":       result,
			"completed_at": now,
			"updated_at":   now,
		}).Error; err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// MarkFailed records the terminal failed state with the error string.
func (r *JobRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	now := time.Now().UTC()
	if err := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status = ?", id, models.JobStatusRunning).
		Updates(map[string]any{
			"status":       models.JobStatusFailed,
			"error":        errMsg,
			"completed_at": now,
			"updated_at":   now,
		}).Error; err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// Reschedule returns a failed job to pending for a later attempt. The
// increment runs at the database level so concurrent updates cannot lose
// an attempt count.
func (r *JobRepository) Reschedule(ctx context.Context, id uuid.UUID, at time.Time, errMsg string) error {
	if err := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status = ?", id, models.JobStatusRunning).
		Updates(map[string]any{
			"status":       models.JobStatusPending,
			"retry_count":  gorm.Expr("retry_count + ?", 1),
			"scheduled_at": at,
			"error":        errMsg,
			"started_at":   nil,
			"updated_at":   time.Now().UTC(),
		}).Error; err != nil {
		return fmt.Errorf("reschedule job: %w", err)
	}
	return nil
}

// DeleteOlderThan removes terminal jobs whose completion predates the
// cutoff. Non-terminal rows are never touched.
func (r *JobRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status IN ? AND completed_at IS NOT NULL AND completed_at < ?",
			[]models.JobStatus{
				models.JobStatusCompleted,
				models.JobStatusFailed,
				models.JobStatusCancelled,
			}, cutoff).
		Delete(&models.Job{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete old jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
