// Package scheduler contains the background job scheduler: a pool of
// polling worker loops, a cron dispatcher that materializes periodic jobs,
// and a retention cleanup task, coordinated over a durable job store.
package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/nguyenhaitrieu10/jobworker/internal/models"
)

// JobStore is the persistence contract the scheduler consumes. The store
// must serialize conflicting writes; ClaimPending in particular is the sole
// mutual-exclusion mechanism between workers and must transition each
// returned job to running atomically so no job is claimed twice.
type JobStore interface {
	// ClaimPending atomically moves up to batchSize eligible pending jobs
	// (scheduled_at <= now, job_type in jobTypes) to running, sets
	// started_at, and returns them oldest-created-first.
	ClaimPending(ctx context.Context, batchSize int, jobTypes []string, now time.Time) ([]models.Job, error)

	// Create inserts a new pending job. Used by the cron dispatcher.
	Create(ctx context.Context, job *models.Job) error

	// MarkCompleted records the terminal completed state with its result.
	MarkCompleted(ctx context.Context, id uuid.UUID, result datatypes.JSON) error

	// MarkFailed records the terminal failed state with its error string.
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error

	// Reschedule returns a failed job to pending for a later attempt:
	// increments retry_count, pushes scheduled_at to the given time, and
	// records the error for visibility.
	Reschedule(ctx context.Context, id uuid.UUID, at time.Time, errMsg string) error

	// DeleteOlderThan removes terminal jobs whose completion is older than
	// the cutoff and returns how many rows were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
