package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Job is the persisted unit of schedulable work. Rows are created by a
// producer (API or cron dispatcher) in pending state and mutated by exactly
// one worker at a time; the repository's conditional claim is the only
// mechanism that moves a job from pending to running.
type Job struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey"`
	TenantID    *string        `gorm:"type:varchar(255)"`
	JobType     string         `gorm:"type:varchar(255);not null;index"`
	Status      JobStatus      `gorm:"type:varchar(50);not null;default:'pending'"`
	Payload     datatypes.JSON `gorm:"type:jsonb"`
	Result      datatypes.JSON `gorm:"type:jsonb"`
	Error       string         `gorm:"type:text"`
	RetryCount  int            `gorm:"not null;default:0"`
	MaxRetries  int            `gorm:"not null;default:3"`
	ScheduledAt time.Time      `gorm:"not null;index"`
	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (Job) TableName() string { return "jobs" }

// BeforeCreate fills the ID and makes an unset ScheduledAt mean "eligible now".
func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.Status == "" {
		j.Status = JobStatusPending
	}
	if j.ScheduledAt.IsZero() {
		j.ScheduledAt = time.Now().UTC()
	}
	return nil
}

// RetriesExhausted reports whether another failure must be terminal.
func (j *Job) RetriesExhausted() bool {
	return j.RetryCount >= j.MaxRetries
}
