package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type JobCreateDTO struct {
	JobType     string          `json:"job_type" validate:"required"`
	TenantID    *string         `json:"tenant_id,omitempty"`
	Payload     json.RawMessage `json:"payload" validate:"required"`
	MaxRetries  *int            `json:"max_retries,omitempty" validate:"omitempty,gte=0,lte=20"`
	ScheduledAt *time.Time      `json:"scheduled_at,omitempty"`
}

type JobResponseDTO struct {
	ID          uuid.UUID       `json:"id"`
	TenantID    *string         `json:"tenant_id,omitempty"`
	JobType     string          `json:"job_type"`
	Status      string          `json:"status"`
	Payload     json.RawMessage `json:"payload"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	RetryCount  int             `json:"retry_count"`
	MaxRetries  int             `json:"max_retries"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
