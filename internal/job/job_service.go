package job

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/nguyenhaitrieu10/jobworker/common"
	"github.com/nguyenhaitrieu10/jobworker/internal/dto"
	"github.com/nguyenhaitrieu10/jobworker/internal/models"
	"github.com/nguyenhaitrieu10/jobworker/internal/processor"
)

type JobService struct {
	repo     JobRepoInterface
	registry *processor.Registry
}

func NewJobService(repo JobRepoInterface, registry *processor.Registry) *JobService {
	return &JobService{repo: repo, registry: registry}
}

var _ JobServiceInterface = (*JobService)(nil)

// CreateJob validates the request against the processor registry, applies
// the handler's default retry policy, and persists the pending job.
func (s *JobService) CreateJob(ctx context.Context, req *dto.JobCreateDTO) (*dto.JobResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request canceled or timed out")
	}

	if !json.Valid(req.Payload) {
		return nil, common.Errf(http.StatusBadRequest, "payload must be valid JSON")
	}

	handler, ok := s.registry.Get(req.JobType)
	if !ok {
		return nil, common.NewAPIError(
			http.StatusBadRequest,
			"unknown job type",
			map[string]any{
				"provided": req.JobType,
				"known":    s.registry.Types(),
			},
		)
	}

	maxRetries := handler.MaxRetries()
	if req.MaxRetries != nil {
		maxRetries = *req.MaxRetries
	}

	j := models.Job{
		TenantID:   req.TenantID,
		JobType:    req.JobType,
		Status:     models.JobStatusPending,
		Payload:    datatypes.JSON(req.Payload),
		MaxRetries: maxRetries,
	}
	if req.ScheduledAt != nil {
		j.ScheduledAt = req.ScheduledAt.UTC()
	}

	if err := s.repo.Create(ctx, &j); err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			return nil, common.Errf(http.StatusRequestTimeout, "request was canceled")
		case errors.Is(err, context.DeadlineExceeded):
			return nil, common.Errf(http.StatusRequestTimeout, "request timeout")
		default:
			return nil, common.Errf(http.StatusInternalServerError, "failed to enqueue job")
		}
	}

	resp := toResponse(&j)
	return &resp, nil
}

// GetJobByID retrieves a job and maps repository errors to API errors.
func (s *JobService) GetJobByID(ctx context.Context, id uuid.UUID) (*dto.JobResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	j, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
		}
		return nil, common.Errf(http.StatusNotFound, "job not found")
	}

	resp := toResponse(j)
	return &resp, nil
}

// ListJobs retrieves jobs matching the filter.
func (s *JobService) ListJobs(ctx context.Context, filter ListFilter) ([]dto.JobResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	if filter.Status != "" && !validStatus(filter.Status) {
		return nil, common.Errf(http.StatusBadRequest, "invalid status %q", filter.Status)
	}

	jobs, err := s.repo.List(ctx, filter)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
		}
		return nil, common.Errf(http.StatusInternalServerError, "failed to list jobs")
	}

	dtos := make([]dto.JobResponseDTO, len(jobs))
	for i := range jobs {
		dtos[i] = toResponse(&jobs[i])
	}
	return dtos, nil
}

// CancelJob transitions a pending or running job to cancelled.
func (s *JobService) CancelJob(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	cancelled, err := s.repo.Cancel(ctx, id)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return common.Errf(http.StatusRequestTimeout, "request timed out")
		}
		return common.Errf(http.StatusInternalServerError, "failed to cancel job")
	}
	if !cancelled {
		return common.Errf(http.StatusConflict, "job is missing or already finished")
	}
	return nil
}

func validStatus(s string) bool {
	switch models.JobStatus(s) {
	case models.JobStatusPending, models.JobStatusRunning, models.JobStatusCompleted,
		models.JobStatusFailed, models.JobStatusCancelled:
		return true
	}
	return false
}

func toResponse(j *models.Job) dto.JobResponseDTO {
	return dto.JobResponseDTO{
		ID:          j.ID,
		TenantID:    j.TenantID,
		JobType:     j.JobType,
		Status:      string(j.Status),
		Payload:     json.RawMessage(j.Payload),
		Result:      json.RawMessage(j.Result),
		Error:       j.Error,
		RetryCount:  j.RetryCount,
		MaxRetries:  j.MaxRetries,
		ScheduledAt: j.ScheduledAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}
