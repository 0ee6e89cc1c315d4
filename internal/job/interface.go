package job

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nguyenhaitrieu10/jobworker/internal/dto"
	"github.com/nguyenhaitrieu10/jobworker/internal/models"
)

// ListFilter narrows job listings. Zero values mean "no filter".
type ListFilter struct {
	Status  string
	JobType string
	Limit   int
	Offset  int
}

// JobRepoInterface defines the producer-side contract for job persistence.
type JobRepoInterface interface {
	Create(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, id uuid.UUID) (*models.Job, error)
	List(ctx context.Context, filter ListFilter) ([]models.Job, error)
	Cancel(ctx context.Context, id uuid.UUID) (bool, error)
}

// JobServiceInterface defines the contract for job business logic operations.
type JobServiceInterface interface {
	CreateJob(ctx context.Context, req *dto.JobCreateDTO) (*dto.JobResponseDTO, error)
	GetJobByID(ctx context.Context, id uuid.UUID) (*dto.JobResponseDTO, error)
	ListJobs(ctx context.Context, filter ListFilter) ([]dto.JobResponseDTO, error)
	CancelJob(ctx context.Context, id uuid.UUID) error
}

// JobHandlerInterface defines the contract for HTTP request handlers.
type JobHandlerInterface interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	List(c *gin.Context)
	Cancel(c *gin.Context)
}
