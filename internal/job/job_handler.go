package job

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nguyenhaitrieu10/jobworker/common"
	"github.com/nguyenhaitrieu10/jobworker/internal/dto"
	"github.com/nguyenhaitrieu10/jobworker/middleware"
)

type JobHandler struct {
	service JobServiceInterface
}

func NewJobHandler(s JobServiceInterface) *JobHandler {
	return &JobHandler{service: s}
}

var _ JobHandlerInterface = (*JobHandler)(nil)

// RegisterRoutes mounts the job endpoints on the given router group.
func (h *JobHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/jobs", h.Create)
	rg.GET("/jobs", h.List)
	rg.GET("/jobs/:id", h.Get)
	rg.DELETE("/jobs/:id", h.Cancel)
}

// Create enqueues a new pending job and returns HTTP 201 with the record.
func (h *JobHandler) Create(c *gin.Context) {
	var req dto.JobCreateDTO

	if !middleware.Bind(c, &req) {
		c.Abort()
		return
	}

	resp, err := h.service.CreateJob(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Get fetches a job by its ID.
func (h *JobHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, common.APIError{Message: "invalid job id"})
		return
	}

	resp, err := h.service.GetJobByID(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// List returns jobs filtered by the status and job_type query parameters.
func (h *JobHandler) List(c *gin.Context) {
	var query struct {
		Status  string `form:"status"`
		JobType string `form:"job_type"`
		Limit   int    `form:"limit"`
		Offset  int    `form:"offset"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, common.APIError{Message: "invalid query parameters"})
		return
	}

	jobs, err := h.service.ListJobs(c.Request.Context(), ListFilter{
		Status:  query.Status,
		JobType: query.JobType,
		Limit:   query.Limit,
		Offset:  query.Offset,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, jobs)
}

// Cancel transitions a pending or running job to cancelled and returns 204.
func (h *JobHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, common.APIError{Message: "invalid job id"})
		return
	}

	if err := h.service.CancelJob(c.Request.Context(), id); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}
