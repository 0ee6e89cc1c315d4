package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/nguyenhaitrieu10/jobworker/internal/dto"
	"github.com/nguyenhaitrieu10/jobworker/internal/job"
)

type JobServiceMock struct {
	mock.Mock
}

func (m *JobServiceMock) CreateJob(ctx context.Context, req *dto.JobCreateDTO) (*dto.JobResponseDTO, error) {
	args := m.Called(ctx, req)

	resp, _ := args.Get(0).(*dto.JobResponseDTO)
	return resp, args.Error(1)
}

func (m *JobServiceMock) GetJobByID(ctx context.Context, id uuid.UUID) (*dto.JobResponseDTO, error) {
	args := m.Called(ctx, id)

	resp, _ := args.Get(0).(*dto.JobResponseDTO)
	return resp, args.Error(1)
}

func (m *JobServiceMock) ListJobs(ctx context.Context, filter job.ListFilter) ([]dto.JobResponseDTO, error) {
	args := m.Called(ctx, filter)

	resp, _ := args.Get(0).([]dto.JobResponseDTO)
	return resp, args.Error(1)
}

func (m *JobServiceMock) CancelJob(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
