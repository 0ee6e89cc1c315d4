package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"gorm.io/datatypes"

	"github.com/nguyenhaitrieu10/jobworker/internal/job"
	"github.com/nguyenhaitrieu10/jobworker/internal/models"
)

// JobStoreMock implements both scheduler.JobStore and job.JobRepoInterface.
type JobStoreMock struct {
	mock.Mock
}

func (m *JobStoreMock) ClaimPending(ctx context.Context, batchSize int, jobTypes []string, now time.Time) ([]models.Job, error) {
	args := m.Called(ctx, batchSize, jobTypes, now)

	jobs, _ := args.Get(0).([]models.Job)
	return jobs, args.Error(1)
}

func (m *JobStoreMock) Create(ctx context.Context, j *models.Job) error {
	args := m.Called(ctx, j)
	return args.Error(0)
}

func (m *JobStoreMock) MarkCompleted(ctx context.Context, id uuid.UUID, result datatypes.JSON) error {
	args := m.Called(ctx, id, result)
	return args.Error(0)
}

func (m *JobStoreMock) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	args := m.Called(ctx, id, errMsg)
	return args.Error(0)
}

func (m *JobStoreMock) Reschedule(ctx context.Context, id uuid.UUID, at time.Time, errMsg string) error {
	args := m.Called(ctx, id, at, errMsg)
	return args.Error(0)
}

func (m *JobStoreMock) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *JobStoreMock) Get(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	args := m.Called(ctx, id)

	j, _ := args.Get(0).(*models.Job)
	return j, args.Error(1)
}

func (m *JobStoreMock) List(ctx context.Context, filter job.ListFilter) ([]models.Job, error) {
	args := m.Called(ctx, filter)

	jobs, _ := args.Get(0).([]models.Job)
	return jobs, args.Error(1)
}

func (m *JobStoreMock) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}
