package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nguyenhaitrieu10/jobworker/internal/job"
	"github.com/nguyenhaitrieu10/jobworker/internal/models"
)

// newTestDB gives each test a private in-memory sqlite database. The claim
// query degrades to a plain conditional update on sqlite, which is exactly
// what these tests exercise; SKIP LOCKED behavior is covered by the
// dockertest integration test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection keeps every statement on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.Job{}))
	return db
}

func seedJob(t *testing.T, repo *JobRepository, mutate func(*models.Job)) *models.Job {
	t.Helper()
	j := &models.Job{JobType: "send_email", MaxRetries: 3}
	if mutate != nil {
		mutate(j)
	}
	require.NoError(t, repo.Create(context.Background(), j))
	return j
}

func claimOne(t *testing.T, repo *JobRepository, id uuid.UUID) {
	t.Helper()
	claimed, err := repo.ClaimPending(context.Background(), 100, nil, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	for _, c := range claimed {
		if c.ID == id {
			return
		}
	}
	t.Fatalf("job %s was not claimed", id)
}

func TestCreateAndGet(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()

	j := &models.Job{
		JobType: "send_email",
		Payload: datatypes.JSON(`{"to":"a@example.com"}`),
	}
	require.NoError(t, repo.Create(ctx, j))

	assert.NotEqual(t, uuid.Nil, j.ID)
	assert.Equal(t, models.JobStatusPending, j.Status)
	assert.False(t, j.ScheduledAt.IsZero())

	got, err := repo.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, j.ID, got.ID)
	assert.Equal(t, "send_email", got.JobType)
	assert.JSONEq(t, `{"to":"a@example.com"}`, string(got.Payload))
}

func TestGetNotFound(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))

	_, err := repo.Get(context.Background(), uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestListFilters(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()

	seedJob(t, repo, func(j *models.Job) { j.JobType = "send_email" })
	seedJob(t, repo, func(j *models.Job) { j.JobType = "generate_report" })
	failed := seedJob(t, repo, func(j *models.Job) { j.JobType = "send_email" })
	claimOne(t, repo, failed.ID)
	require.NoError(t, repo.MarkFailed(ctx, failed.ID, "boom"))

	all, err := repo.List(ctx, job.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	emails, err := repo.List(ctx, job.ListFilter{JobType: "send_email"})
	require.NoError(t, err)
	assert.Len(t, emails, 2)

	failedJobs, err := repo.List(ctx, job.ListFilter{Status: string(models.JobStatusFailed)})
	require.NoError(t, err)
	require.Len(t, failedJobs, 1)
	assert.Equal(t, failed.ID, failedJobs[0].ID)
}

func TestListPagination(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	base := time.Now().UTC().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		i := i
		seedJob(t, repo, func(j *models.Job) {
			j.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		})
	}

	page, err := repo.List(context.Background(), job.ListFilter{Limit: 2, Offset: 0})
	require.NoError(t, err)
	require.Len(t, page, 2)
	// Newest first.
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt))

	rest, err := repo.List(context.Background(), job.ListFilter{Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestCancel(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()

	pending := seedJob(t, repo, nil)
	cancelled, err := repo.Cancel(ctx, pending.ID)
	require.NoError(t, err)
	assert.True(t, cancelled)

	got, err := repo.Get(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, got.Status)
	require.NotNil(t, got.CompletedAt)

	// Terminal jobs cannot be cancelled again.
	cancelled, err = repo.Cancel(ctx, pending.ID)
	require.NoError(t, err)
	assert.False(t, cancelled)

	cancelled, err = repo.Cancel(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, cancelled)
}

func TestClaimPendingBatchAndOrdering(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	ids := make([]uuid.UUID, 0, 15)
	for i := 0; i < 15; i++ {
		i := i
		j := seedJob(t, repo, func(j *models.Job) {
			j.CreatedAt = base.Add(time.Duration(i) * time.Second)
		})
		ids = append(ids, j.ID)
	}

	now := time.Now().UTC()
	first, err := repo.ClaimPending(ctx, 10, nil, now)
	require.NoError(t, err)
	require.Len(t, first, 10)

	// Oldest created jobs come first.
	for i, c := range first {
		assert.Equal(t, ids[i], c.ID)
		assert.Equal(t, models.JobStatusRunning, c.Status)
		require.NotNil(t, c.StartedAt)
	}

	// The claim is persisted, so the remainder is a disjoint set.
	second, err := repo.ClaimPending(ctx, 10, nil, now)
	require.NoError(t, err)
	require.Len(t, second, 5)
	for i, c := range second {
		assert.Equal(t, ids[10+i], c.ID)
	}

	third, err := repo.ClaimPending(ctx, 10, nil, now)
	require.NoError(t, err)
	assert.Empty(t, third)
}

func TestClaimPendingSkipsFutureJobs(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	due := seedJob(t, repo, nil)
	seedJob(t, repo, func(j *models.Job) { j.ScheduledAt = now.Add(time.Hour) })

	claimed, err := repo.ClaimPending(ctx, 10, nil, now)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, due.ID, claimed[0].ID)
}

func TestClaimPendingFiltersJobTypes(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()

	email := seedJob(t, repo, func(j *models.Job) { j.JobType = "send_email" })
	report := seedJob(t, repo, func(j *models.Job) { j.JobType = "generate_report" })

	claimed, err := repo.ClaimPending(ctx, 10, []string{"send_email"}, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, email.ID, claimed[0].ID)

	// The filtered-out job stays pending and claimable by another worker.
	got, err := repo.Get(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)

	rest, err := repo.ClaimPending(ctx, 10, []string{"generate_report"}, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, report.ID, rest[0].ID)
}

func TestMarkCompleted(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()

	j := seedJob(t, repo, nil)
	claimOne(t, repo, j.ID)

	require.NoError(t, repo.MarkCompleted(ctx, j.ID, datatypes.JSON(`{"ok":true}`)))

	got, err := repo.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.JSONEq(t, `{"ok":true}`, string(got.Result))
	require.NotNil(t, got.CompletedAt)
}

func TestMarkCompletedRespectsExternalCancel(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()

	j := seedJob(t, repo, nil)
	claimOne(t, repo, j.ID)

	// Cancelled mid-run; the worker's completion write must not resurrect it.
	cancelled, err := repo.Cancel(ctx, j.ID)
	require.NoError(t, err)
	require.True(t, cancelled)

	require.NoError(t, repo.MarkCompleted(ctx, j.ID, datatypes.JSON(`{"ok":true}`)))

	got, err := repo.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, got.Status)
}

func TestMarkFailed(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()

	j := seedJob(t, repo, nil)
	claimOne(t, repo, j.ID)

	require.NoError(t, repo.MarkFailed(ctx, j.ID, "smtp unavailable"))

	got, err := repo.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, "smtp unavailable", got.Error)
	require.NotNil(t, got.CompletedAt)
}

func TestReschedule(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()

	j := seedJob(t, repo, nil)
	claimOne(t, repo, j.ID)

	at := time.Now().UTC().Add(time.Minute).Truncate(time.Second)
	require.NoError(t, repo.Reschedule(ctx, j.ID, at, "transient failure"))

	got, err := repo.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	assert.Equal(t, "transient failure", got.Error)
	assert.WithinDuration(t, at, got.ScheduledAt, time.Second)
	assert.Nil(t, got.StartedAt)

	// Not eligible again until the new scheduled_at passes.
	claimed, err := repo.ClaimPending(ctx, 10, nil, time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, claimed)

	claimed, err = repo.ClaimPending(ctx, 10, nil, at.Add(time.Second))
	require.NoError(t, err)
	assert.Len(t, claimed, 1)
}

func TestDeleteOlderThan(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()

	// Old terminal job: eligible for cleanup.
	old := seedJob(t, repo, nil)
	claimOne(t, repo, old.ID)
	require.NoError(t, repo.MarkCompleted(ctx, old.ID, nil))
	past := time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, repo.db.Model(&models.Job{}).
		Where("id = ?", old.ID).Update("completed_at", past).Error)

	// Recent terminal job and a pending job: both kept.
	recent := seedJob(t, repo, nil)
	claimOne(t, repo, recent.ID)
	require.NoError(t, repo.MarkFailed(ctx, recent.ID, "boom"))
	pending := seedJob(t, repo, nil)

	deleted, err := repo.DeleteOlderThan(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.Get(ctx, old.ID)
	assert.Error(t, err)
	_, err = repo.Get(ctx, recent.ID)
	assert.NoError(t, err)
	_, err = repo.Get(ctx, pending.ID)
	assert.NoError(t, err)
}
