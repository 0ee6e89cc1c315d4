package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nguyenhaitrieu10/jobworker/internal/models"
	"github.com/nguyenhaitrieu10/jobworker/migrations"
)

// pgDSN is set by TestMain when a postgres container could be started.
// Postgres-backed tests skip when it is empty, so the sqlite-backed tests in
// this package still run without docker.
var pgDSN string

func TestMain(m *testing.M) {
	os.Exit(runWithPostgres(m))
}

func runWithPostgres(m *testing.M) int {
	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Printf("docker pool unavailable, skipping postgres tests: %v", err)
		return m.Run()
	}
	pool.MaxWait = 60 * time.Second

	if err := pool.Client.Ping(); err != nil {
		log.Printf("docker daemon unreachable, skipping postgres tests: %v", err)
		return m.Run()
	}

	pg, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "17-alpine",
		Env: []string{
			"POSTGRES_USER=testuser",
			"POSTGRES_PASSWORD=testpass",
			"POSTGRES_DB=jobsdb",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		log.Printf("could not start postgres container, skipping postgres tests: %v", err)
		return m.Run()
	}
	defer func() {
		if err := pool.Purge(pg); err != nil {
			log.Printf("could not purge postgres container: %v", err)
		}
	}()

	dsn := fmt.Sprintf(
		"host=localhost user=testuser password=testpass dbname=jobsdb port=%s sslmode=disable TimeZone=UTC",
		pg.GetPort("5432/tcp"),
	)

	if err := pool.Retry(func() error {
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Ping(); err != nil {
			return err
		}
		return migrations.Up(db)
	}); err != nil {
		log.Printf("could not connect to postgres, skipping postgres tests: %v", err)
		return m.Run()
	}

	pgDSN = dsn
	return m.Run()
}

// newPostgresDB connects to the migrated container database and starts the
// test from an empty jobs table.
func newPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	if pgDSN == "" {
		t.Skip("postgres container not available")
	}

	db, err := gorm.Open(postgres.Open(pgDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	require.NoError(t, db.Exec("DELETE FROM jobs").Error)
	return db
}

func TestIntegrationCreateAndGet(t *testing.T) {
	repo := NewJobRepository(newPostgresDB(t))
	ctx := context.Background()

	j := seedJob(t, repo, func(j *models.Job) {
		j.Payload = []byte(`{"to":"a@example.com"}`)
	})

	got, err := repo.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, j.ID, got.ID)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.JSONEq(t, `{"to":"a@example.com"}`, string(got.Payload))
}

// Concurrent claims against the real SKIP LOCKED path: every job must be
// handed to exactly one claimer.
func TestIntegrationConcurrentClaims(t *testing.T) {
	repo := NewJobRepository(newPostgresDB(t))
	ctx := context.Background()

	const jobCount = 30
	for i := 0; i < jobCount; i++ {
		seedJob(t, repo, nil)
	}

	now := time.Now().UTC()
	var (
		mu      sync.Mutex
		claimed = make(map[uuid.UUID]int)
		wg      sync.WaitGroup
	)

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				jobs, err := repo.ClaimPending(ctx, 5, nil, now)
				if err != nil {
					t.Errorf("claim failed: %v", err)
					return
				}
				if len(jobs) == 0 {
					return
				}
				mu.Lock()
				for _, j := range jobs {
					claimed[j.ID]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, claimed, jobCount)
	for id, n := range claimed {
		assert.Equal(t, 1, n, "job %s claimed %d times", id, n)
	}
}

func TestIntegrationRetryLifecycle(t *testing.T) {
	repo := NewJobRepository(newPostgresDB(t))
	ctx := context.Background()

	j := seedJob(t, repo, nil)
	now := time.Now().UTC()

	claimed, err := repo.ClaimPending(ctx, 10, nil, now)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	at := now.Add(time.Minute)
	require.NoError(t, repo.Reschedule(ctx, j.ID, at, "transient failure"))

	got, err := repo.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	assert.Nil(t, got.StartedAt)

	// Second attempt succeeds.
	claimed, err = repo.ClaimPending(ctx, 10, nil, at.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.NoError(t, repo.MarkCompleted(ctx, j.ID, []byte(`{"ok":true}`)))

	got, err = repo.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	require.NotNil(t, got.CompletedAt)
}

func TestIntegrationDeleteOlderThan(t *testing.T) {
	repo := NewJobRepository(newPostgresDB(t))
	ctx := context.Background()

	j := seedJob(t, repo, nil)
	claimOne(t, repo, j.ID)
	require.NoError(t, repo.MarkCompleted(ctx, j.ID, nil))
	require.NoError(t, repo.db.Model(&models.Job{}).
		Where("id = ?", j.ID).
		Update("completed_at", time.Now().UTC().Add(-48*time.Hour)).Error)

	keep := seedJob(t, repo, nil)

	deleted, err := repo.DeleteOlderThan(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.Get(ctx, keep.ID)
	assert.NoError(t, err)
}
