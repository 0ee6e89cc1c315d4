package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nguyenhaitrieu10/jobworker/internal/backoff"
	"github.com/nguyenhaitrieu10/jobworker/internal/models"
	"github.com/nguyenhaitrieu10/jobworker/internal/processor"
)

// persistTimeout bounds the store writes that record an outcome. They run on
// a background context so a shutdown abort cannot strand a job in running.
const persistTimeout = 10 * time.Second

// Worker is one polling loop. It claims a batch of eligible jobs per tick
// and drives each through the executor sequentially; parallelism comes from
// running several workers, not from within one.
type Worker struct {
	id           int
	store        JobStore
	registry     *processor.Registry
	executor     *processor.Executor
	strategy     backoff.Strategy
	jobTypes     []string
	batchSize    int
	pollInterval time.Duration
	storeBackoff time.Duration
	logger       *slog.Logger

	mu           sync.Mutex
	abortCurrent context.CancelFunc
}

// Run polls until ctx is cancelled. A claimed batch is always drained even
// across cancellation, so every job the claim marked running reaches a
// persisted transition; shutdown hurries this along by aborting the
// in-flight execution context rather than by skipping jobs.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started", "worker_id", w.id)
	defer w.logger.Info("worker stopped", "worker_id", w.id)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		jobs, err := w.store.ClaimPending(ctx, w.batchSize, w.jobTypes, time.Now().UTC())
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("claim failed, backing off",
				"worker_id", w.id, "backoff", w.storeBackoff, "error", err.Error())
			select {
			case <-time.After(w.storeBackoff):
			case <-ctx.Done():
				return
			}
			continue
		}

		for i := range jobs {
			w.handle(&jobs[i])
		}
	}
}

// handle runs one claimed job through the executor and persists the
// resulting state transition.
func (w *Worker) handle(job *models.Job) {
	handler, ok := w.registry.Get(job.JobType)
	if !ok {
		// Unreachable when the claim filter is derived from the registry;
		// fail terminally rather than leave the row running.
		w.logger.Error("no handler registered for claimed job",
			"worker_id", w.id, "job_id", job.ID.String(), "job_type", job.JobType)
		w.persistFailed(job, "no handler registered for job type "+job.JobType)
		return
	}

	execCtx, cancel := context.WithCancel(context.Background())
	w.mu.Lock()
	w.abortCurrent = cancel
	w.mu.Unlock()

	res := w.executor.Execute(execCtx, handler, job)

	w.mu.Lock()
	w.abortCurrent = nil
	w.mu.Unlock()
	cancel()

	switch res.Outcome {
	case processor.OutcomeSuccess:
		ctx, cancelPersist := context.WithTimeout(context.Background(), persistTimeout)
		defer cancelPersist()
		if err := w.store.MarkCompleted(ctx, job.ID, res.Value); err != nil {
			w.logger.Error("failed to mark job completed",
				"worker_id", w.id, "job_id", job.ID.String(), "error", err.Error())
		}

	default: // failure or timeout count the same against retries
		if job.RetriesExhausted() {
			w.persistFailed(job, res.Err.Error())
			return
		}
		delay := w.strategy.Delay(handler.RetryDelay(), job.RetryCount+1)
		at := time.Now().UTC().Add(delay)

		ctx, cancelPersist := context.WithTimeout(context.Background(), persistTimeout)
		defer cancelPersist()
		if err := w.store.Reschedule(ctx, job.ID, at, res.Err.Error()); err != nil {
			w.logger.Error("failed to reschedule job",
				"worker_id", w.id, "job_id", job.ID.String(), "error", err.Error())
			return
		}
		w.logger.Warn("job rescheduled",
			"worker_id", w.id,
			"job_id", job.ID.String(),
			"job_type", job.JobType,
			"attempt", job.RetryCount+1,
			"max_retries", job.MaxRetries,
			"next_run", at)
	}
}

func (w *Worker) persistFailed(job *models.Job, errMsg string) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := w.store.MarkFailed(ctx, job.ID, errMsg); err != nil {
		w.logger.Error("failed to mark job failed",
			"worker_id", w.id, "job_id", job.ID.String(), "error", err.Error())
	}
}

// abort cancels the in-flight execution, if any. Called when a graceful
// shutdown overruns its grace period.
func (w *Worker) abort() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.abortCurrent != nil {
		w.logger.Warn("aborting in-flight job", "worker_id", w.id)
		w.abortCurrent()
	}
}
