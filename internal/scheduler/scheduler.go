package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nguyenhaitrieu10/jobworker/internal/backoff"
	"github.com/nguyenhaitrieu10/jobworker/internal/config"
	"github.com/nguyenhaitrieu10/jobworker/internal/processor"
)

const (
	cronTickInterval    = time.Minute
	cleanupTickInterval = time.Hour
)

// Scheduler owns the worker pool plus the cron dispatcher and retention
// cleanup tasks. Cancellation is cooperative through a single context
// shared by every spawned goroutine; Shutdown escalates to hard-aborting
// in-flight jobs only after the caller's grace deadline passes.
type Scheduler struct {
	cfg      *config.Worker
	store    JobStore
	registry *processor.Registry
	logger   *slog.Logger

	workers []*Worker
	cron    *cronDispatcher

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New validates the configuration against the registry and builds the
// scheduler. Any configuration problem aborts startup before a single
// goroutine is spawned.
func New(cfg *config.Worker, store JobStore, registry *processor.Registry, logger *slog.Logger) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	jobTypes, err := resolveJobTypes(cfg, registry)
	if err != nil {
		return nil, err
	}
	for _, cj := range cfg.CronJobs {
		if !cj.Enabled {
			continue
		}
		if _, ok := registry.Get(cj.JobType); !ok {
			return nil, fmt.Errorf("cron job %q references unregistered job type %q", cj.Name, cj.JobType)
		}
	}

	executor := processor.NewExecutor(cfg.JobTimeout, logger)
	strategy := backoff.ForName(cfg.RetryBackoff)

	s := &Scheduler{
		cfg:      cfg,
		store:    store,
		registry: registry,
		logger:   logger,
	}

	for i := 1; i <= cfg.WorkerThreads; i++ {
		s.workers = append(s.workers, &Worker{
			id:           i,
			store:        store,
			registry:     registry,
			executor:     executor,
			strategy:     strategy,
			jobTypes:     jobTypes,
			batchSize:    cfg.BatchSize,
			pollInterval: cfg.PollInterval,
			storeBackoff: cfg.StoreBackoff,
			logger:       logger,
		})
	}

	if cfg.EnableCron {
		s.cron, err = newCronDispatcher(cfg.CronJobs, store, registry, cronTickInterval, logger)
		if err != nil {
			return nil, err
		}
	}

	return s, nil
}

// resolveJobTypes turns the configured filter into the concrete list used
// in the claim predicate. The wildcard expands to every registered type, so
// a job of an unregistered type is never claimed in the first place.
func resolveJobTypes(cfg *config.Worker, registry *processor.Registry) ([]string, error) {
	if cfg.ProcessesAll() {
		types := registry.Types()
		if len(types) == 0 {
			return nil, fmt.Errorf("job type wildcard configured but no handlers registered")
		}
		return types, nil
	}

	for _, t := range cfg.JobTypes {
		if _, ok := registry.Get(t); !ok {
			return nil, fmt.Errorf("configured job type %q has no registered handler", t)
		}
	}
	return cfg.JobTypes, nil
}

// Start spawns the worker loops and auxiliary tasks. It returns immediately.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.running = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.logger.Info("scheduler starting",
		"worker_threads", s.cfg.WorkerThreads,
		"poll_interval", s.cfg.PollInterval,
		"batch_size", s.cfg.BatchSize,
		"job_types", s.cfg.JobTypes)

	for _, w := range s.workers {
		s.wg.Add(1)
		go func(w *Worker) {
			defer s.wg.Done()
			w.Run(ctx)
		}(w)
	}

	if s.cron != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.cron.run(ctx)
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runCleanup(ctx)
	}()

	return nil
}

// Shutdown stops all tasks. Workers get until ctx's deadline to finish
// their in-flight jobs; past that, executions are hard-cancelled and their
// failure transitions still persist before the workers exit.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	s.logger.Info("scheduler shutting down")
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.Warn("shutdown grace period elapsed, aborting in-flight jobs")
		for _, w := range s.workers {
			w.abort()
		}
		<-done
		s.logger.Info("scheduler stopped after abort")
	}

	return nil
}

// runCleanup deletes terminal jobs older than the retention window.
func (s *Scheduler) runCleanup(ctx context.Context) {
	s.logger.Info("cleanup task started", "retention", s.cfg.CleanupAfter)
	defer s.logger.Info("cleanup task stopped")

	ticker := time.NewTicker(cleanupTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-s.cfg.CleanupAfter)
			deleted, err := s.store.DeleteOlderThan(ctx, cutoff)
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Error("cleanup failed", "error", err.Error())
				}
				continue
			}
			if deleted > 0 {
				s.logger.Info("cleaned up old jobs", "deleted", deleted, "cutoff", cutoff)
			}
		}
	}
}
