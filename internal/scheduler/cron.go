package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/datatypes"

	"github.com/nguyenhaitrieu10/jobworker/internal/config"
	"github.com/nguyenhaitrieu10/jobworker/internal/models"
	"github.com/nguyenhaitrieu10/jobworker/internal/processor"
)

// cronEntry pairs a cron definition with its parsed schedule and the next
// time it is due. Next-run state is in-memory only: after a restart every
// entry is recomputed from "now", which can skip at most one occurrence and
// never double-fires.
type cronEntry struct {
	def      config.CronJob
	schedule cron.Schedule
	next     time.Time
}

// cronDispatcher materializes due cron definitions into pending job rows.
type cronDispatcher struct {
	store    JobStore
	registry *processor.Registry
	entries  []*cronEntry
	tick     time.Duration
	logger   *slog.Logger
}

func newCronDispatcher(defs config.CronJobs, store JobStore, registry *processor.Registry, tick time.Duration, logger *slog.Logger) (*cronDispatcher, error) {
	d := &cronDispatcher{
		store:    store,
		registry: registry,
		tick:     tick,
		logger:   logger,
	}

	now := time.Now().UTC()
	for _, def := range defs {
		if !def.Enabled {
			continue
		}
		schedule, err := config.CronParser.Parse(def.Cron)
		if err != nil {
			return nil, err
		}
		d.entries = append(d.entries, &cronEntry{
			def:      def,
			schedule: schedule,
			next:     schedule.Next(now),
		})
	}
	return d, nil
}

// run checks for due entries once per tick until ctx is cancelled.
func (d *cronDispatcher) run(ctx context.Context) {
	d.logger.Info("cron dispatcher started", "entries", len(d.entries))
	defer d.logger.Info("cron dispatcher stopped")

	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.dispatchDue(ctx, time.Now().UTC())
		}
	}
}

// dispatchDue inserts one pending job per due entry. The next-run time only
// advances after a successful insert, so a store outage retries the same
// occurrence on the following tick instead of dropping it.
func (d *cronDispatcher) dispatchDue(ctx context.Context, now time.Time) {
	for _, entry := range d.entries {
		if now.Before(entry.next) {
			continue
		}

		job := d.materialize(entry, now)
		if err := d.store.Create(ctx, job); err != nil {
			d.logger.Error("failed to enqueue cron job",
				"cron", entry.def.Name, "job_type", entry.def.JobType, "error", err.Error())
			continue
		}

		d.logger.Info("cron job enqueued",
			"cron", entry.def.Name,
			"job_id", job.ID.String(),
			"job_type", entry.def.JobType,
			"next_run", entry.schedule.Next(now))
		entry.next = entry.schedule.Next(now)
	}
}

// materialize builds the pending job row for a due entry. Retry policy
// comes from the registered handler for the entry's job type.
func (d *cronDispatcher) materialize(entry *cronEntry, now time.Time) *models.Job {
	maxRetries := processor.DefaultOptions().MaxRetries
	if h, ok := d.registry.Get(entry.def.JobType); ok {
		maxRetries = h.MaxRetries()
	}

	return &models.Job{
		JobType:     entry.def.JobType,
		Status:      models.JobStatusPending,
		Payload:     datatypes.JSON(entry.def.Payload),
		MaxRetries:  maxRetries,
		ScheduledAt: now,
	}
}
