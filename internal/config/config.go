package config

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sethvargo/go-envconfig"
)

// Wildcard in JobTypes means "process every registered job type".
const Wildcard = "*"

// CronJob is one periodic job definition. Due entries are materialized into
// pending job rows by the cron dispatcher.
type CronJob struct {
	Name    string          `json:"name"`
	Cron    string          `json:"cron"`
	JobType string          `json:"job_type"`
	Payload json.RawMessage `json:"payload"`
	Enabled bool            `json:"enabled"`
}

// CronJobs decodes from a JSON array held in a single env var.
type CronJobs []CronJob

var _ envconfig.Decoder = (*CronJobs)(nil)

func (c *CronJobs) EnvDecode(val string) error {
	if strings.TrimSpace(val) == "" {
		*c = nil
		return nil
	}
	if err := json.Unmarshal([]byte(val), c); err != nil {
		return fmt.Errorf("WORKER_CRON_JOBS must be a JSON array: %w", err)
	}
	return nil
}

// Worker holds the scheduler configuration. It is static for the scheduler's
// lifetime; every field is read at startup only.
type Worker struct {
	WorkerThreads int           `env:"WORKER_THREADS,default=4"`
	PollInterval  time.Duration `env:"WORKER_POLL_INTERVAL,default=5s"`
	BatchSize     int           `env:"WORKER_BATCH_SIZE,default=10"`
	JobTimeout    time.Duration `env:"WORKER_JOB_TIMEOUT,default=5m"`
	MaxRetries    int           `env:"WORKER_MAX_RETRIES,default=3"`
	RetryDelay    time.Duration `env:"WORKER_RETRY_DELAY,default=1m"`
	RetryBackoff  string        `env:"WORKER_RETRY_BACKOFF,default=fixed"`
	StoreBackoff  time.Duration `env:"WORKER_STORE_BACKOFF,default=5s"`
	JobTypes      []string      `env:"WORKER_JOB_TYPES,default=*"`
	EnableCron    bool          `env:"WORKER_ENABLE_CRON,default=true"`
	CronJobs      CronJobs      `env:"WORKER_CRON_JOBS"`
	CleanupAfter  time.Duration `env:"WORKER_CLEANUP_AFTER,default=720h"`
	ShutdownGrace time.Duration `env:"WORKER_SHUTDOWN_GRACE,default=30s"`
}

// CronParser accepts standard 5-field expressions plus descriptors
// like "@hourly" and "@every 30s".
var CronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// LoadWorkerFromEnv reads and validates the worker configuration.
func LoadWorkerFromEnv(ctx context.Context) (*Worker, error) {
	var cfg Worker
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks every recognized option and reports all problems at once.
func (c *Worker) Validate() error {
	var errors []string

	if c.WorkerThreads <= 0 {
		errors = append(errors, "WORKER_THREADS must be positive")
	}
	if c.PollInterval <= 0 {
		errors = append(errors, "WORKER_POLL_INTERVAL must be positive")
	}
	if c.BatchSize <= 0 {
		errors = append(errors, "WORKER_BATCH_SIZE must be positive")
	}
	if c.JobTimeout <= 0 {
		errors = append(errors, "WORKER_JOB_TIMEOUT must be positive")
	}
	if c.MaxRetries < 0 {
		errors = append(errors, "WORKER_MAX_RETRIES must be non-negative")
	}
	if c.RetryDelay <= 0 {
		errors = append(errors, "WORKER_RETRY_DELAY must be positive")
	}
	if c.RetryBackoff != "fixed" && c.RetryBackoff != "exponential" {
		errors = append(errors, "WORKER_RETRY_BACKOFF must be one of: fixed, exponential")
	}
	if c.StoreBackoff <= 0 {
		errors = append(errors, "WORKER_STORE_BACKOFF must be positive")
	}
	if len(c.JobTypes) == 0 {
		errors = append(errors, "WORKER_JOB_TYPES must not be empty")
	}
	if c.CleanupAfter <= 0 {
		errors = append(errors, "WORKER_CLEANUP_AFTER must be positive")
	}

	for _, cj := range c.CronJobs {
		if cj.Name == "" {
			errors = append(errors, "cron job name is required")
			continue
		}
		if cj.JobType == "" {
			errors = append(errors, fmt.Sprintf("cron job %q: job_type is required", cj.Name))
		}
		if _, err := CronParser.Parse(cj.Cron); err != nil {
			errors = append(errors, fmt.Sprintf("cron job %q: invalid expression %q: %v", cj.Name, cj.Cron, err))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}
	return nil
}

// ProcessesAll reports whether the wildcard job type filter is in effect.
func (c *Worker) ProcessesAll() bool {
	return slices.Contains(c.JobTypes, Wildcard)
}

// ShouldProcess reports whether jobs of the given type are in scope for
// this scheduler instance.
func (c *Worker) ShouldProcess(jobType string) bool {
	return c.ProcessesAll() || slices.Contains(c.JobTypes, jobType)
}
