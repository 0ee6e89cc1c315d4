package processor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/datatypes"

	"github.com/nguyenhaitrieu10/jobworker/internal/models"
)

// Outcome classifies a single handler invocation.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
	OutcomeTimedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeTimedOut:
		return "timed_out"
	}
	return "unknown"
}

// Result is the terminal outcome of one execution attempt. Value is set
// only on success; Err only on failure or timeout.
type Result struct {
	Outcome Outcome
	Value   datatypes.JSON
	Err     error
}

// ErrTimedOut is recorded on the job when the handler overran its deadline.
var ErrTimedOut = errors.New("job execution timed out")

// Executor bounds one handler invocation with a deadline and classifies
// the outcome.
type Executor struct {
	defaultTimeout time.Duration
	logger         *slog.Logger
}

func NewExecutor(defaultTimeout time.Duration, logger *slog.Logger) *Executor {
	return &Executor{defaultTimeout: defaultTimeout, logger: logger}
}

// Execute races the handler against its declared timeout. When the deadline
// elapses first, the handler goroutine is cancelled through its context and
// its eventual result is discarded; delivery is therefore at-least-once and
// handlers must tolerate duplicate side effects.
func (e *Executor) Execute(ctx context.Context, h Handler, job *models.Job) Result {
	timeout := h.Timeout()
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	type procReturn struct {
		value datatypes.JSON
		err   error
	}
	done := make(chan procReturn, 1)
	go func() {
		value, err := h.Process(runCtx, job.Payload)
		done <- procReturn{value: value, err: err}
	}()

	var res Result
	select {
	case ret := <-done:
		if ret.err != nil {
			res = Result{Outcome: OutcomeFailure, Err: ret.err}
		} else {
			res = Result{Outcome: OutcomeSuccess, Value: ret.value}
		}
	case <-runCtx.Done():
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			res = Result{Outcome: OutcomeTimedOut, Err: ErrTimedOut}
		} else {
			// Parent cancellation (shutdown abort). Treated as a plain
			// failure so the retry transition still runs.
			res = Result{Outcome: OutcomeFailure, Err: runCtx.Err()}
		}
	}

	elapsed := time.Since(start)

	attrs := []any{
		"job_id", job.ID.String(),
		"job_type", job.JobType,
		"retry_count", job.RetryCount,
		"max_retries", job.MaxRetries,
		"elapsed", elapsed,
	}
	switch res.Outcome {
	case OutcomeSuccess:
		e.logger.Info("job completed", attrs...)
	case OutcomeTimedOut:
		e.logger.Error("job timed out", append(attrs, "timeout", timeout)...)
	default:
		e.logger.Error("job failed", append(attrs, "error", res.Err.Error())...)
	}

	return res
}
