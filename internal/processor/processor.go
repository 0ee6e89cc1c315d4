// Package processor defines the pluggable per-job-type handlers, the
// registry that maps job types to them, and the executor that bounds a
// single handler invocation with a deadline.
package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/datatypes"
)

// Handler is the contract a job type implements. The scheduler treats the
// payload, result, and error opaquely; side effects and idempotence are the
// handler's responsibility (execution is at-least-once).
type Handler interface {
	JobType() string
	Timeout() time.Duration
	MaxRetries() int
	RetryDelay() time.Duration
	Process(ctx context.Context, payload datatypes.JSON) (datatypes.JSON, error)
}

// Options carries the per-type execution policy a handler declares.
type Options struct {
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultOptions mirrors the default worker policy: 5 minute timeout,
// 3 retries, 1 minute between attempts.
func DefaultOptions() Options {
	return Options{
		Timeout:    5 * time.Minute,
		MaxRetries: 3,
		RetryDelay: time.Minute,
	}
}

// Registry maps job type names to handlers. It is safe for concurrent use;
// registration happens at startup, lookups happen from every worker.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Add registers a handler. Registering the same job type twice is a
// programming error and is rejected.
func (r *Registry) Add(h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[h.JobType()]; exists {
		return fmt.Errorf("handler already registered for job type %q", h.JobType())
	}
	r.handlers[h.JobType()] = h
	return nil
}

// Get returns the handler for the given job type.
func (r *Registry) Get(jobType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[jobType]
	return h, ok
}

// Types returns all registered job types, sorted for stable logging.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// funcHandler adapts a typed handler function to the Handler interface.
type funcHandler struct {
	jobType string
	opts    Options
	fn      func(ctx context.Context, payload datatypes.JSON) (datatypes.JSON, error)
}

func (h *funcHandler) JobType() string           { return h.jobType }
func (h *funcHandler) Timeout() time.Duration    { return h.opts.Timeout }
func (h *funcHandler) MaxRetries() int           { return h.opts.MaxRetries }
func (h *funcHandler) RetryDelay() time.Duration { return h.opts.RetryDelay }
func (h *funcHandler) Process(ctx context.Context, payload datatypes.JSON) (datatypes.JSON, error) {
	return h.fn(ctx, payload)
}

// Register wires a typed handler function into the registry. The generic
// wrapper closes JSON unmarshal of the payload into T and JSON marshal of
// the result over the typed function, so the scheduler only ever sees the
// uniform Handler signature.
//
// Package-level because Go does not allow generic methods on non-generic
// receivers.
func Register[T any](r *Registry, jobType string, opts Options, fn func(ctx context.Context, payload T) (any, error)) error {
	wrapped := func(ctx context.Context, payload datatypes.JSON) (datatypes.JSON, error) {
		var t T
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &t); err != nil {
				return nil, fmt.Errorf("unmarshal payload for job type %q: %w", jobType, err)
			}
		}
		out, err := fn(ctx, t)
		if err != nil {
			return nil, err
		}
		if out == nil {
			return nil, nil
		}
		b, err := json.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("marshal result for job type %q: %w", jobType, err)
		}
		return datatypes.JSON(b), nil
	}

	return r.Add(&funcHandler{jobType: jobType, opts: opts, fn: wrapped})
}
