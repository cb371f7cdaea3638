// Package queue runs background jobs with retries.
//
// Jobs are JSON-encoded into an envelope carrying their type name, pushed to
// a Driver, and rebuilt on the worker side from a registered factory. A
// factory is a closure, so it can hand the job whatever dependencies it needs:
//
//	m := queue.NewManager(queue.NewMemoryDriver())
//	m.Register(jobs.OrderPlacedName, func() queue.Job {
//	    return &jobs.OrderPlacedJob{deps: d}
//	})
//	m.Dispatch(ctx, &jobs.OrderPlacedJob{OrderID: 7})
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/shashiranjanraj/kashvi-shop/pkg/logger"
	"github.com/shashiranjanraj/kashvi-shop/pkg/metrics"
)

// Job is the interface every queued job must satisfy.
type Job interface {
	// Handle executes the job. Return a non-nil error to signal failure.
	Handle(ctx context.Context) error
}

// Named lets a job choose its registry name. Jobs without it are keyed by
// their Go type (%T).
type Named interface {
	JobName() string
}

// FailedJob holds information about a job that failed.
type FailedJob struct {
	Type     string
	Job      Job
	Err      error
	FailedAt time.Time
	Attempts int
}

// Driver is the queue storage backend.
type Driver interface {
	Push(ctx context.Context, payload []byte) error
	// Pop blocks until a payload is available. A nil payload with a nil
	// error means the wait timed out.
	Pop(ctx context.Context) ([]byte, error)
}

// delayer is implemented by drivers that can schedule jobs natively.
type delayer interface {
	PushDelayed(ctx context.Context, payload []byte, delay time.Duration) error
}

// promoter is implemented by drivers that need a background loop while
// workers are running.
type promoter interface {
	Promote(ctx context.Context)
}

// ------------------- Manager -------------------

// Manager is the central queue hub.
type Manager struct {
	mu       sync.RWMutex
	driver   Driver
	registry map[string]func() Job // type name → constructor
	failed   []FailedJob
	maxRetry int
	backoff  func(attempt int) time.Duration
	store    FailedJobStore
}

// NewManager returns a manager on driver with three attempts and linear
// one-second backoff.
func NewManager(driver Driver) *Manager {
	return &Manager{
		driver:   driver,
		registry: map[string]func() Job{},
		maxRetry: 3,
		backoff:  func(attempt int) time.Duration { return time.Duration(attempt) * time.Second },
	}
}

// SetMaxRetry sets how many times a failing job is attempted.
func (m *Manager) SetMaxRetry(n int) {
	if n < 1 {
		n = 1
	}
	m.mu.Lock()
	m.maxRetry = n
	m.mu.Unlock()
}

// SetBackoff replaces the delay applied after a failed attempt.
func (m *Manager) SetBackoff(fn func(attempt int) time.Duration) {
	m.mu.Lock()
	m.backoff = fn
	m.mu.Unlock()
}

// Register makes a job type available for deserialization by name.
// Call this once at boot for every job type you define.
func (m *Manager) Register(name string, factory func() Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry[name] = factory
}

// ------------------- Dispatch -------------------

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// TypeName is the registry key used for job.
func TypeName(job Job) string {
	if n, ok := job.(Named); ok {
		return n.JobName()
	}
	return fmt.Sprintf("%T", job)
}

// Dispatch pushes job onto the queue immediately.
func (m *Manager) Dispatch(ctx context.Context, job Job) error {
	env, err := encode(job)
	if err != nil {
		return err
	}
	return m.currentDriver().Push(ctx, env)
}

// DispatchAfter pushes job after delay. Drivers without native scheduling
// get a timer goroutine, which does not survive a restart.
func (m *Manager) DispatchAfter(ctx context.Context, job Job, delay time.Duration) error {
	env, err := encode(job)
	if err != nil {
		return err
	}
	d := m.currentDriver()
	if dd, ok := d.(delayer); ok {
		return dd.PushDelayed(ctx, env, delay)
	}
	time.AfterFunc(delay, func() {
		if err := d.Push(context.Background(), env); err != nil {
			logger.Error("queue: delayed dispatch failed", "type", TypeName(job), "error", err)
		}
	})
	return nil
}

func encode(job Job) ([]byte, error) {
	typeName := TypeName(job)

	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("queue: marshal job %s: %w", typeName, err)
	}

	env, err := json.Marshal(envelope{Type: typeName, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("queue: marshal envelope: %w", err)
	}
	return env, nil
}

func (m *Manager) currentDriver() Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.driver
}

// ------------------- Worker -------------------

// StartWorkers launches n concurrent workers that process jobs from the queue.
// The workers run until ctx is cancelled.
func (m *Manager) StartWorkers(ctx context.Context, n int) {
	if n < 1 {
		n = 1
	}
	if p, ok := m.currentDriver().(promoter); ok {
		go p.Promote(ctx)
	}
	for i := 0; i < n; i++ {
		go m.work(ctx)
	}
	logger.Info("queue: workers started", "count", n)
}

func (m *Manager) work(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		raw, err := m.currentDriver().Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("queue: pop failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		if raw == nil {
			continue
		}

		m.process(ctx, raw)
	}
}

func (m *Manager) process(ctx context.Context, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.Error("queue: bad envelope", "error", err)
		return
	}

	m.mu.RLock()
	factory, ok := m.registry[env.Type]
	m.mu.RUnlock()

	if !ok {
		logger.Warn("queue: unregistered job type", "type", env.Type)
		return
	}

	job := factory()
	if err := json.Unmarshal(env.Payload, job); err != nil {
		logger.Error("queue: unmarshal payload", "type", env.Type, "error", err)
		return
	}

	m.runWithRetry(ctx, job, env.Type)
}

func (m *Manager) runWithRetry(ctx context.Context, job Job, typeName string) {
	m.mu.RLock()
	maxRetry, backoff := m.maxRetry, m.backoff
	m.mu.RUnlock()

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= maxRetry; attempt++ {
		err := job.Handle(ctx)
		if err == nil {
			metrics.RecordQueueJob(typeName, "success", start)
			logger.Debug("queue: job processed", "type", typeName, "attempt", attempt)
			return
		}
		lastErr = err
		logger.Warn("queue: job failed", "type", typeName, "attempt", attempt, "error", err)
		if attempt == maxRetry {
			break
		}
		select {
		case <-ctx.Done():
			attempt = maxRetry
		case <-time.After(backoff(attempt)):
		}
	}

	metrics.RecordQueueJob(typeName, "failed", start)
	m.persistFailed(ctx, job, typeName, lastErr, maxRetry)
	logger.Error("queue: job exhausted retries", "type", typeName, "error", lastErr)
}

// FailedJobs returns a snapshot of all failed jobs seen by this process.
func (m *Manager) FailedJobs() []FailedJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]FailedJob, len(m.failed))
	copy(out, m.failed)
	return out
}
