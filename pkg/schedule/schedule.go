// Package schedule runs periodic maintenance tasks inside the serve process.
//
//	s := schedule.New()
//	s.Daily().Name("failed-jobs:prune").WithoutOverlapping().Run(prune)
//	s.Start(ctx)
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shashiranjanraj/kashvi-shop/pkg/logger"
)

// Task is one unit of scheduled work. A returned error is logged.
type Task func(ctx context.Context) error

type entry struct {
	id        string
	interval  time.Duration
	task      Task
	noOverlap bool

	mu      sync.Mutex
	lastRun time.Time
	running bool
}

// Scheduler holds registered entries and dispatches the due ones on every
// tick.
type Scheduler struct {
	mu      sync.Mutex
	entries []*entry
	tick    time.Duration
}

// New returns a scheduler that checks for due tasks once a second.
func New() *Scheduler { return &Scheduler{tick: time.Second} }

// Entry is a fluent builder for a single task before it is registered.
type Entry struct {
	s *Scheduler
	e *entry
}

// Every schedules a task every d.
func (s *Scheduler) Every(d time.Duration) *Entry {
	return &Entry{s: s, e: &entry{interval: d}}
}

func (s *Scheduler) Hourly() *Entry { return s.Every(time.Hour) }
func (s *Scheduler) Daily() *Entry  { return s.Every(24 * time.Hour) }

// Name gives the entry an identifier for logs and List.
func (b *Entry) Name(id string) *Entry {
	b.e.id = id
	return b
}

// WithoutOverlapping skips a run while the previous one is still executing.
func (b *Entry) WithoutOverlapping() *Entry {
	b.e.noOverlap = true
	return b
}

// Run registers task. It first runs on the tick after Start.
func (b *Entry) Run(task Task) {
	b.e.task = task
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	if b.e.id == "" {
		b.e.id = fmt.Sprintf("task-%d", len(b.s.entries)+1)
	}
	b.s.entries = append(b.s.entries, b.e)
}

// Start runs the dispatch loop in the background until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	go s.run(ctx)
	logger.Info("schedule: scheduler started", "tasks", len(s.List()))
}

func (s *Scheduler) run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("schedule: scheduler stopped")
			return
		case now := <-ticker.C:
			s.mu.Lock()
			current := append([]*entry(nil), s.entries...)
			s.mu.Unlock()

			for _, e := range current {
				if e.due(now) {
					e.dispatch(ctx)
				}
			}
		}
	}
}

func (e *entry) due(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastRun.IsZero() || now.Sub(e.lastRun) >= e.interval
}

func (e *entry) dispatch(ctx context.Context) {
	e.mu.Lock()
	if e.noOverlap && e.running {
		e.mu.Unlock()
		logger.Warn("schedule: skipping overlapping task", "id", e.id)
		return
	}
	e.running = true
	e.lastRun = time.Now()
	e.mu.Unlock()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("schedule: task panicked", "id", e.id, "panic", r)
			}
			e.mu.Lock()
			e.running = false
			e.mu.Unlock()
		}()

		logger.Debug("schedule: running task", "id", e.id)
		if err := e.task(ctx); err != nil {
			logger.Error("schedule: task failed", "id", e.id, "error", err)
		}
	}()
}

// List describes the registered entries, for the CLI.
func (s *Scheduler) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, fmt.Sprintf("%s  [every %s]", e.id, e.interval))
	}
	return out
}
