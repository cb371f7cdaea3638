package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fast() *Scheduler {
	s := New()
	s.tick = 5 * time.Millisecond
	return s
}

func TestRunsRepeatedly(t *testing.T) {
	s := fast()
	var runs atomic.Int32
	s.Every(10 * time.Millisecond).Name("tick").Run(func(context.Context) error {
		runs.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestWithoutOverlapping(t *testing.T) {
	s := fast()
	var running, peak atomic.Int32
	release := make(chan struct{})
	s.Every(time.Millisecond).WithoutOverlapping().Run(func(context.Context) error {
		n := running.Add(1)
		if n > peak.Load() {
			peak.Store(n)
		}
		<-release
		running.Add(-1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	time.Sleep(50 * time.Millisecond)
	close(release)
	assert.Equal(t, int32(1), peak.Load())
}

func TestFailingAndPanickingTasksKeepRunning(t *testing.T) {
	s := fast()
	var failed, panicked atomic.Int32
	s.Every(time.Millisecond).Run(func(context.Context) error {
		failed.Add(1)
		return errors.New("boom")
	})
	s.Every(time.Millisecond).WithoutOverlapping().Run(func(context.Context) error {
		panicked.Add(1)
		panic("boom")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	assert.Eventually(t, func() bool { return failed.Load() >= 2 && panicked.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestList(t *testing.T) {
	s := New()
	s.Daily().Name("failed-jobs:prune").Run(func(context.Context) error { return nil })
	s.Hourly().Run(func(context.Context) error { return nil })

	assert.Equal(t, []string{
		"failed-jobs:prune  [every 24h0m0s]",
		"task-2  [every 1h0m0s]",
	}, s.List())
}
