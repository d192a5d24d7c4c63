package bgrunner

import (
	"context"
	"sync/atomic"
	"time"
)

// RecurringTask executes a function on a runner at a fixed period. After
// each run it re-enqueues itself with time.AfterFunc; rescheduling stops
// automatically once the runner completes or the task is stopped.
//
// An error returned by one occurrence is reported through the runner's
// TaskError event like any other task failure; it does not stop the
// recurrence, and the failed occurrence is not retried.
type RecurringTask struct {
	runner  *BackgroundTaskRunner[Task]
	period  time.Duration
	fn      func(ctx context.Context) error
	stopped atomic.Bool
}

// NewRecurringTask creates a recurring task on runner. Call Start to
// schedule the first occurrence.
func NewRecurringTask(runner *BackgroundTaskRunner[Task], period time.Duration, fn func(ctx context.Context) error) *RecurringTask {
	return &RecurringTask{runner: runner, period: period, fn: fn}
}

// Start enqueues the first occurrence immediately.
func (t *RecurringTask) Start() error {
	return t.runner.Add(t)
}

// Stop prevents any further occurrences. An occurrence already executing
// runs to completion.
func (t *RecurringTask) Stop() {
	t.stopped.Store(true)
}

// IsStopped reports whether Stop has been called.
func (t *RecurringTask) IsStopped() bool {
	return t.stopped.Load()
}

func (t *RecurringTask) IsAsync() bool { return true }

func (t *RecurringTask) Run() error { return t.RunAsync(context.Background()) }

func (t *RecurringTask) RunAsync(ctx context.Context) error {
	if t.stopped.Load() {
		return nil
	}
	err := t.fn(ctx)
	t.reschedule()
	return err
}

func (t *RecurringTask) reschedule() {
	if t.stopped.Load() || t.runner.IsCompleted() {
		return
	}
	time.AfterFunc(t.period, func() {
		if t.stopped.Load() {
			return
		}
		// Best effort: the runner may have completed since the timer fired.
		t.runner.TryAdd(t)
	})
}
