package core

import (
	"context"
	"sync"
)

// Task is the unit of work executed by a BackgroundTaskRunner.
//
// A task declares its execution mode through IsAsync. Synchronous tasks run
// to completion on the pump goroutine and block it for their duration; they
// cannot be cooperatively cancelled mid-execution. Asynchronous tasks must
// also implement AsyncTask and observe the cancellation context on a
// best-effort basis.
type Task interface {
	// IsAsync selects the execution path. When true, the runner calls
	// RunAsync (the task must implement AsyncTask); otherwise Run.
	IsAsync() bool

	// Run executes the task synchronously. It may block the pump.
	Run() error
}

// AsyncTask is a Task that executes asynchronously with cancellation support.
type AsyncTask interface {
	Task

	// RunAsync executes the task. The context is cancelled when the current
	// task is cancelled or the runner is forcibly shut down; implementations
	// should return promptly once it is done.
	RunAsync(ctx context.Context) error
}

// DisposableTask is a Task holding resources that must be released after
// execution. The pump calls Dispose exactly once per task, after the task has
// run (or after it has been discarded without running), unless the task is a
// LatchedTask that is latched again after execution.
type DisposableTask interface {
	Dispose()
}

// LatchedTask is a Task that can defer its own execution until an external
// condition releases it.
//
// While IsLatched reports true, the pump does not execute the task; instead
// it waits on Latch, racing it against queue closure and task cancellation.
// If shutdown wins the race, the task runs anyway when RunsOnShutdown is
// true, and is otherwise disposed without running.
//
// A task found latched again after execution is kept alive (not disposed) so
// its owner can inspect or reuse it, but the pump never re-enqueues it;
// re-insertion into the queue is the task's own responsibility.
type LatchedTask interface {
	Task

	// Latch returns a channel that is closed when the task becomes runnable.
	Latch() <-chan struct{}

	// IsLatched reports whether the task is currently deferring execution.
	IsLatched() bool

	// RunsOnShutdown reports whether the task should still execute when the
	// runner shuts down before the latch resolves.
	RunsOnShutdown() bool
}

// TaskState describes the lifecycle position of a task as observed by the
// pump after execution.
type TaskState int

const (
	// TaskRunnable means the task is eligible for execution (or has run and
	// holds no latch).
	TaskRunnable TaskState = iota

	// TaskLatched means the task is deferring execution behind its latch.
	TaskLatched

	// TaskDisposed means the task's resources have been released.
	TaskDisposed
)

func (s TaskState) String() string {
	switch s {
	case TaskRunnable:
		return "runnable"
	case TaskLatched:
		return "latched"
	case TaskDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// taskStateOf derives the state of a task. The pump evaluates this once,
// post-execution, to decide whether to dispose the task.
func taskStateOf(task Task) TaskState {
	if lt, ok := task.(LatchedTask); ok && lt.IsLatched() {
		return TaskLatched
	}
	return TaskRunnable
}

// Latch is a one-shot, resettable gate for LatchedTask implementations.
// The zero value is not usable; create one with NewLatch.
type Latch struct {
	mu      sync.Mutex
	ch      chan struct{}
	latched bool
}

// NewLatch creates a Latch in the latched state.
func NewLatch() *Latch {
	return &Latch{ch: make(chan struct{}), latched: true}
}

// Wait returns the channel that is closed when the latch is released.
func (l *Latch) Wait() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ch
}

// IsLatched reports whether the latch is currently holding.
func (l *Latch) IsLatched() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.latched
}

// Release opens the latch, resuming any waiter. Releasing an open latch is a
// no-op.
func (l *Latch) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.latched {
		return
	}
	l.latched = false
	close(l.ch)
}

// Reset re-arms the latch after a release, so the owning task can defer
// itself again. Resetting a held latch is a no-op.
func (l *Latch) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.latched {
		return
	}
	l.latched = true
	l.ch = make(chan struct{})
}
