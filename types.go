package bgrunner

import "github.com/taskhost/bgrunner/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the bgrunner package for most use cases.

// Task is the unit of work executed by a runner.
type Task = core.Task

// AsyncTask is a Task with cancellation-aware asynchronous execution.
type AsyncTask = core.AsyncTask

// DisposableTask is a Task whose resources are released after execution.
type DisposableTask = core.DisposableTask

// LatchedTask is a Task that defers its own execution behind a latch.
type LatchedTask = core.LatchedTask

// Latch is a one-shot, resettable gate for LatchedTask implementations.
type Latch = core.Latch

// TaskState describes a task's lifecycle position.
type TaskState = core.TaskState

// Task state constants
const (
	TaskRunnable TaskState = core.TaskRunnable
	TaskLatched  TaskState = core.TaskLatched
	TaskDisposed TaskState = core.TaskDisposed
)

// BackgroundTaskRunner executes tasks sequentially on a dedicated pump.
type BackgroundTaskRunner[T Task] = core.BackgroundTaskRunner[T]

// Options control runner behavior.
type Options = core.Options

// RunnerConfig holds the runner's collaborators.
type RunnerConfig = core.RunnerConfig

// RunnerStats is a point-in-time observability snapshot.
type RunnerStats = core.RunnerStats

// TaskExecutionRecord captures one task execution for diagnostics.
type TaskExecutionRecord = core.TaskExecutionRecord

// Metrics is the sink for runner execution metrics.
type Metrics = core.Metrics

// Logger is the structured logging interface consumed by runners.
type Logger = core.Logger

// Field is a key-value pair for structured logging.
type Field = core.Field

// HostRegistry is the external process-lifecycle manager.
type HostRegistry = core.HostRegistry

// RegisteredObject receives two-phase stop notifications from the host.
type RegisteredObject = core.RegisteredObject

// SingletonOwner gates whether this process may run background work.
type SingletonOwner = core.SingletonOwner

// Common errors
var (
	ErrCompleted = core.ErrCompleted
	ErrNilTask   = core.ErrNilTask
)

// Convenience constructors re-exported from core
var (
	NewLatch              = core.NewLatch
	NewSimpleHostRegistry = core.NewSimpleHostRegistry
	NewDefaultLogger      = core.NewDefaultLogger
	NewNoOpLogger         = core.NewNoOpLogger
	DefaultRunnerConfig   = core.DefaultRunnerConfig
	F                     = core.F
)

// New creates a BackgroundTaskRunner for task type T. cfg may be nil, in
// which case default collaborators apply.
func New[T Task](name string, opts Options, cfg *RunnerConfig) *BackgroundTaskRunner[T] {
	return core.NewBackgroundTaskRunner[T](name, opts, cfg)
}

// WaitAny blocks until one of the signals fires and returns its index.
func WaitAny(signals ...<-chan struct{}) int {
	return core.WaitAny(signals...)
}
