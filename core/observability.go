package core

import "time"

// Metrics defines the interface for collecting runner execution metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// All methods are optional; implementations should handle nil receivers gracefully.
// Methods should be non-blocking and fast to avoid impacting task execution performance.
type Metrics interface {
	// RecordTaskDuration records how long a task took to execute.
	RecordTaskDuration(runnerName string, duration time.Duration)

	// RecordTaskError records that a task returned an error or panicked.
	RecordTaskError(runnerName string)

	// RecordTaskCancelled records that a task was discarded without running.
	RecordTaskCancelled(runnerName string)

	// RecordTaskRejected records that a task was rejected (e.g., after shutdown).
	RecordTaskRejected(runnerName string, reason string)

	// RecordQueueDepth records the current queue depth.
	RecordQueueDepth(runnerName string, depth int)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

// RecordTaskDuration is a no-op.
func (m *NilMetrics) RecordTaskDuration(runnerName string, duration time.Duration) {}

// RecordTaskError is a no-op.
func (m *NilMetrics) RecordTaskError(runnerName string) {}

// RecordTaskCancelled is a no-op.
func (m *NilMetrics) RecordTaskCancelled(runnerName string) {}

// RecordTaskRejected is a no-op.
func (m *NilMetrics) RecordTaskRejected(runnerName string, reason string) {}

// RecordQueueDepth is a no-op.
func (m *NilMetrics) RecordQueueDepth(runnerName string, depth int) {}

// RunnerStats represents runtime observability state for a runner.
type RunnerStats struct {
	Name        string
	Pending     int
	Running     bool
	Completed   bool
	Terminating bool
	Terminated  bool
	Executed    int64
	Failed      int64
	Cancelled   int64
	Rejected    int64
	LastTaskAt  time.Time
}
