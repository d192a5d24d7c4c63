// Package bgrunner provides a host-aware background task runner for Go.
//
// This library implements a generic, queue-driven scheduler that executes
// synchronous or asynchronous units of work on a dedicated pump goroutine,
// supports latched tasks that defer themselves until an external condition
// releases them, and shuts down cleanly when the hosting process is torn
// down: queued work is either drained or explicitly discarded, no task runs
// twice, and the shutdown path never blocks indefinitely.
//
// # Quick Start
//
// Create a runner and add work:
//
//	runner := bgrunner.New[bgrunner.Task]("indexer", bgrunner.Options{KeepAlive: true}, nil)
//	if err := runner.Add(task); err != nil {
//		// runner has already completed
//	}
//
// Tear it down gracefully, then wait for full termination:
//
//	runner.Stop(false)
//	_ = runner.WaitTerminated(context.Background())
//
// # Key Concepts
//
// BackgroundTaskRunner: the top-level entity, generic over task type T.
// Exactly one pump goroutine is active per runner; tasks execute in FIFO
// order and never overlap.
//
// LatchedTask: a task that holds the pump behind its latch until released.
// When shutdown begins before the latch resolves, the task either runs
// anyway (RunsOnShutdown) or is disposed without running.
//
// Two-phase stop: a host lifecycle manager calls Stop(false) to begin a
// graceful drain and Stop(true) to force completion. The Terminating and
// Terminated events each fire exactly once.
//
// # Failure Model
//
// A task that returns an error or panics is reported through the TaskError
// event and a log line; the pump survives and moves to the next task.
// Cancellation is not failure: a task that unwinds with its context's
// cancellation error is reported through TaskCancelled instead. Event
// handlers are likewise isolated: one panicking subscriber cannot affect
// others or the pump.
//
// # Observability
//
// Runners expose Stats() snapshots and a ring buffer of recent executions,
// and accept a Metrics sink. The observability/prometheus package adapts
// both to Prometheus collectors.
package bgrunner
