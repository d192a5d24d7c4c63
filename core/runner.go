package core

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// shutdownGracePeriod is how long a forced shutdown lets the queue closure
// take effect naturally before triggering the cancellation signal.
const shutdownGracePeriod = 100 * time.Millisecond

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// BackgroundTaskRunner executes tasks of type T sequentially on a dedicated
// pump goroutine.
//
// Producers enqueue work with Add or TryAdd; the pump dequeues in FIFO order,
// resolves latches, executes, and loops. Exactly one pump is active per
// runner at a time. The runner shuts down in two phases: a graceful phase
// that stops admission and drains the queue, and a forced phase that
// additionally cancels the in-flight task's context. Stop implements the
// host-termination handshake of RegisteredObject.
//
// Task-level failures are reported through the TaskError event and a log
// line; they never terminate the pump.
type BackgroundTaskRunner[T Task] struct {
	name    string
	opts    Options
	logger  Logger
	metrics Metrics
	host    HostRegistry

	events  *runnerEvents[T]
	queue   *taskQueue[T]
	history executionHistory

	// mu guards isRunning, pumpDone, shutdownCancel, taskCancel, terminating
	// and lastTaskAt. Add, Start and Shutdown share it so that enqueueing
	// and launching a pump are atomic with respect to concurrent shutdown.
	mu             sync.Mutex
	isRunning      bool
	pumpDone       chan struct{}
	shutdownCancel context.CancelFunc
	taskCancel     context.CancelFunc
	terminating    bool
	lastTaskAt     time.Time

	// completed is polled on hot paths outside mu; writes happen under mu.
	completed  atomic.Bool
	terminated atomic.Bool

	terminatingOnce sync.Once
	terminatedOnce  sync.Once
	terminatedCh    chan struct{}

	executed  atomic.Int64
	failed    atomic.Int64
	cancelled atomic.Int64
	rejected  atomic.Int64
}

// NewBackgroundTaskRunner creates a runner. cfg may be nil, in which case
// defaults apply (DefaultLogger, NilMetrics, AlwaysOwner).
//
// When the configured SingletonOwner denies registration, this process is
// not allowed to run background work: the runner starts pre-completed and
// pre-terminated and every Add fails with ErrCompleted.
func NewBackgroundTaskRunner[T Task](name string, opts Options, cfg *RunnerConfig) *BackgroundTaskRunner[T] {
	c := cfg.withDefaults()

	r := &BackgroundTaskRunner[T]{
		name:         name,
		opts:         opts,
		logger:       NewPrefixLogger(fmt.Sprintf("[runner %s] ", name), c.Logger),
		metrics:      c.Metrics,
		host:         c.Host,
		queue:        newTaskQueue[T](),
		history:      newExecutionHistory(c.HistoryCapacity),
		terminatedCh: make(chan struct{}),
	}
	r.events = newRunnerEvents[T](r.logger)

	if !c.Owner.Register(nil, func() { r.Stop(false) }) {
		r.completed.Store(true)
		r.queue.Close()
		r.terminatingOnce.Do(func() { r.terminating = true })
		r.terminatedOnce.Do(func() {
			r.terminated.Store(true)
			close(r.terminatedCh)
		})
		r.logger.Info("singleton ownership denied; runner starts completed")
		return r
	}

	if opts.Hosted && r.host != nil {
		r.host.RegisterObject(r)
	}
	if opts.AutoStart {
		_ = r.Start()
	}
	return r
}

// Name returns the runner's name.
func (r *BackgroundTaskRunner[T]) Name() string {
	return r.name
}

// IsRunning reports whether a pump is currently active.
func (r *BackgroundTaskRunner[T]) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isRunning
}

// IsCompleted reports whether shutdown has begun. Once true, no new tasks
// are accepted.
func (r *BackgroundTaskRunner[T]) IsCompleted() bool {
	return r.completed.Load()
}

// IsTerminating reports whether the host-termination handshake has begun.
func (r *BackgroundTaskRunner[T]) IsTerminating() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.terminating
}

// IsTerminated reports whether the runner has fully terminated.
func (r *BackgroundTaskRunner[T]) IsTerminated() bool {
	return r.terminated.Load()
}

// TaskCount returns the number of enqueued-but-not-yet-dequeued tasks.
// Advisory: it may be stale under concurrent access.
func (r *BackgroundTaskRunner[T]) TaskCount() int {
	return r.queue.Len()
}

// Add enqueues a task and starts the pump if it is not running. It returns
// ErrCompleted once shutdown has begun: submitting work to a completed
// runner is a programming error.
func (r *BackgroundTaskRunner[T]) Add(task T) error {
	if any(task) == nil {
		return ErrNilTask
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.completed.Load() {
		r.rejected.Add(1)
		r.metrics.RecordTaskRejected(r.name, "completed")
		return ErrCompleted
	}

	r.queue.Enqueue(task)
	r.metrics.RecordQueueDepth(r.name, r.queue.Len())
	r.logger.Debug("task added", F("pending", r.queue.Len()))
	r.startLocked()
	return nil
}

// TryAdd enqueues a task like Add but reports failure instead of returning
// an error. It never fails for any reason other than completion or a nil
// task.
func (r *BackgroundTaskRunner[T]) TryAdd(task T) bool {
	if any(task) == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.completed.Load() {
		r.rejected.Add(1)
		r.metrics.RecordTaskRejected(r.name, "completed")
		r.logger.Debug("task rejected; runner completed")
		return false
	}

	r.queue.Enqueue(task)
	r.metrics.RecordQueueDepth(r.name, r.queue.Len())
	r.startLocked()
	return true
}

// Start launches the pump. It is idempotent while running and returns
// ErrCompleted once shutdown has begun.
func (r *BackgroundTaskRunner[T]) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.completed.Load() {
		return ErrCompleted
	}
	if r.isRunning {
		return nil
	}
	r.startLocked()
	return nil
}

// startLocked allocates a fresh shutdown signal and launches the pump.
// Callers must hold mu and have checked the completed flag.
func (r *BackgroundTaskRunner[T]) startLocked() {
	if r.isRunning {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	r.shutdownCancel = cancel
	r.pumpDone = done
	r.isRunning = true
	r.logger.Debug("pump starting")

	go r.pump(ctx, cancel, done)
}

// CancelCurrentTask triggers the cancellation signal scoped to the task
// currently executing. Queued tasks are unaffected. It returns ErrCompleted
// once shutdown has begun, and is a no-op when nothing is running.
func (r *BackgroundTaskRunner[T]) CancelCurrentTask() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.completed.Load() {
		return ErrCompleted
	}
	if r.taskCancel != nil {
		r.taskCancel()
	}
	return nil
}

// Shutdown stops the runner. Admission stops immediately; already-queued
// tasks drain normally. With force, the shutdown cancellation signal is
// triggered after a short grace period, interrupting the in-flight task's
// cooperative cancellation and preventing further dequeues. With wait, the
// call blocks until the pump has fully exited.
func (r *BackgroundTaskRunner[T]) Shutdown(force, wait bool) {
	r.mu.Lock()
	if !r.completed.Load() {
		r.completed.Store(true)
		r.logger.Info("shutting down", F("force", force))
	}
	r.queue.Close()
	pump := r.pumpDone
	cancel := r.shutdownCancel
	r.mu.Unlock()

	if force && cancel != nil {
		// Let the queue closure drain the pump's wait naturally before
		// interrupting the in-flight task.
		time.AfterFunc(shutdownGracePeriod, cancel)
	}
	if wait && pump != nil {
		<-pump
	}
}

// Stop implements the host-termination handshake (RegisteredObject).
//
// The host calls Stop(false) first: the runner fires Terminating once,
// begins a graceful shutdown, and fires Terminated asynchronously once the
// pump exits. A subsequent Stop(true) forces shutdown, blocks until the pump
// has exited and fires Terminated synchronously. Terminated always implies
// unregistration from the host.
func (r *BackgroundTaskRunner[T]) Stop(immediate bool) {
	r.fireTerminating()

	if !immediate {
		r.logger.Info("host requested graceful stop")
		r.Shutdown(false, false)

		r.mu.Lock()
		pump := r.pumpDone
		r.mu.Unlock()

		// Attach a continuation rather than blocking the host's thread.
		go func() {
			if pump != nil {
				<-pump
			}
			r.terminate()
		}()
		return
	}

	r.logger.Info("host requested immediate stop")
	r.Shutdown(true, true)
	r.terminate()
}

// Close forces shutdown without waiting. It implements io.Closer so a runner
// can sit on a teardown path alongside other resources.
func (r *BackgroundTaskRunner[T]) Close() error {
	r.Shutdown(true, false)
	return nil
}

// Stopped returns a channel that is closed once the runner is idle (no pump
// active). When no pump has ever run, it is already closed.
func (r *BackgroundTaskRunner[T]) Stopped() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pumpDone != nil {
		return r.pumpDone
	}
	return closedChan
}

// Terminated returns a one-shot channel that is closed at termination.
func (r *BackgroundTaskRunner[T]) Terminated() <-chan struct{} {
	return r.terminatedCh
}

// WaitStopped blocks until the runner goes idle or ctx is done.
func (r *BackgroundTaskRunner[T]) WaitStopped(ctx context.Context) error {
	select {
	case <-r.Stopped():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitTerminated blocks until the runner has terminated or ctx is done.
func (r *BackgroundTaskRunner[T]) WaitTerminated(ctx context.Context) error {
	select {
	case <-r.terminatedCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a point-in-time observability snapshot.
func (r *BackgroundTaskRunner[T]) Stats() RunnerStats {
	r.mu.Lock()
	running := r.isRunning
	terminating := r.terminating
	last := r.lastTaskAt
	r.mu.Unlock()

	return RunnerStats{
		Name:        r.name,
		Pending:     r.queue.Len(),
		Running:     running,
		Completed:   r.completed.Load(),
		Terminating: terminating,
		Terminated:  r.terminated.Load(),
		Executed:    r.executed.Load(),
		Failed:      r.failed.Load(),
		Cancelled:   r.cancelled.Load(),
		Rejected:    r.rejected.Load(),
		LastTaskAt:  last,
	}
}

// RecentExecutions returns up to limit execution records, newest first.
func (r *BackgroundTaskRunner[T]) RecentExecutions(limit int) []TaskExecutionRecord {
	return r.history.Recent(limit)
}

// OnTaskStarting registers a handler fired before each task executes.
func (r *BackgroundTaskRunner[T]) OnTaskStarting(fn func(task T)) {
	r.events.onTaskStarting(fn)
}

// OnTaskCompleted registers a handler fired after each non-failing task.
func (r *BackgroundTaskRunner[T]) OnTaskCompleted(fn func(task T)) {
	r.events.onTaskCompleted(fn)
}

// OnTaskError registers a handler fired when a task returns an error or
// panics.
func (r *BackgroundTaskRunner[T]) OnTaskError(fn func(task T, err error)) {
	r.events.onTaskError(fn)
}

// OnTaskCancelled registers a handler fired when a latched task is discarded
// without running.
func (r *BackgroundTaskRunner[T]) OnTaskCancelled(fn func(task T)) {
	r.events.onTaskCancelled(fn)
}

// OnStopped registers a handler fired each time the pump exits.
func (r *BackgroundTaskRunner[T]) OnStopped(fn func()) {
	r.events.onStopped(fn)
}

// OnTerminating registers a handler fired once, when the host-termination
// handshake begins.
func (r *BackgroundTaskRunner[T]) OnTerminating(fn func()) {
	r.events.onTerminating(fn)
}

// OnTerminated registers a handler fired once, at termination.
func (r *BackgroundTaskRunner[T]) OnTerminated(fn func()) {
	r.events.onTerminated(fn)
}

// =============================================================================
// Pump loop
// =============================================================================

// pump is the single logical worker. It owns the runner's running/idle state
// transitions and never lets a task failure escape. cancel is the pump's own
// shutdown cancel; the exit path releases it so an idle exit does not leak
// the context.
func (r *BackgroundTaskRunner[T]) pump(ctx context.Context, cancel context.CancelFunc, done chan struct{}) {
	defer func() {
		if rec := recover(); rec != nil {
			// runOne recovers task panics, so this covers runner bugs only.
			r.logger.Error("pump panicked",
				F("panic", rec),
				F("stack", string(debug.Stack())))
		}

		cancel()
		r.mu.Lock()
		if r.pumpDone == done {
			r.isRunning = false
			r.taskCancel = nil
			r.shutdownCancel = nil
			if !r.opts.PreserveRunningTask {
				r.pumpDone = nil
			}
		}
		r.mu.Unlock()

		r.logger.Debug("pump stopped")
		r.events.emitStopped()
		close(done)
	}()

	for {
		task, ok := r.acquire(ctx)
		if !ok {
			return
		}

		// Fresh per-task cancellation signal each iteration, derived from
		// the pump-lifetime shutdown signal.
		taskCtx, cancel := context.WithCancel(ctx)
		r.mu.Lock()
		r.taskCancel = cancel
		r.mu.Unlock()

		r.runOne(taskCtx, task)

		r.mu.Lock()
		r.taskCancel = nil
		r.mu.Unlock()
		cancel()
	}
}

// acquire obtains the next task. It returns ok=false when the pump should
// exit: shutdown was signalled, the queue closed and drained, or (without
// KeepAlive) the queue is momentarily empty.
func (r *BackgroundTaskRunner[T]) acquire(ctx context.Context) (T, bool) {
	var zero T

	select {
	case <-ctx.Done():
		return zero, false
	default:
	}

	if r.opts.KeepAlive {
		return r.queue.WaitDequeue(ctx)
	}

	if task, ok := r.queue.TryDequeue(); ok {
		return task, true
	}

	// Momentarily empty. The final check and the idle transition must be
	// atomic with Add, or a task enqueued right now would strand with no
	// pump to serve it.
	r.mu.Lock()
	defer r.mu.Unlock()
	if task, ok := r.queue.TryDequeue(); ok {
		return task, true
	}
	r.isRunning = false
	return zero, false
}

// runOne resolves the task's latch, executes it and decides disposal.
func (r *BackgroundTaskRunner[T]) runOne(ctx context.Context, task T) {
	if lt, ok := any(task).(LatchedTask); ok && lt.IsLatched() {
		r.logger.Debug("task latched; waiting for release")
		WaitAny(lt.Latch(), r.queue.Closed(), ctx.Done())

		if lt.IsLatched() {
			// Shutdown or cancellation won the race.
			if !lt.RunsOnShutdown() {
				r.discard(task)
				return
			}
			r.logger.Debug("latched task runs on shutdown")
		}
	}

	r.events.emitTaskStarting(task)
	r.logger.Debug("task starting")

	started := time.Now()
	err := r.execute(ctx, task)
	finished := time.Now()
	duration := finished.Sub(started)

	r.executed.Add(1)
	r.metrics.RecordTaskDuration(r.name, duration)
	r.mu.Lock()
	r.lastTaskAt = finished
	r.mu.Unlock()

	record := TaskExecutionRecord{
		ID:         uuid.New(),
		RunnerName: r.name,
		StartedAt:  started,
		FinishedAt: finished,
		Duration:   duration,
	}

	switch {
	case err == nil:
		r.logger.Debug("task completed", F("duration", duration))
		r.events.emitTaskCompleted(task)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		// Cooperative unwinding on a cancelled context is cancellation,
		// not failure.
		record.Cancelled = true
		r.cancelled.Add(1)
		r.metrics.RecordTaskCancelled(r.name)
		r.logger.Info("task cancelled during execution")
		r.events.emitTaskCancelled(task)
	default:
		record.Failed = true
		record.Err = err
		r.failed.Add(1)
		r.metrics.RecordTaskError(r.name)
		r.logger.Error("task failed", F("error", err))
		r.events.emitTaskError(task, err)
	}

	// A task that latched itself again during execution stays alive for its
	// owner to inspect or re-enqueue; everything else is disposed now.
	state := taskStateOf(task)
	if state != TaskLatched {
		state = TaskDisposed
	}
	record.FinalState = state
	r.history.Add(record)

	if state == TaskDisposed {
		r.dispose(task)
	}
}

// execute runs the task on the path selected by IsAsync, converting panics
// into errors so nothing escapes the pump.
func (r *BackgroundTaskRunner[T]) execute(ctx context.Context, task T) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &RunnerError{msg: fmt.Sprintf("task panicked: %v", rec)}
			r.logger.Error("task panicked",
				F("panic", rec),
				F("stack", string(debug.Stack())))
		}
	}()

	if task.IsAsync() {
		if at, ok := any(task).(AsyncTask); ok {
			return at.RunAsync(ctx)
		}
		// IsAsync without AsyncTask is a task bug; run synchronously.
		r.logger.Warn("task reports IsAsync but does not implement AsyncTask")
	}
	return task.Run()
}

// discard drops a latched task that will never run.
func (r *BackgroundTaskRunner[T]) discard(task T) {
	r.cancelled.Add(1)
	r.metrics.RecordTaskCancelled(r.name)
	r.logger.Info("task cancelled before running")
	r.events.emitTaskCancelled(task)

	now := time.Now()
	r.history.Add(TaskExecutionRecord{
		ID:         uuid.New(),
		RunnerName: r.name,
		StartedAt:  now,
		FinishedAt: now,
		Cancelled:  true,
		FinalState: TaskDisposed,
	})

	r.dispose(task)
}

// dispose releases task resources, surviving a panicking Dispose.
func (r *BackgroundTaskRunner[T]) dispose(task T) {
	d, ok := any(task).(DisposableTask)
	if !ok {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("task dispose panicked", F("panic", rec))
		}
	}()
	d.Dispose()
}

// fireTerminating fires the Terminating event exactly once.
func (r *BackgroundTaskRunner[T]) fireTerminating() {
	r.terminatingOnce.Do(func() {
		r.mu.Lock()
		r.terminating = true
		r.mu.Unlock()
		r.logger.Info("terminating")
		r.events.emitTerminating()
	})
}

// terminate completes the handshake exactly once: unregister from the host,
// resolve the terminated awaitable, fire the Terminated event.
func (r *BackgroundTaskRunner[T]) terminate() {
	r.terminatedOnce.Do(func() {
		if r.opts.Hosted && r.host != nil {
			r.host.UnregisterObject(r)
		}
		r.terminated.Store(true)
		close(r.terminatedCh)
		r.logger.Info("terminated")
		r.events.emitTerminated()
	})
}
