package core

import "sync"

// runnerEvents fans notifications out to subscribers. Handlers are invoked
// in registration order; a panicking handler is caught and logged so it
// cannot affect other subscribers or the pump.
type runnerEvents[T Task] struct {
	logger Logger

	mu            sync.Mutex
	taskStarting  []func(task T)
	taskCompleted []func(task T)
	taskError     []func(task T, err error)
	taskCancelled []func(task T)
	stopped       []func()
	terminating   []func()
	terminated    []func()
}

func newRunnerEvents[T Task](logger Logger) *runnerEvents[T] {
	return &runnerEvents[T]{logger: logger}
}

func (e *runnerEvents[T]) onTaskStarting(fn func(task T)) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.taskStarting = append(e.taskStarting, fn)
}

func (e *runnerEvents[T]) onTaskCompleted(fn func(task T)) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.taskCompleted = append(e.taskCompleted, fn)
}

func (e *runnerEvents[T]) onTaskError(fn func(task T, err error)) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.taskError = append(e.taskError, fn)
}

func (e *runnerEvents[T]) onTaskCancelled(fn func(task T)) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.taskCancelled = append(e.taskCancelled, fn)
}

func (e *runnerEvents[T]) onStopped(fn func()) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = append(e.stopped, fn)
}

func (e *runnerEvents[T]) onTerminating(fn func()) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.terminating = append(e.terminating, fn)
}

func (e *runnerEvents[T]) onTerminated(fn func()) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.terminated = append(e.terminated, fn)
}

func (e *runnerEvents[T]) emitTaskStarting(task T) {
	for _, fn := range e.snapshotTaskHandlers(&e.taskStarting) {
		e.safeCallTask("taskStarting", fn, task)
	}
}

func (e *runnerEvents[T]) emitTaskCompleted(task T) {
	for _, fn := range e.snapshotTaskHandlers(&e.taskCompleted) {
		e.safeCallTask("taskCompleted", fn, task)
	}
}

func (e *runnerEvents[T]) emitTaskError(task T, err error) {
	e.mu.Lock()
	handlers := make([]func(task T, err error), len(e.taskError))
	copy(handlers, e.taskError)
	e.mu.Unlock()

	for _, fn := range handlers {
		func() {
			defer e.recoverHandler("taskError")
			fn(task, err)
		}()
	}
}

func (e *runnerEvents[T]) emitTaskCancelled(task T) {
	for _, fn := range e.snapshotTaskHandlers(&e.taskCancelled) {
		e.safeCallTask("taskCancelled", fn, task)
	}
}

func (e *runnerEvents[T]) emitStopped() {
	for _, fn := range e.snapshotPlainHandlers(&e.stopped) {
		e.safeCall("stopped", fn)
	}
}

func (e *runnerEvents[T]) emitTerminating() {
	for _, fn := range e.snapshotPlainHandlers(&e.terminating) {
		e.safeCall("terminating", fn)
	}
}

func (e *runnerEvents[T]) emitTerminated() {
	for _, fn := range e.snapshotPlainHandlers(&e.terminated) {
		e.safeCall("terminated", fn)
	}
}

func (e *runnerEvents[T]) snapshotTaskHandlers(list *[]func(task T)) []func(task T) {
	e.mu.Lock()
	defer e.mu.Unlock()
	handlers := make([]func(task T), len(*list))
	copy(handlers, *list)
	return handlers
}

func (e *runnerEvents[T]) snapshotPlainHandlers(list *[]func()) []func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	handlers := make([]func(), len(*list))
	copy(handlers, *list)
	return handlers
}

func (e *runnerEvents[T]) safeCallTask(event string, fn func(task T), task T) {
	defer e.recoverHandler(event)
	fn(task)
}

func (e *runnerEvents[T]) safeCall(event string, fn func()) {
	defer e.recoverHandler(event)
	fn()
}

func (e *runnerEvents[T]) recoverHandler(event string) {
	if rec := recover(); rec != nil {
		e.logger.Error("event handler panicked",
			F("event", event),
			F("panic", rec))
	}
}
