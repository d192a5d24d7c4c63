package bgrunner

import "context"

// FuncTask adapts a plain function to Task. It runs synchronously on the
// pump and cannot be cancelled mid-execution.
type FuncTask struct {
	fn func() error
}

// NewFuncTask creates a synchronous task from fn.
func NewFuncTask(fn func() error) *FuncTask {
	return &FuncTask{fn: fn}
}

func (t *FuncTask) IsAsync() bool { return false }

func (t *FuncTask) Run() error { return t.fn() }

// AsyncFuncTask adapts a context-aware function to AsyncTask. The context is
// cancelled when the current task is cancelled or the runner is forcibly
// shut down.
type AsyncFuncTask struct {
	fn func(ctx context.Context) error
}

// NewAsyncFuncTask creates an asynchronous task from fn.
func NewAsyncFuncTask(fn func(ctx context.Context) error) *AsyncFuncTask {
	return &AsyncFuncTask{fn: fn}
}

func (t *AsyncFuncTask) IsAsync() bool { return true }

func (t *AsyncFuncTask) Run() error { return t.fn(context.Background()) }

func (t *AsyncFuncTask) RunAsync(ctx context.Context) error { return t.fn(ctx) }
