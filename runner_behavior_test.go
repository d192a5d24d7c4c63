package bgrunner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taskhost/bgrunner/core"
)

func TestFuncTaskRunsOnPump(t *testing.T) {
	runner := New[Task]("func", Options{KeepAlive: true}, &RunnerConfig{Logger: NewNoOpLogger()})
	defer runner.Close()

	done := make(chan struct{})
	require.NoError(t, runner.Add(NewFuncTask(func() error {
		close(done)
		return nil
	})))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("FuncTask never ran")
	}
}

func TestAsyncFuncTaskObservesForcedShutdown(t *testing.T) {
	runner := New[Task]("async", Options{KeepAlive: true}, &RunnerConfig{Logger: NewNoOpLogger()})

	started := make(chan struct{})
	cancelled := make(chan struct{})
	require.NoError(t, runner.Add(NewAsyncFuncTask(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return nil
	})))

	<-started
	runner.Shutdown(true, true)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("async task did not observe forced-shutdown cancellation")
	}
}

func TestRecurringTaskRepeatsUntilStopped(t *testing.T) {
	runner := New[Task]("recurring", Options{KeepAlive: true}, &RunnerConfig{Logger: NewNoOpLogger()})
	defer runner.Close()

	var runs atomic.Int32
	task := NewRecurringTask(runner, 10*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})
	require.NoError(t, task.Start())

	require.Eventually(t, func() bool { return runs.Load() >= 3 },
		2*time.Second, 5*time.Millisecond, "recurring task did not repeat")

	task.Stop()
	require.True(t, task.IsStopped())
	settled := runs.Load()
	time.Sleep(50 * time.Millisecond)
	require.LessOrEqual(t, runs.Load(), settled+1, "recurring task kept running after Stop")
}

func TestRecurringTaskStopsWhenRunnerCompletes(t *testing.T) {
	runner := New[Task]("recurring-shutdown", Options{KeepAlive: true}, &RunnerConfig{Logger: NewNoOpLogger()})

	var runs atomic.Int32
	task := NewRecurringTask(runner, 5*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})
	require.NoError(t, task.Start())

	require.Eventually(t, func() bool { return runs.Load() >= 1 },
		2*time.Second, time.Millisecond)

	runner.Shutdown(false, true)
	settled := runs.Load()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, settled, runs.Load(), "recurring task ran after runner completion")
}

// TestHostTeardownScenario drives the full two-phase protocol the way a host
// lifecycle manager would: graceful stop for every registered runner, a grace
// period, then the immediate stop, then wait for termination.
func TestHostTeardownScenario(t *testing.T) {
	host := NewSimpleHostRegistry()

	indexer := New[Task]("indexer", Options{KeepAlive: true, Hosted: true},
		&RunnerConfig{Logger: NewNoOpLogger(), Host: host})
	mailer := New[Task]("mailer", Options{KeepAlive: true, Hosted: true},
		&RunnerConfig{Logger: NewNoOpLogger(), Host: host})
	require.Equal(t, 2, host.Count())

	var indexed, mailed atomic.Int32
	for i := 0; i < 3; i++ {
		require.NoError(t, indexer.Add(NewFuncTask(func() error {
			indexed.Add(1)
			return nil
		})))
		require.NoError(t, mailer.Add(NewFuncTask(func() error {
			mailed.Add(1)
			return nil
		})))
	}

	host.StopAll(false)
	host.StopAll(true)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, indexer.WaitTerminated(ctx))
	require.NoError(t, mailer.WaitTerminated(ctx))

	require.EqualValues(t, 3, indexed.Load())
	require.EqualValues(t, 3, mailed.Load())
	require.Equal(t, 0, host.Count(), "terminated runners must unregister")

	// The handshake is over: further adds are programming errors.
	require.ErrorIs(t, indexer.Add(NewFuncTask(func() error { return nil })), ErrCompleted)
	require.False(t, mailer.TryAdd(NewFuncTask(func() error { return nil })))
}

func TestEveryTaskRunsExactlyOnceOrIsDiscarded(t *testing.T) {
	runner := New[Task]("once", Options{KeepAlive: true}, &RunnerConfig{Logger: NewNoOpLogger()})

	const n = 50
	var runs [n]atomic.Int32
	for i := 0; i < n; i++ {
		i := i
		require.NoError(t, runner.Add(NewFuncTask(func() error {
			runs[i].Add(1)
			return nil
		})))
	}

	runner.Shutdown(false, true)

	for i := 0; i < n; i++ {
		require.EqualValues(t, 1, runs[i].Load(), "task %d run count", i)
	}
}

func TestErrorsAreSurfacedNotRetried(t *testing.T) {
	runner := New[Task]("errors", Options{KeepAlive: true}, &RunnerConfig{Logger: NewNoOpLogger()})
	defer runner.Close()

	boom := errors.New("boom")
	var failures atomic.Int32
	var attempts atomic.Int32
	runner.OnTaskError(func(task Task, err error) {
		require.ErrorIs(t, err, boom)
		failures.Add(1)
	})

	require.NoError(t, runner.Add(NewFuncTask(func() error {
		attempts.Add(1)
		return boom
	})))

	require.Eventually(t, func() bool { return failures.Load() == 1 },
		2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.EqualValues(t, 1, attempts.Load(), "failed task must not be retried")
}

func TestReExportedConstructorsProduceCoreTypes(t *testing.T) {
	var _ *core.BackgroundTaskRunner[Task] = New[Task]("alias", Options{}, nil)
	var _ Task = NewFuncTask(func() error { return nil })
	var _ AsyncTask = NewAsyncFuncTask(func(ctx context.Context) error { return nil })
	require.NotNil(t, NewLatch())
}
