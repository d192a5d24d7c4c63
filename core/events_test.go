package core

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// TestEvents_HandlerPanicIsIsolated verifies one bad subscriber cannot break others
// Given: Three taskCompleted handlers, the second of which panics
// When: A task completes
// Then: The first and third handlers still run and the pump survives
func TestEvents_HandlerPanicIsIsolated(t *testing.T) {
	runner := newTestRunner(t, Options{KeepAlive: true})

	var first, third atomic.Int32
	runner.OnTaskCompleted(func(task Task) { first.Add(1) })
	runner.OnTaskCompleted(func(task Task) { panic("bad subscriber") })
	runner.OnTaskCompleted(func(task Task) { third.Add(1) })

	next := make(chan struct{})
	_ = runner.Add(&testTask{})
	_ = runner.Add(&testTask{run: func() error {
		close(next)
		return nil
	}})

	select {
	case <-next:
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not survive a panicking event handler")
	}

	eventually(t, time.Second, "handlers did not all run", func() bool {
		return first.Load() == 2 && third.Load() == 2
	})
}

// TestEvents_HandlersRunInRegistrationOrder verifies ordered delivery
func TestEvents_HandlersRunInRegistrationOrder(t *testing.T) {
	runner := newTestRunner(t, Options{KeepAlive: true})

	var seq atomic.Int32
	var firstAt, secondAt atomic.Int32
	runner.OnTaskStarting(func(task Task) { firstAt.Store(seq.Add(1)) })
	runner.OnTaskStarting(func(task Task) { secondAt.Store(seq.Add(1)) })

	done := make(chan struct{})
	_ = runner.Add(&testTask{run: func() error {
		close(done)
		return nil
	}})
	<-done

	eventually(t, time.Second, "handlers did not fire", func() bool {
		return firstAt.Load() > 0 && secondAt.Load() > 0
	})
	if firstAt.Load() >= secondAt.Load() {
		t.Errorf("handler order: first=%d second=%d, want first < second",
			firstAt.Load(), secondAt.Load())
	}
}

// TestEvents_ErrorHandlerReceivesError verifies taskError payload delivery
func TestEvents_ErrorHandlerReceivesError(t *testing.T) {
	runner := newTestRunner(t, Options{KeepAlive: true})

	boom := errors.New("boom")
	got := make(chan error, 1)
	runner.OnTaskError(func(task Task, err error) { got <- err })

	_ = runner.Add(&testTask{run: func() error { return boom }})

	select {
	case err := <-got:
		if !errors.Is(err, boom) {
			t.Errorf("taskError payload = %v, want %v", err, boom)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("taskError did not fire")
	}
}

// TestEvents_StoppedFiresOnPumpExit verifies the stopped notification
func TestEvents_StoppedFiresOnPumpExit(t *testing.T) {
	runner := newTestRunner(t, Options{})

	var stopped atomic.Int32
	runner.OnStopped(func() { stopped.Add(1) })

	_ = runner.Add(&testTask{})

	eventually(t, 2*time.Second, "stopped did not fire after idle", func() bool {
		return stopped.Load() == 1
	})
}
