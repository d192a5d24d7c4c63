package core

import (
	"sync/atomic"
	"testing"
)

type stopRecorder struct {
	graceful  atomic.Int32
	immediate atomic.Int32
}

func (s *stopRecorder) Stop(immediate bool) {
	if immediate {
		s.immediate.Add(1)
	} else {
		s.graceful.Add(1)
	}
}

// TestSimpleHostRegistry_RegisterUnregister verifies bookkeeping
func TestSimpleHostRegistry_RegisterUnregister(t *testing.T) {
	host := NewSimpleHostRegistry()
	a := &stopRecorder{}
	b := &stopRecorder{}

	host.RegisterObject(a)
	host.RegisterObject(b)
	if host.Count() != 2 {
		t.Errorf("Count() = %d, want 2", host.Count())
	}

	host.UnregisterObject(a)
	if host.Count() != 1 {
		t.Errorf("Count() = %d after unregister, want 1", host.Count())
	}

	// Unregistering twice is harmless.
	host.UnregisterObject(a)
	if host.Count() != 1 {
		t.Errorf("Count() = %d after double unregister, want 1", host.Count())
	}
}

// TestSimpleHostRegistry_StopAll verifies the two-phase fan-out
func TestSimpleHostRegistry_StopAll(t *testing.T) {
	host := NewSimpleHostRegistry()
	a := &stopRecorder{}
	b := &stopRecorder{}
	host.RegisterObject(a)
	host.RegisterObject(b)

	host.StopAll(false)
	host.StopAll(true)

	for i, obj := range []*stopRecorder{a, b} {
		if obj.graceful.Load() != 1 {
			t.Errorf("object %d graceful stops = %d, want 1", i, obj.graceful.Load())
		}
		if obj.immediate.Load() != 1 {
			t.Errorf("object %d immediate stops = %d, want 1", i, obj.immediate.Load())
		}
	}
}

// TestOwners verifies the built-in SingletonOwner doubles
func TestOwners(t *testing.T) {
	acquired := false
	if !(AlwaysOwner{}).Register(func() { acquired = true }, nil) {
		t.Error("AlwaysOwner.Register() = false, want true")
	}
	if !acquired {
		t.Error("AlwaysOwner did not invoke onAcquire")
	}

	if (DeniedOwner{}).Register(nil, nil) {
		t.Error("DeniedOwner.Register() = true, want false")
	}
}
