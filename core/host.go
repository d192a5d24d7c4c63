package core

import "sync"

// RegisteredObject is the contract the host lifecycle manager uses to stop
// registered components.
//
// Stop is called twice during host teardown: first with immediate=false so
// the object can begin a graceful shutdown, then with immediate=true once
// the host's grace period has elapsed.
type RegisteredObject interface {
	Stop(immediate bool)
}

// HostRegistry is the external process-lifecycle manager. Objects register
// so they receive stop notifications during host teardown, and unregister
// once they have fully terminated, signalling the host that teardown of that
// object is done.
type HostRegistry interface {
	RegisterObject(obj RegisteredObject)
	UnregisterObject(obj RegisteredObject)
}

// SingletonOwner decides whether this process instance is allowed to run
// background work at all. On a multi-process host only the process holding
// the ownership hook should run tasks.
//
// Register returns false when ownership could not be acquired; a runner
// constructed against such an owner starts pre-completed and accepts no
// tasks. onRelease is invoked if ownership is later withdrawn, at which
// point the runner begins a graceful stop.
type SingletonOwner interface {
	Register(onAcquire func(), onRelease func()) bool
}

// SimpleHostRegistry is an in-process HostRegistry. It is suitable for
// applications that manage their own teardown and for tests; StopAll drives
// the two-phase stop protocol across every registered object.
type SimpleHostRegistry struct {
	mu      sync.Mutex
	objects []RegisteredObject
}

// NewSimpleHostRegistry creates an empty registry.
func NewSimpleHostRegistry() *SimpleHostRegistry {
	return &SimpleHostRegistry{}
}

// RegisterObject adds an object to the registry.
func (h *SimpleHostRegistry) RegisterObject(obj RegisteredObject) {
	if obj == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.objects = append(h.objects, obj)
}

// UnregisterObject removes an object from the registry.
func (h *SimpleHostRegistry) UnregisterObject(obj RegisteredObject) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, o := range h.objects {
		if o == obj {
			h.objects = append(h.objects[:i], h.objects[i+1:]...)
			return
		}
	}
}

// Count returns the number of currently registered objects.
func (h *SimpleHostRegistry) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.objects)
}

// StopAll calls Stop(immediate) on every registered object, in registration
// order. Objects that unregister during the call are not revisited.
func (h *SimpleHostRegistry) StopAll(immediate bool) {
	h.mu.Lock()
	objects := make([]RegisteredObject, len(h.objects))
	copy(objects, h.objects)
	h.mu.Unlock()

	for _, obj := range objects {
		obj.Stop(immediate)
	}
}

// AlwaysOwner is a SingletonOwner that always grants ownership. It is the
// default for single-process hosts.
type AlwaysOwner struct{}

// Register always succeeds, invoking onAcquire immediately. onRelease is
// never called: ownership is never withdrawn.
func (AlwaysOwner) Register(onAcquire func(), onRelease func()) bool {
	if onAcquire != nil {
		onAcquire()
	}
	return true
}

// DeniedOwner is a SingletonOwner that never grants ownership. Useful in
// tests and on secondary processes that must not run tasks.
type DeniedOwner struct{}

// Register always fails.
func (DeniedOwner) Register(onAcquire func(), onRelease func()) bool {
	return false
}
