package core

import (
	"context"
	"sync"
)

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

// taskQueue is an unbounded FIFO queue with a producer-side close and a
// consumer-side "wait until an item is available or the queue is closed"
// operation. It is safe for concurrent producers; the runner's pump is the
// single consumer.
type taskQueue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool

	// wake nudges the single consumer after an enqueue; buffered so that
	// producers never block on it.
	wake     chan struct{}
	closedCh chan struct{}
}

func newTaskQueue[T any]() *taskQueue[T] {
	return &taskQueue[T]{
		items:    make([]T, 0, defaultQueueCap),
		wake:     make(chan struct{}, 1),
		closedCh: make(chan struct{}),
	}
}

// Enqueue appends an item. It reports false if the queue has been closed;
// callers gate admission through the runner's completed flag, so a false
// return indicates a race the caller already lost.
func (q *taskQueue[T]) Enqueue(item T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes and returns the oldest item without blocking.
func (q *taskQueue[T]) TryDequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

// WaitDequeue blocks until an item is available, returning it. It returns
// ok=false once the queue has been closed and drained, or once ctx is done.
func (q *taskQueue[T]) WaitDequeue(ctx context.Context) (T, bool) {
	for {
		select {
		case <-ctx.Done():
			var zero T
			return zero, false
		default:
		}

		q.mu.Lock()
		if item, ok := q.popLocked(); ok {
			q.mu.Unlock()
			return item, true
		}
		if q.closed {
			q.mu.Unlock()
			var zero T
			return zero, false
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-q.closedCh:
		case <-ctx.Done():
			var zero T
			return zero, false
		}
	}
}

// Close marks the queue as accepting no new items and resolves all pending
// waits. Items already enqueued remain dequeueable. Idempotent.
func (q *taskQueue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.closedCh)
}

// Closed returns a channel that is closed once the queue has been closed.
func (q *taskQueue[T]) Closed() <-chan struct{} {
	return q.closedCh
}

// IsClosed reports whether Close has been called.
func (q *taskQueue[T]) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of pending items. Advisory: it may be stale the
// moment it returns under concurrent access.
func (q *taskQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *taskQueue[T]) popLocked() (T, bool) {
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}

	item := q.items[0]
	// Zero out the element in the underlying array to prevent memory leak
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	q.maybeCompactLocked()

	return item, true
}

func (q *taskQueue[T]) maybeCompactLocked() {
	n := len(q.items)
	c := cap(q.items)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		q.items = make([]T, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, defaultQueueCap), n)

	newSlice := make([]T, n, newCap)
	copy(newSlice, q.items)
	q.items = newSlice
}
