package core

import "reflect"

// WaitAny blocks until one of the given signal channels fires (receives a
// value or is closed) and returns the index of the winner. It is the
// "first of N" combinator the pump uses to race a task's latch against queue
// closure and task cancellation.
//
// A nil channel never fires. WaitAny panics if every signal is nil or the
// slice is empty, since the wait could never resolve.
func WaitAny(signals ...<-chan struct{}) int {
	// Fast path for the pump's fixed three-way race.
	if len(signals) == 3 && signals[0] != nil && signals[1] != nil && signals[2] != nil {
		select {
		case <-signals[0]:
			return 0
		case <-signals[1]:
			return 1
		case <-signals[2]:
			return 2
		}
	}

	cases := make([]reflect.SelectCase, 0, len(signals))
	index := make([]int, 0, len(signals))
	for i, ch := range signals {
		if ch == nil {
			continue
		}
		cases = append(cases, reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: reflect.ValueOf(ch),
		})
		index = append(index, i)
	}
	if len(cases) == 0 {
		panic("bgrunner: WaitAny requires at least one non-nil signal")
	}

	chosen, _, _ := reflect.Select(cases)
	return index[chosen]
}
