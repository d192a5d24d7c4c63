package core

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

// TestExecutionHistory_NewestFirst verifies Recent ordering
func TestExecutionHistory_NewestFirst(t *testing.T) {
	h := newExecutionHistory(10)

	base := time.Now()
	for i := 0; i < 3; i++ {
		h.Add(TaskExecutionRecord{
			ID:        uuid.New(),
			StartedAt: base.Add(time.Duration(i) * time.Second),
		})
	}

	records := h.Recent(0)
	if len(records) != 3 {
		t.Fatalf("Recent(0) returned %d records, want 3", len(records))
	}
	for i := 0; i < len(records)-1; i++ {
		if records[i].StartedAt.Before(records[i+1].StartedAt) {
			t.Errorf("records[%d] older than records[%d], want newest first", i, i+1)
		}
	}
}

// TestExecutionHistory_RingWraparound verifies capacity bounds retention
// Given: A history of capacity 4 receiving 10 records
// Then: Only the newest 4 are retained
func TestExecutionHistory_RingWraparound(t *testing.T) {
	h := newExecutionHistory(4)

	base := time.Now()
	for i := 0; i < 10; i++ {
		h.Add(TaskExecutionRecord{
			StartedAt: base.Add(time.Duration(i) * time.Second),
		})
	}

	records := h.Recent(0)
	if len(records) != 4 {
		t.Fatalf("Recent(0) returned %d records, want 4", len(records))
	}
	if got, want := records[0].StartedAt, base.Add(9*time.Second); !got.Equal(want) {
		t.Errorf("newest record StartedAt = %v, want %v", got, want)
	}
	if got, want := records[3].StartedAt, base.Add(6*time.Second); !got.Equal(want) {
		t.Errorf("oldest retained StartedAt = %v, want %v", got, want)
	}
}

// TestExecutionHistory_LimitCapsResults verifies the limit parameter
func TestExecutionHistory_LimitCapsResults(t *testing.T) {
	h := newExecutionHistory(10)
	for i := 0; i < 5; i++ {
		h.Add(TaskExecutionRecord{})
	}

	if got := len(h.Recent(2)); got != 2 {
		t.Errorf("Recent(2) returned %d records, want 2", got)
	}
	if got := len(h.Recent(100)); got != 5 {
		t.Errorf("Recent(100) returned %d records, want 5", got)
	}
}

// TestExecutionHistory_EmptyReturnsNil verifies the empty case
func TestExecutionHistory_EmptyReturnsNil(t *testing.T) {
	h := newExecutionHistory(10)
	if got := h.Recent(0); got != nil {
		t.Errorf("Recent(0) on empty history = %v, want nil", got)
	}
}
