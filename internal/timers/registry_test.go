package timers

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedule_FiresAndRemovesEntry(t *testing.T) {
	r := NewRegistry()
	var fired atomic.Int32

	r.Schedule("s1", 10*time.Millisecond, func() { fired.Add(1) })
	if r.Len() != 1 {
		t.Fatalf("expected 1 pending, got %d", r.Len())
	}

	waitFor(t, func() bool { return fired.Load() == 1 })
	waitFor(t, func() bool { return r.Len() == 0 })
}

func TestCancel_PreventsFiring(t *testing.T) {
	r := NewRegistry()
	var fired atomic.Int32

	r.Schedule("s1", 20*time.Millisecond, func() { fired.Add(1) })
	r.Cancel("s1")
	if r.Len() != 0 {
		t.Fatalf("expected 0 pending after cancel, got %d", r.Len())
	}

	time.Sleep(50 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("cancelled task fired")
	}
}

func TestSchedule_ReplacesPendingTask(t *testing.T) {
	r := NewRegistry()
	var first, second atomic.Int32

	r.Schedule("s1", 20*time.Millisecond, func() { first.Add(1) })
	r.Schedule("s1", 10*time.Millisecond, func() { second.Add(1) })
	if r.Len() != 1 {
		t.Fatalf("expected 1 pending, got %d", r.Len())
	}

	waitFor(t, func() bool { return second.Load() == 1 })
	time.Sleep(40 * time.Millisecond)
	if first.Load() != 0 {
		t.Fatalf("superseded task fired")
	}
}

func TestFiredTask_DoesNotEvictNewerTimer(t *testing.T) {
	r := NewRegistry()
	block := make(chan struct{})

	r.Schedule("s1", time.Millisecond, func() { <-block })
	time.Sleep(10 * time.Millisecond) // old task now mid-fire, entry removed

	var fired atomic.Int32
	r.Schedule("s1", time.Hour, func() { fired.Add(1) })
	close(block)
	time.Sleep(10 * time.Millisecond)

	if r.Len() != 1 {
		t.Fatalf("newer timer was evicted by a fired task")
	}
	r.Shutdown()
}

func TestShutdown_StopsEverything(t *testing.T) {
	r := NewRegistry()
	var fired atomic.Int32
	r.Schedule("a", 20*time.Millisecond, func() { fired.Add(1) })
	r.Schedule("b", 20*time.Millisecond, func() { fired.Add(1) })

	r.Shutdown()
	if r.Len() != 0 {
		t.Fatalf("expected empty registry after shutdown")
	}
	time.Sleep(50 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("tasks fired after shutdown")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not reached within deadline")
}
