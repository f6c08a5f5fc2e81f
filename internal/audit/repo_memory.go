package audit

import (
	"context"
	"sync"
)

// MemoryRepo collects audit events in memory for tests.
type MemoryRepo struct {
	mu     sync.Mutex
	Events []Event
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, e)
	return nil
}

// ByCall returns the recorded events for one call, in append order.
func (r *MemoryRepo) ByCall(callID string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, 0)
	for _, e := range r.Events {
		if e.CallID == callID {
			out = append(out, e)
		}
	}
	return out
}
