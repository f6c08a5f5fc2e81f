// Package timers holds the process-wide registry of pending abandonment
// timers, one per call session.
package timers

import (
	"sync"
	"time"
)

// Registry maps a session id to at most one pending delayed task. Scheduling
// for a session that already has a task supersedes it; fired tasks remove
// their own entry.
//
// Cancellation is best-effort: a task that is already mid-fire when Cancel is
// called may still run, so actions must re-validate state against the store
// rather than trusting values captured at scheduling time.
type Registry struct {
	mu      sync.Mutex
	pending map[string]*entry
	gen     uint64
}

type entry struct {
	timer *time.Timer
	gen   uint64
}

func NewRegistry() *Registry {
	return &Registry{pending: map[string]*entry{}}
}

// Schedule arms action to run after delay, replacing any pending task for
// sessionID.
func (r *Registry) Schedule(sessionID string, delay time.Duration, action func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.pending[sessionID]; ok {
		e.timer.Stop()
	}
	r.gen++
	gen := r.gen
	e := &entry{gen: gen}
	e.timer = time.AfterFunc(delay, func() {
		defer r.remove(sessionID, gen)
		action()
	})
	r.pending[sessionID] = e
}

// Cancel stops and removes the pending task for sessionID, if any.
func (r *Registry) Cancel(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.pending[sessionID]; ok {
		e.timer.Stop()
		delete(r.pending, sessionID)
	}
}

// Len reports how many tasks are currently pending.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Shutdown stops every pending task. Used on process exit.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.pending {
		e.timer.Stop()
		delete(r.pending, id)
	}
}

// remove drops the entry only when it still belongs to the firing task, so a
// fired task never evicts a newer timer scheduled for the same session.
func (r *Registry) remove(sessionID string, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.pending[sessionID]; ok && e.gen == gen {
		delete(r.pending, sessionID)
	}
}
