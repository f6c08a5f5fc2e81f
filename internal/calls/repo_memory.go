package calls

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and early development.
// All reads and writes go through clones so callers never alias stored state.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*CallSession

	// ConflictNext forces the next N conditional writes to fail with
	// ErrWriteConflict. Tests use it to exercise the retry path.
	ConflictNext int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string]*CallSession{}}
}

func (m *MemoryStore) FindActiveSessionForRoom(ctx context.Context, roomID string) (*CallSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *CallSession
	for _, s := range m.sessions {
		if s.RoomID != roomID || s.Status == StatusEnded {
			continue
		}
		if found == nil || s.StartedAt.After(found.StartedAt) {
			found = s
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found.Clone(), nil
}

func (m *MemoryStore) CreateSession(ctx context.Context, s *CallSession) (*CallSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := s.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.Version = 1
	m.sessions[stored.ID] = stored
	return stored.Clone(), nil
}

func (m *MemoryStore) FindSessionByID(ctx context.Context, id string) (*CallSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) ConditionalUpdateParticipant(ctx context.Context, sessionID, userID string, upd ParticipantUpdate) (*CallSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	if m.ConflictNext > 0 {
		m.ConflictNext--
		return nil, ErrWriteConflict
	}
	p := s.ParticipantByID(userID)
	if p == nil {
		return nil, ErrNotFound
	}
	// Ended is terminal: a write that lost the race against session end
	// becomes a no-op and the caller re-checks the returned state.
	if s.Status == StatusEnded {
		return s.Clone(), nil
	}
	applyParticipantUpdate(s, p, userID, upd)
	s.Version++
	return s.Clone(), nil
}

func (m *MemoryStore) SaveSession(ctx context.Context, s *CallSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[s.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != s.Version {
		return ErrWriteConflict
	}
	stored := s.Clone()
	stored.Version = cur.Version + 1
	m.sessions[s.ID] = stored
	s.Version = stored.Version
	return nil
}

func (m *MemoryStore) ListPendingForUser(ctx context.Context, userID string) ([]*CallSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*CallSession, 0)
	for _, s := range m.sessions {
		if s.Status != StatusRinging {
			continue
		}
		p := s.ParticipantByID(userID)
		if p == nil || p.Status != ParticipantInvited {
			continue
		}
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (m *MemoryStore) ListSessionsForRoom(ctx context.Context, roomID string, from, to time.Time) ([]*CallSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*CallSession, 0)
	for _, s := range m.sessions {
		if s.RoomID != roomID {
			continue
		}
		if s.StartedAt.Before(from) || !s.StartedAt.Before(to) {
			continue
		}
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

// applyParticipantUpdate mutates s in place. Shared by the memory and
// Postgres stores so both apply identical write semantics.
func applyParticipantUpdate(s *CallSession, p *Participant, userID string, upd ParticipantUpdate) {
	if upd.Status != nil {
		p.Status = *upd.Status
	}
	if upd.JoinedAt != nil {
		t := *upd.JoinedAt
		p.JoinedAt = &t
	}
	if upd.LeftAt != nil {
		t := *upd.LeftAt
		p.LeftAt = &t
	}
	if upd.NotificationSent != nil {
		p.NotificationSent = *upd.NotificationSent
	}
	if upd.NotificationDelivered != nil {
		p.NotificationDelivered = *upd.NotificationDelivered
	}
	if upd.AddActive {
		s.AddActive(userID)
	}
	if upd.RemoveActive {
		s.RemoveActive(userID)
	}
	// The status/active-set invariant is maintained in the same write that
	// changes the active set: active holds iff two or more are connected.
	if upd.AddActive || upd.RemoveActive {
		if len(s.ActiveParticipants) >= minActiveForLive {
			s.Status = StatusActive
		} else {
			s.Status = StatusRinging
		}
	}
}
