package calls

import (
	"context"
	"errors"
	"testing"
	"time"
)

func seedMemorySession(t *testing.T, m *MemoryStore, roomID string, status SessionStatus, startedAt time.Time) *CallSession {
	t.Helper()
	joined := startedAt
	s, err := m.CreateSession(context.Background(), &CallSession{
		RoomID:         roomID,
		SessionChannel: NewSessionChannel(),
		InitiatorID:    "alice",
		CallType:       CallTypeAudio,
		Status:         status,
		StartedAt:      startedAt,
		Participants: []Participant{
			{UserID: "alice", Status: ParticipantJoined, JoinedAt: &joined},
			{UserID: "bob", Status: ParticipantInvited},
		},
		ActiveParticipants: []string{"alice"},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return s
}

func TestMemoryStore_SaveSessionChecksVersion(t *testing.T) {
	m := NewMemoryStore()
	start := time.Unix(1700000000, 0).UTC()
	s := seedMemorySession(t, m, "room-1", StatusRinging, start)
	ctx := context.Background()

	stale := s.Clone()

	s.Status = StatusActive
	if err := m.SaveSession(ctx, s); err != nil {
		t.Fatalf("save: %v", err)
	}
	if s.Version != 2 {
		t.Fatalf("save must bump the caller's version, got %d", s.Version)
	}

	stale.Status = StatusEnded
	if err := m.SaveSession(ctx, stale); !errors.Is(err, ErrWriteConflict) {
		t.Fatalf("stale save must conflict, got %v", err)
	}
	if err := m.SaveSession(ctx, &CallSession{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown id must be ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_ConditionalUpdateMaintainsStatus(t *testing.T) {
	m := NewMemoryStore()
	start := time.Unix(1700000000, 0).UTC()
	s := seedMemorySession(t, m, "room-1", StatusRinging, start)
	ctx := context.Background()

	joined := ParticipantJoined
	u, err := m.ConditionalUpdateParticipant(ctx, s.ID, "bob", ParticipantUpdate{Status: &joined, AddActive: true})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if u.Status != StatusActive {
		t.Fatalf("two active participants must promote to active, got %s", u.Status)
	}

	u, err = m.ConditionalUpdateParticipant(ctx, s.ID, "bob", ParticipantUpdate{RemoveActive: true})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if u.Status != StatusRinging {
		t.Fatalf("one active participant must demote to ringing, got %s", u.Status)
	}
}

func TestMemoryStore_ConditionalUpdateOnEndedIsNoOp(t *testing.T) {
	m := NewMemoryStore()
	start := time.Unix(1700000000, 0).UTC()
	s := seedMemorySession(t, m, "room-1", StatusRinging, start)
	ctx := context.Background()

	s.End(start.Add(time.Minute))
	if err := m.SaveSession(ctx, s); err != nil {
		t.Fatalf("save: %v", err)
	}

	joined := ParticipantJoined
	u, err := m.ConditionalUpdateParticipant(ctx, s.ID, "bob", ParticipantUpdate{Status: &joined, AddActive: true})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if u.Status != StatusEnded || len(u.ActiveParticipants) != 0 {
		t.Fatalf("write against ended session must be a no-op, got %+v", u)
	}
	if p := u.ParticipantByID("bob"); p.Status != ParticipantMissed {
		t.Fatalf("terminal participant state must be preserved, got %s", p.Status)
	}
}

func TestMemoryStore_FindActiveSessionForRoom(t *testing.T) {
	m := NewMemoryStore()
	start := time.Unix(1700000000, 0).UTC()
	ctx := context.Background()

	old := seedMemorySession(t, m, "room-1", StatusRinging, start)
	old.End(start.Add(time.Minute))
	if err := m.SaveSession(ctx, old); err != nil {
		t.Fatalf("save: %v", err)
	}
	live := seedMemorySession(t, m, "room-1", StatusRinging, start.Add(2*time.Minute))

	got, err := m.FindActiveSessionForRoom(ctx, "room-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID != live.ID {
		t.Fatalf("expected the live session, got %s", got.ID)
	}
	if _, err := m.FindActiveSessionForRoom(ctx, "room-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_ClonesProtectStoredState(t *testing.T) {
	m := NewMemoryStore()
	start := time.Unix(1700000000, 0).UTC()
	s := seedMemorySession(t, m, "room-1", StatusRinging, start)
	ctx := context.Background()

	s.ActiveParticipants[0] = "mallory"
	s.Participants[1].Status = ParticipantJoined

	fresh, err := m.FindSessionByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if fresh.ActiveParticipants[0] != "alice" || fresh.Participants[1].Status != ParticipantInvited {
		t.Fatalf("stored state aliased by caller mutation: %+v", fresh)
	}
}
