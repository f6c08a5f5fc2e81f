package calls

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("calls: session not found")
	ErrWriteConflict = errors.New("calls: write conflict")
)

// ParticipantUpdate carries the fields of a single participant to change,
// plus active-set membership changes applied in the same atomic write.
// Nil pointer fields are left untouched.
type ParticipantUpdate struct {
	Status                *ParticipantStatus
	JoinedAt              *time.Time
	LeftAt                *time.Time
	NotificationSent      *bool
	NotificationDelivered *bool

	AddActive    bool
	RemoveActive bool
}

// Store is the persistence contract for call sessions.
//
// Implementations must make each write atomic and must distinguish a write
// conflict (concurrent modification) from a missing session, so callers can
// retry the former and surface the latter.
type Store interface {
	// FindActiveSessionForRoom returns the ringing or active session for a
	// room, or ErrNotFound when the room has no live session.
	FindActiveSessionForRoom(ctx context.Context, roomID string) (*CallSession, error)

	// CreateSession persists a new session, assigning its ID.
	CreateSession(ctx context.Context, s *CallSession) (*CallSession, error)

	FindSessionByID(ctx context.Context, id string) (*CallSession, error)

	// ConditionalUpdateParticipant atomically applies upd to the matching
	// participant and returns the updated session. ErrNotFound when the
	// session or participant is gone, ErrWriteConflict when a concurrent
	// writer got there first.
	ConditionalUpdateParticipant(ctx context.Context, sessionID, userID string, upd ParticipantUpdate) (*CallSession, error)

	// SaveSession writes the full session guarded by its version token and
	// bumps the token on success. ErrWriteConflict on a stale version.
	SaveSession(ctx context.Context, s *CallSession) error

	// ListPendingForUser returns ringing sessions where the user is still
	// invited, newest first.
	ListPendingForUser(ctx context.Context, userID string) ([]*CallSession, error)

	// ListSessionsForRoom returns sessions started within [from, to) for a
	// room, newest first.
	ListSessionsForRoom(ctx context.Context, roomID string, from, to time.Time) ([]*CallSession, error)
}
