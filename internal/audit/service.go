package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events. Append-only; no
// update or delete.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records the call lifecycle trail.
//
// Callers treat audit logging as best-effort: a failed append is logged by
// the caller and never fails the triggering operation.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" || e.CallID == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// CallStarted records a new session.
func (s *Service) CallStarted(ctx context.Context, roomID, callID, initiatorID, callType string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeCallStarted,
		RoomID:      roomID,
		CallID:      callID,
		ActorUserID: initiatorID,
		Metadata:    callType,
	})
}

// CallEnded records a terminated session and why it ended.
func (s *Service) CallEnded(ctx context.Context, roomID, callID, reason string) error {
	return s.Append(ctx, Event{
		Type:    EventTypeCallEnded,
		RoomID:  roomID,
		CallID:  callID,
		Message: reason,
	})
}

// ParticipantEvent records a join, leave or decline by one user.
func (s *Service) ParticipantEvent(ctx context.Context, t EventType, roomID, callID, userID string) error {
	return s.Append(ctx, Event{
		Type:        t,
		RoomID:      roomID,
		CallID:      callID,
		ActorUserID: userID,
	})
}
