package calls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Vivekkumarprince1/backend-vaani/internal/audit"
	"github.com/Vivekkumarprince1/backend-vaani/internal/realtime"
	"github.com/Vivekkumarprince1/backend-vaani/internal/rooms"
	"github.com/Vivekkumarprince1/backend-vaani/internal/timers"
	"github.com/Vivekkumarprince1/backend-vaani/pkg/logger"
)

var (
	ErrInvalidRequest = errors.New("calls: invalid request")
	ErrForbidden      = errors.New("calls: forbidden")
	ErrCallEnded      = errors.New("calls: call already ended")
)

const (
	// abandonAfter is how long a session may sit with a single active
	// participant before the registry ends it.
	abandonAfter = 30 * time.Second

	// staleRingingAfter marks a still-ringing session as abandoned when a
	// new initiate arrives for its room.
	staleRingingAfter = 5 * time.Minute

	// minActiveForLive is the active-participant count at which a ringing
	// session becomes active.
	minActiveForLive = 2

	// sweepTimeout bounds the work a fired abandonment task may do.
	sweepTimeout = 10 * time.Second
)

// Service orchestrates the call session lifecycle: it validates requests,
// computes state transitions, writes them to the Store with optimistic
// concurrency, drives the timer registry and fans events out through the
// dispatcher.
//
// The Store is the system of record. The service never trusts session state
// across requests; every mutation starts from a fresh read.
type Service struct {
	store      Store
	rooms      rooms.Directory
	dispatcher realtime.Dispatcher
	timers     *timers.Registry
	audit      *audit.Service

	// clock is injectable for deterministic tests.
	clock func() time.Time
}

// NewService wires a lifecycle service. trail may be nil; audit is
// best-effort everywhere.
func NewService(store Store, dir rooms.Directory, dispatcher realtime.Dispatcher, registry *timers.Registry, trail *audit.Service) *Service {
	return &Service{
		store:      store,
		rooms:      dir,
		dispatcher: dispatcher,
		timers:     registry,
		audit:      trail,
		clock:      time.Now,
	}
}

// Pending returns ringing sessions in which userID is still invited, newest
// first. Read-only.
func (s *Service) Pending(ctx context.Context, userID string) ([]*CallSession, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required: %w", ErrInvalidRequest)
	}
	return s.store.ListPendingForUser(ctx, userID)
}

// Initiate starts a group call in roomID, or returns the room's live session
// unchanged when one exists. A live session that turns out to be abandoned is
// force-ended first and replaced.
func (s *Service) Initiate(ctx context.Context, userID, roomID string, callType CallType) (*CallSession, error) {
	if userID == "" || roomID == "" {
		return nil, fmt.Errorf("user id and room id are required: %w", ErrInvalidRequest)
	}
	if !callType.Valid() {
		return nil, fmt.Errorf("call type %q: %w", callType, ErrInvalidRequest)
	}

	member, err := s.rooms.IsMember(ctx, roomID, userID)
	if errors.Is(err, rooms.ErrNotFound) {
		return nil, fmt.Errorf("room %s: %w", roomID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, fmt.Errorf("user %s is not a member of room %s: %w", userID, roomID, ErrForbidden)
	}

	room, err := s.rooms.RoomByID(ctx, roomID)
	if errors.Is(err, rooms.ErrNotFound) {
		return nil, fmt.Errorf("room %s: %w", roomID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	now := s.clock().UTC()

	existing, err := s.store.FindActiveSessionForRoom(ctx, roomID)
	switch {
	case err == nil:
		if !existing.Abandoned(now) {
			// Idempotent short-circuit: one live session per room.
			return existing, nil
		}
		if err := s.forceEnd(ctx, existing, now); err != nil {
			return nil, err
		}
	case errors.Is(err, ErrNotFound):
	default:
		return nil, err
	}

	sess := &CallSession{
		RoomID:             roomID,
		SessionChannel:     NewSessionChannel(),
		InitiatorID:        userID,
		CallType:           callType,
		Status:             StatusRinging,
		StartedAt:          now,
		ActiveParticipants: []string{userID},
	}
	for _, memberID := range room.ParticipantIDs {
		p := Participant{UserID: memberID, Status: ParticipantInvited}
		if memberID == userID {
			p.Status = ParticipantJoined
			t := now
			p.JoinedAt = &t
		}
		sess.Participants = append(sess.Participants, p)
	}

	created, err := s.store.CreateSession(ctx, sess)
	if errors.Is(err, ErrWriteConflict) {
		// A concurrent initiator won the cross-process create guard; their
		// session is the room's live session, return it unchanged.
		winner, ferr := s.store.FindActiveSessionForRoom(ctx, roomID)
		if ferr != nil {
			return nil, err
		}
		return winner, nil
	}
	if err != nil {
		return nil, err
	}

	s.notifyInvitees(ctx, created, room)
	s.trail(ctx, func(a *audit.Service) error {
		return a.CallStarted(ctx, roomID, created.ID, userID, string(callType))
	})
	return created, nil
}

// Get returns the session when userID is one of its participants.
func (s *Service) Get(ctx context.Context, userID, callID string) (*CallSession, error) {
	return s.fetchForParticipant(ctx, userID, callID)
}

// Decline marks an invited participant as declined. Late declines, repeated
// declines and declines against an ended session are accepted as a no-op.
func (s *Service) Decline(ctx context.Context, userID, callID string) (*CallSession, error) {
	sess, err := s.fetchForParticipant(ctx, userID, callID)
	if err != nil {
		return nil, err
	}
	p := sess.ParticipantByID(userID)
	if sess.Status == StatusEnded || p.Status != ParticipantInvited {
		return sess, nil
	}

	declined := ParticipantDeclined
	var updated *CallSession
	err = withWriteRetry(ctx, func() error {
		u, err := s.store.ConditionalUpdateParticipant(ctx, callID, userID, ParticipantUpdate{Status: &declined})
		if err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.trail(ctx, func(a *audit.Service) error {
		return a.ParticipantEvent(ctx, audit.EventTypeDeclined, updated.RoomID, callID, userID)
	})
	return updated, nil
}

// Join connects userID to the call: participant becomes joined, enters the
// active set, and the session goes active once two participants are
// connected. Any pending abandonment timer is cancelled.
func (s *Service) Join(ctx context.Context, userID, callID string) (*CallSession, error) {
	sess, err := s.fetchForParticipant(ctx, userID, callID)
	if err != nil {
		return nil, err
	}
	if sess.Status == StatusEnded {
		return nil, fmt.Errorf("call %s: %w", callID, ErrCallEnded)
	}
	p := sess.ParticipantByID(userID)
	switch p.Status {
	case ParticipantInvited, ParticipantJoined:
	default:
		// Forward-only: left/declined/missed never re-enter the call.
		return nil, fmt.Errorf("participant %s is %s: %w", userID, p.Status, ErrInvalidRequest)
	}

	now := s.clock().UTC()
	joined := ParticipantJoined
	upd := ParticipantUpdate{Status: &joined, AddActive: true}
	if p.Status == ParticipantInvited {
		t := now
		upd.JoinedAt = &t
	}

	var updated *CallSession
	err = withWriteRetry(ctx, func() error {
		u, err := s.store.ConditionalUpdateParticipant(ctx, callID, userID, upd)
		if err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	if updated.Status == StatusEnded && !updated.IsActive(userID) {
		// The session ended while this join was in flight; the write was a
		// no-op against terminal state.
		return nil, fmt.Errorf("call %s: %w", callID, ErrCallEnded)
	}

	s.timers.Cancel(callID)

	s.emitToSession(ctx, updated, realtime.EventParticipantJoined, realtime.ParticipantJoined{
		CallID:             callID,
		UserID:             userID,
		Status:             string(updated.Status),
		ActiveParticipants: updated.ActiveParticipants,
	})
	s.trail(ctx, func(a *audit.Service) error {
		return a.ParticipantEvent(ctx, audit.EventTypeParticipantJoin, updated.RoomID, callID, userID)
	})
	return updated, nil
}

// Leave disconnects userID from the call and reports whether the call ended
// as a result. When the active set drains to zero the session is terminated;
// when exactly one participant remains an abandonment timer is armed.
func (s *Service) Leave(ctx context.Context, userID, callID string) (bool, error) {
	sess, err := s.store.FindSessionByID(ctx, callID)
	if errors.Is(err, ErrNotFound) {
		return false, fmt.Errorf("call %s: %w", callID, ErrNotFound)
	}
	if err != nil {
		return false, err
	}
	p := sess.ParticipantByID(userID)
	if p == nil {
		return false, fmt.Errorf("user %s is not part of call %s: %w", userID, callID, ErrForbidden)
	}
	if sess.Status == StatusEnded {
		return true, nil
	}

	now := s.clock().UTC()
	upd := ParticipantUpdate{RemoveActive: true}
	if p.Status == ParticipantJoined {
		left := ParticipantLeft
		t := now
		upd.Status = &left
		upd.LeftAt = &t
	}

	var updated *CallSession
	err = withWriteRetry(ctx, func() error {
		u, err := s.store.ConditionalUpdateParticipant(ctx, callID, userID, upd)
		if err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		return false, err
	}

	ended := updated.Status == StatusEnded
	if !ended && len(updated.ActiveParticipants) == 0 {
		if err := s.forceEnd(ctx, updated, now); err != nil {
			return false, err
		}
		ended = updated.Status == StatusEnded
	}

	switch {
	case ended:
		s.timers.Cancel(callID)
	case len(updated.ActiveParticipants) == 1:
		s.timers.Schedule(callID, abandonAfter, s.abandonmentTask(callID))
	default:
		s.timers.Cancel(callID)
	}

	s.emitToSession(ctx, updated, realtime.EventParticipantLeft, realtime.ParticipantLeft{
		CallID:             callID,
		UserID:             userID,
		ActiveParticipants: updated.ActiveParticipants,
		Ended:              ended,
	})
	s.trail(ctx, func(a *audit.Service) error {
		return a.ParticipantEvent(ctx, audit.EventTypeParticipantLeft, updated.RoomID, callID, userID)
	})
	if ended {
		s.trail(ctx, func(a *audit.Service) error {
			return a.CallEnded(ctx, updated.RoomID, callID, "all_participants_left")
		})
	}
	return ended, nil
}

/* ===================== INTERNAL ===================== */

func (s *Service) fetchForParticipant(ctx context.Context, userID, callID string) (*CallSession, error) {
	if userID == "" || callID == "" {
		return nil, fmt.Errorf("user id and call id are required: %w", ErrInvalidRequest)
	}
	sess, err := s.store.FindSessionByID(ctx, callID)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("call %s: %w", callID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if sess.ParticipantByID(userID) == nil {
		return nil, fmt.Errorf("user %s is not part of call %s: %w", userID, callID, ErrForbidden)
	}
	return sess, nil
}

// forceEnd terminates a session: terminal transition, guarded save, timer
// cleanup. It re-reads the session on every attempt so a racing writer only
// costs a retry, and leaves sess holding the final stored state.
func (s *Service) forceEnd(ctx context.Context, sess *CallSession, now time.Time) error {
	err := withWriteRetry(ctx, func() error {
		cur, err := s.store.FindSessionByID(ctx, sess.ID)
		if err != nil {
			return err
		}
		if cur.Status != StatusEnded {
			cur.End(now)
			if err := s.store.SaveSession(ctx, cur); err != nil {
				return err
			}
		}
		*sess = *cur
		return nil
	})
	if err != nil {
		return err
	}
	s.timers.Cancel(sess.ID)
	return nil
}

// notifyInvitees delivers call_invite to every reachable invited member,
// excluding the initiator, and records notification flags. All failures here
// are logged and swallowed; the initiate call already succeeded.
func (s *Service) notifyInvitees(ctx context.Context, sess *CallSession, room rooms.Room) {
	log := logger.From(ctx)

	sockets, err := s.dispatcher.ConnectedSockets(ctx, realtime.RoomChannel(room.ID))
	if err != nil {
		log.Warn("socket presence lookup failed", "room_id", room.ID, "call_id", sess.ID, "err", err)
		return
	}
	online := map[string]bool{}
	for _, ref := range sockets {
		if ref.UserID != sess.InitiatorID {
			online[ref.UserID] = true
		}
	}

	roster := make([]realtime.Invitee, 0, len(sess.Participants))
	for _, p := range sess.Participants {
		roster = append(roster, realtime.Invitee{UserID: p.UserID, Status: string(p.Status)})
	}
	invite := realtime.CallInvite{
		CallID:         sess.ID,
		SessionChannel: sess.SessionChannel,
		RoomID:         room.ID,
		RoomName:       room.Name,
		CallType:       string(sess.CallType),
		InitiatorID:    sess.InitiatorID,
		Participants:   roster,
	}

	for i := range sess.Participants {
		p := &sess.Participants[i]
		if p.UserID == sess.InitiatorID || p.Status != ParticipantInvited || !online[p.UserID] {
			continue
		}

		sent, delivered := true, true
		if err := s.dispatcher.EmitToUser(ctx, p.UserID, realtime.EventCallInvite, invite); err != nil {
			delivered = false
			log.Warn("call invite delivery failed", "call_id", sess.ID, "user_id", p.UserID, "err", err)
		}

		upd := ParticipantUpdate{NotificationSent: &sent, NotificationDelivered: &delivered}
		if _, err := s.store.ConditionalUpdateParticipant(ctx, sess.ID, p.UserID, upd); err != nil {
			log.Warn("notification flag persist failed", "call_id", sess.ID, "user_id", p.UserID, "err", err)
			continue
		}
		p.NotificationSent = sent
		p.NotificationDelivered = delivered
	}
}

// abandonmentTask is the action armed in the timer registry when a session is
// down to one active participant.
func (s *Service) abandonmentTask(callID string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		s.sweepAbandoned(ctx, callID)
	}
}

// sweepAbandoned re-validates the session and ends it when it is still at or
// below one active participant. Cancellation of the timer is best-effort, so
// state captured at scheduling time is never trusted here.
func (s *Service) sweepAbandoned(ctx context.Context, callID string) {
	log := slog.Default().With("call_id", callID)

	sess, err := s.store.FindSessionByID(ctx, callID)
	if errors.Is(err, ErrNotFound) {
		return
	}
	if err != nil {
		log.Warn("abandonment re-check failed", "err", err)
		return
	}
	if sess.Status == StatusEnded || len(sess.ActiveParticipants) > 1 {
		return
	}

	if err := s.forceEnd(ctx, sess, s.clock().UTC()); err != nil {
		log.Warn("abandonment end failed", "err", err)
		return
	}

	s.emitToSession(ctx, sess, realtime.EventCallEnded, realtime.CallEnded{
		CallID:   callID,
		Reason:   realtime.EndReasonNoParticipants,
		Duration: sess.DurationSeconds,
	})
	s.trail(ctx, func(a *audit.Service) error {
		return a.CallEnded(ctx, sess.RoomID, callID, realtime.EndReasonNoParticipants)
	})
}

// emitToSession broadcasts on the session channel, logging failures only.
func (s *Service) emitToSession(ctx context.Context, sess *CallSession, event string, payload any) {
	if err := s.dispatcher.EmitToChannel(ctx, sess.SessionChannel, event, payload); err != nil {
		logger.From(ctx).Warn("broadcast failed", "event", event, "call_id", sess.ID, "err", err)
	}
}

// trail appends to the audit log when configured; failures never propagate.
func (s *Service) trail(ctx context.Context, fn func(*audit.Service) error) {
	if s.audit == nil {
		return
	}
	if err := fn(s.audit); err != nil {
		logger.From(ctx).Warn("audit append failed", "err", err)
	}
}
