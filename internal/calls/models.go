package calls

import (
	"time"

	"github.com/google/uuid"
)

// CallSession is a group call attached to a chat room.
//
// Ownership invariant: all mutations go through the lifecycle Service; the
// store is the system of record and nothing caches a session across requests.
//
// State invariants:
// - at most one non-ended session per room
// - ActiveParticipants is a subset of participants whose status is "joined"
// - Status is "active" iff two or more participants are active
// - "ended" is terminal; duration is only computed at end

type CallSession struct {
	ID             string        `json:"call_id"`
	RoomID         string        `json:"room_id"`
	SessionChannel string        `json:"session_channel"`
	InitiatorID    string        `json:"initiator_id"`
	CallType       CallType      `json:"call_type"`
	Status         SessionStatus `json:"status"`

	Participants       []Participant `json:"participants"`
	ActiveParticipants []string      `json:"active_participants"`

	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds int        `json:"duration"`

	// Version is the optimistic-concurrency token maintained by the store.
	Version int64 `json:"-"`
}

// Participant is one invited room member's state within a session.
// Status moves forward only: invited -> joined|declined|missed, joined -> left.
type Participant struct {
	UserID   string            `json:"user_id"`
	Status   ParticipantStatus `json:"status"`
	JoinedAt *time.Time        `json:"joined_at,omitempty"`
	LeftAt   *time.Time        `json:"left_at,omitempty"`

	NotificationSent      bool `json:"notification_sent"`
	NotificationDelivered bool `json:"notification_delivered"`
}

type CallType string

const (
	CallTypeAudio CallType = "audio"
	CallTypeVideo CallType = "video"
)

func (t CallType) Valid() bool {
	return t == CallTypeAudio || t == CallTypeVideo
}

type SessionStatus string

const (
	StatusRinging SessionStatus = "ringing"
	StatusActive  SessionStatus = "active"
	StatusEnded   SessionStatus = "ended"
)

type ParticipantStatus string

const (
	ParticipantInvited  ParticipantStatus = "invited"
	ParticipantJoined   ParticipantStatus = "joined"
	ParticipantDeclined ParticipantStatus = "declined"
	ParticipantLeft     ParticipantStatus = "left"
	ParticipantMissed   ParticipantStatus = "missed"
)

const sessionChannelPrefix = "group-call-"

// NewSessionChannel returns a globally unique realtime channel token.
func NewSessionChannel() string {
	return sessionChannelPrefix + uuid.NewString()
}

// ParticipantByID returns a pointer into Participants for userID, or nil.
func (s *CallSession) ParticipantByID(userID string) *Participant {
	for i := range s.Participants {
		if s.Participants[i].UserID == userID {
			return &s.Participants[i]
		}
	}
	return nil
}

// IsActive reports whether userID is currently counted as connected.
func (s *CallSession) IsActive(userID string) bool {
	for _, id := range s.ActiveParticipants {
		if id == userID {
			return true
		}
	}
	return false
}

// AddActive adds userID to the active set. Set semantics: adding an
// already-active user is a no-op.
func (s *CallSession) AddActive(userID string) {
	if s.IsActive(userID) {
		return
	}
	s.ActiveParticipants = append(s.ActiveParticipants, userID)
}

// RemoveActive removes userID from the active set if present.
func (s *CallSession) RemoveActive(userID string) {
	out := s.ActiveParticipants[:0]
	for _, id := range s.ActiveParticipants {
		if id != userID {
			out = append(out, id)
		}
	}
	s.ActiveParticipants = out
}

// Abandoned reports whether this session should be force-ended before a new
// one may be created for its room: nobody is connected, or it has been stuck
// ringing past the staleness threshold.
func (s *CallSession) Abandoned(now time.Time) bool {
	if s.Status == StatusEnded {
		return false
	}
	if len(s.ActiveParticipants) == 0 {
		return true
	}
	return s.Status == StatusRinging && now.Sub(s.StartedAt) > staleRingingAfter
}

// End applies the terminal transition: status ended, duration computed,
// still-invited participants become missed, joined participants without a
// leave time get one. Calling End on an ended session is a no-op.
func (s *CallSession) End(now time.Time) {
	if s.Status == StatusEnded {
		return
	}
	endedAt := now
	s.Status = StatusEnded
	s.EndedAt = &endedAt
	s.DurationSeconds = int(endedAt.Sub(s.StartedAt) / time.Second)
	if s.DurationSeconds < 0 {
		s.DurationSeconds = 0
	}
	for i := range s.Participants {
		p := &s.Participants[i]
		switch p.Status {
		case ParticipantInvited:
			p.Status = ParticipantMissed
		case ParticipantJoined:
			if p.LeftAt == nil {
				t := endedAt
				p.LeftAt = &t
			}
		}
	}
	s.ActiveParticipants = nil
}

// Clone returns a deep copy. Stores hand out clones so callers never share
// backing slices with stored state.
func (s *CallSession) Clone() *CallSession {
	out := *s
	out.Participants = make([]Participant, len(s.Participants))
	copy(out.Participants, s.Participants)
	out.ActiveParticipants = make([]string, len(s.ActiveParticipants))
	copy(out.ActiveParticipants, s.ActiveParticipants)
	if s.EndedAt != nil {
		t := *s.EndedAt
		out.EndedAt = &t
	}
	for i := range out.Participants {
		if p := s.Participants[i]; p.JoinedAt != nil {
			t := *p.JoinedAt
			out.Participants[i].JoinedAt = &t
		}
		if p := s.Participants[i]; p.LeftAt != nil {
			t := *p.LeftAt
			out.Participants[i].LeftAt = &t
		}
	}
	return &out
}
