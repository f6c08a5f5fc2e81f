package audit

import "time"

// Event is one append-only record in the call lifecycle trail.
type Event struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	RoomID      string    `json:"room_id"`
	CallID      string    `json:"call_id"`
	ActorUserID string    `json:"actor_user_id,omitempty"`
	Message     string    `json:"message,omitempty"`
	Metadata    string    `json:"metadata,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type EventType string

const (
	EventTypeCallStarted     EventType = "call_started"
	EventTypeCallEnded       EventType = "call_ended"
	EventTypeParticipantJoin EventType = "participant_join"
	EventTypeParticipantLeft EventType = "participant_left"
	EventTypeDeclined        EventType = "declined"
)
