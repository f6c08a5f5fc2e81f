package realtime

import "time"

// Event names are a wire contract; connected clients switch on them.
const (
	EventCallInvite        = "call_invite"
	EventParticipantJoined = "participant_joined"
	EventParticipantLeft   = "participant_left"
	EventCallEnded         = "call_ended"
)

// End reasons carried by call_ended.
const (
	EndReasonNoParticipants = "no_participants"
)

// Invitee is one roster entry in a call_invite payload.
type Invitee struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

// CallInvite is delivered to each reachable invited member when a call
// starts, excluding the initiator.
type CallInvite struct {
	CallID         string    `json:"call_id"`
	SessionChannel string    `json:"session_channel"`
	RoomID         string    `json:"room_id"`
	RoomName       string    `json:"room_name"`
	CallType       string    `json:"call_type"`
	InitiatorID    string    `json:"initiator_id"`
	Participants   []Invitee `json:"participants"`
}

// ParticipantJoined is broadcast on the session channel after a join.
type ParticipantJoined struct {
	CallID             string   `json:"call_id"`
	UserID             string   `json:"user_id"`
	Status             string   `json:"status"`
	ActiveParticipants []string `json:"active_participants"`
}

// ParticipantLeft is broadcast on the session channel after a leave.
type ParticipantLeft struct {
	CallID             string   `json:"call_id"`
	UserID             string   `json:"user_id"`
	ActiveParticipants []string `json:"active_participants"`
	Ended              bool     `json:"ended"`
}

// CallEnded is broadcast on the session channel when a session is terminated
// outside a leave request, e.g. by the abandonment timer.
type CallEnded struct {
	CallID   string `json:"call_id"`
	Reason   string `json:"reason"`
	Duration int    `json:"duration"`
}

// Envelope is the serialized form published to the transport.
type Envelope struct {
	Event   string    `json:"event"`
	Payload any       `json:"payload"`
	SentAt  time.Time `json:"sent_at"`
}
