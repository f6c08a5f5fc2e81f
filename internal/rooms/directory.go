// Package rooms is the read-only view of chat rooms and their membership
// that call orchestration depends on. Room management itself lives in the
// chat service; this package only answers lookups.
package rooms

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("rooms: not found")

type Room struct {
	ID             string   `json:"room_id"`
	Name           string   `json:"name"`
	ParticipantIDs []string `json:"participant_ids"`
}

func (r Room) HasParticipant(userID string) bool {
	for _, id := range r.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

type Directory interface {
	// RoomByID returns the room or ErrNotFound.
	RoomByID(ctx context.Context, id string) (Room, error)

	// IsMember reports whether userID belongs to roomID. ErrNotFound when
	// the room does not exist.
	IsMember(ctx context.Context, roomID, userID string) (bool, error)
}
