// Package realtime defines the notification fan-out boundary of the call
// backend. The core never touches raw connections; it talks to a Dispatcher
// and the transport layer (websocket gateways) implements it.
package realtime

import "context"

// SocketRef identifies one connected realtime endpoint and the user it
// belongs to.
type SocketRef struct {
	SocketID string `json:"socket_id"`
	UserID   string `json:"user_id"`
}

// Dispatcher delivers named events to subscribed sockets. Delivery is
// fire-and-forget from the caller's point of view: errors are for logging,
// never for failing the operation that triggered the event.
type Dispatcher interface {
	// EmitToChannel fans payload out to every socket subscribed to channel.
	EmitToChannel(ctx context.Context, channel, event string, payload any) error

	// EmitToUser delivers payload to every socket belonging to userID.
	EmitToUser(ctx context.Context, userID, event string, payload any) error

	// ConnectedSockets lists the sockets currently subscribed to channel.
	ConnectedSockets(ctx context.Context, channel string) ([]SocketRef, error)
}

const roomChannelPrefix = "room-"

// RoomChannel is the realtime channel a room's members subscribe to while
// online. Call invites consult its presence to decide who is reachable.
func RoomChannel(roomID string) string {
	return roomChannelPrefix + roomID
}
