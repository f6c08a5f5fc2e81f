package realtime

import (
	"context"
	"sync"
)

// MemoryDispatcher is an in-process Dispatcher for tests. It records every
// emit and serves presence from a settable map.
type MemoryDispatcher struct {
	mu sync.Mutex

	channelEvents map[string][]RecordedEvent
	userEvents    map[string][]RecordedEvent
	presence      map[string][]SocketRef

	// FailEmits makes every emit return an error, for exercising the
	// fire-and-forget policy.
	FailEmits error
}

type RecordedEvent struct {
	Event   string
	Payload any
}

func NewMemoryDispatcher() *MemoryDispatcher {
	return &MemoryDispatcher{
		channelEvents: map[string][]RecordedEvent{},
		userEvents:    map[string][]RecordedEvent{},
		presence:      map[string][]SocketRef{},
	}
}

func (d *MemoryDispatcher) EmitToChannel(ctx context.Context, channel, event string, payload any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailEmits != nil {
		return d.FailEmits
	}
	d.channelEvents[channel] = append(d.channelEvents[channel], RecordedEvent{Event: event, Payload: payload})
	return nil
}

func (d *MemoryDispatcher) EmitToUser(ctx context.Context, userID, event string, payload any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailEmits != nil {
		return d.FailEmits
	}
	d.userEvents[userID] = append(d.userEvents[userID], RecordedEvent{Event: event, Payload: payload})
	return nil
}

func (d *MemoryDispatcher) ConnectedSockets(ctx context.Context, channel string) ([]SocketRef, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]SocketRef(nil), d.presence[channel]...), nil
}

// Connect registers a fake socket in channel.
func (d *MemoryDispatcher) Connect(channel, socketID, userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.presence[channel] = append(d.presence[channel], SocketRef{SocketID: socketID, UserID: userID})
}

// ChannelEvents returns the events emitted to channel, in order.
func (d *MemoryDispatcher) ChannelEvents(channel string) []RecordedEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]RecordedEvent(nil), d.channelEvents[channel]...)
}

// UserEvents returns the events emitted to userID, in order.
func (d *MemoryDispatcher) UserEvents(userID string) []RecordedEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]RecordedEvent(nil), d.userEvents[userID]...)
}
