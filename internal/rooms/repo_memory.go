package rooms

import (
	"context"
	"sync"
)

// MemoryDirectory is an in-memory Directory for tests.
type MemoryDirectory struct {
	mu    sync.Mutex
	rooms map[string]Room
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{rooms: map[string]Room{}}
}

func (d *MemoryDirectory) Put(r Room) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rooms[r.ID] = r
}

func (d *MemoryDirectory) RoomByID(ctx context.Context, id string) (Room, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.rooms[id]
	if !ok {
		return Room{}, ErrNotFound
	}
	out := r
	out.ParticipantIDs = append([]string(nil), r.ParticipantIDs...)
	return out, nil
}

func (d *MemoryDirectory) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	r, err := d.RoomByID(ctx, roomID)
	if err != nil {
		return false, err
	}
	return r.HasParticipant(userID), nil
}
