package roomstate

import (
	"errors"
	"sync"
)

// ErrRoomCapExceeded is returned when a room would need to be created but
// the server-wide room cap has already been reached.
var ErrRoomCapExceeded = errors.New("roomstate: room cap exceeded")

// Registry owns the process-wide map of active rooms. Rooms are created
// lazily on first authenticated join and persist for the process lifetime
// (spec §3, Lifecycle) — there is no explicit room teardown, only history
// eviction of idle room state in a separate package.
type Registry struct {
	mu       sync.Mutex
	rooms    map[string]*Room
	capacity int
	roomCap  int
}

// NewRegistry creates a registry enforcing maxRooms and roomUserCapacity
// per newly created room.
func NewRegistry(maxRooms, roomUserCapacity int) *Registry {
	return &Registry{
		rooms:    make(map[string]*Room),
		capacity: roomUserCapacity,
		roomCap:  maxRooms,
	}
}

// GetOrCreate returns the existing room for id, or creates one if the
// server-wide room cap allows it.
func (reg *Registry) GetOrCreate(id string, now int64) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if room, ok := reg.rooms[id]; ok {
		return room, nil
	}

	if len(reg.rooms) >= reg.roomCap {
		return nil, ErrRoomCapExceeded
	}

	room := NewRoom(id, id, reg.capacity, now)
	reg.rooms[id] = room
	return room, nil
}

// Get returns the room for id without creating it.
func (reg *Registry) Get(id string) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	room, ok := reg.rooms[id]
	return room, ok
}

// RoomCount returns the number of active rooms.
func (reg *Registry) RoomCount() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

// MaxRooms returns the server-wide room cap the registry enforces.
func (reg *Registry) MaxRooms() int {
	return reg.roomCap
}

// Rooms returns a snapshot slice of all active rooms.
func (reg *Registry) Rooms() []*Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		out = append(out, r)
	}
	return out
}
