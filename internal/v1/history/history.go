// Package history implements the per-room bounded replay buffer (spec
// §4.3): a capped deque of recently sent messages per room, with TTL and
// idle-room eviction so the cache never grows unbounded across the
// process lifetime.
package history

import (
	"container/list"
	"sort"
	"sync"
	"time"

	"github.com/nimbusroom/roomsrv/internal/v1/metrics"
	"github.com/nimbusroom/roomsrv/internal/v1/wire"
)

// StoredMessage is a server-message value retained for replay, tagged with
// the room it belongs to and its insertion instant in unix millis.
type StoredMessage struct {
	RoomID      string
	Message     wire.ServerMessage
	InsertedAtMillis int64
}

// storableKinds is the set of outbound kinds retained in history (spec
// §4.3): presence churn (position, typing) and signaling are never stored.
var storableKinds = map[string]struct{}{
	wire.TypeChatMessage:   {},
	wire.TypeEmotion:       {},
	wire.TypeInteraction:   {},
	wire.TypeUserJoined:    {},
	wire.TypeUserLeft:      {},
	wire.TypeSceneChange:   {},
	wire.TypeWeatherChange: {},
	wire.TypeTimeChange:    {},
}

// IsStorable reports whether a server-message kind belongs in history.
func IsStorable(kind string) bool {
	_, ok := storableKinds[kind]
	return ok
}

// Config holds the history cache's tunable parameters.
type Config struct {
	// MaxMessagesPerRoom caps the length of each room's replay deque.
	MaxMessagesPerRoom int
	// MaxRoomsInCache caps the number of room entries tracked at once.
	MaxRoomsInCache int
	// TTL is the maximum age of a history entry before it is swept.
	TTL time.Duration
	// IdleThreshold is how long a room must be untouched before it is
	// eligible for whole-entry eviction once the cache is over capacity.
	IdleThreshold time.Duration
	// ReplayCount is how many of the most recent entries are replayed to a
	// newly authenticated connection.
	ReplayCount int
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxMessagesPerRoom: 100,
		MaxRoomsInCache:    200,
		TTL:                24 * time.Hour,
		IdleThreshold:      4 * time.Hour,
		ReplayCount:        20,
	}
}

type roomHistory struct {
	mu           sync.Mutex
	entries      *list.List // of StoredMessage, oldest at Front
	lastAccessed time.Time
}

// Cache is the process-wide per-room history store. Safe for concurrent
// use; each room's deque is guarded by its own lock so that writes to one
// room never block another (spec §5).
type Cache struct {
	cfg Config

	mu    sync.Mutex
	rooms map[string]*roomHistory
}

// New creates a Cache using cfg.
func New(cfg Config) *Cache {
	return &Cache{
		cfg:   cfg,
		rooms: make(map[string]*roomHistory),
	}
}

func (c *Cache) roomFor(roomID string, now time.Time) *roomHistory {
	c.mu.Lock()
	defer c.mu.Unlock()

	rh, ok := c.rooms[roomID]
	if !ok {
		rh = &roomHistory{entries: list.New(), lastAccessed: now}
		c.rooms[roomID] = rh
	}
	return rh
}

// Append stores msg for roomID if its kind is storable, evicting from the
// front of that room's deque until it is under the configured cap.
func (c *Cache) Append(roomID string, msg wire.ServerMessage, nowMillis int64) {
	if !IsStorable(msg.Type) {
		return
	}

	now := time.UnixMilli(nowMillis)
	rh := c.roomFor(roomID, now)

	rh.mu.Lock()
	defer rh.mu.Unlock()

	rh.lastAccessed = now
	for rh.entries.Len() >= c.cfg.MaxMessagesPerRoom {
		rh.entries.Remove(rh.entries.Front())
		metrics.HistoryEvictions.WithLabelValues("cap").Inc()
	}
	rh.entries.PushBack(StoredMessage{RoomID: roomID, Message: msg, InsertedAtMillis: nowMillis})
	metrics.HistoryMessagesStored.WithLabelValues(roomID).Set(float64(rh.entries.Len()))
}

// Replay returns up to ReplayCount of the most recent stored messages for
// roomID, in insertion order, for delivery to a newly authenticated
// connection (spec §4.3).
func (c *Cache) Replay(roomID string, nowMillis int64) []StoredMessage {
	now := time.UnixMilli(nowMillis)
	rh := c.roomFor(roomID, now)

	rh.mu.Lock()
	defer rh.mu.Unlock()

	rh.lastAccessed = now
	n := rh.entries.Len()
	if n == 0 {
		return nil
	}
	skip := n - c.cfg.ReplayCount
	if skip < 0 {
		skip = 0
	}

	out := make([]StoredMessage, 0, n-skip)
	i := 0
	for e := rh.entries.Front(); e != nil; e = e.Next() {
		if i >= skip {
			out = append(out, e.Value.(StoredMessage))
		}
		i++
	}
	return out
}

// Len reports the current number of stored entries for roomID, for tests
// and diagnostics.
func (c *Cache) Len(roomID string) int {
	c.mu.Lock()
	rh, ok := c.rooms[roomID]
	c.mu.Unlock()
	if !ok {
		return 0
	}
	rh.mu.Lock()
	defer rh.mu.Unlock()
	return rh.entries.Len()
}

// RoomCount reports how many room entries the cache currently tracks.
func (c *Cache) RoomCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rooms)
}

// SweepTTL drops entries older than cfg.TTL from every room. Intended to
// run hourly (spec §4.3).
func (c *Cache) SweepTTL(now time.Time) int {
	cutoff := now.Add(-c.cfg.TTL).UnixMilli()

	c.mu.Lock()
	rooms := make([]*roomHistory, 0, len(c.rooms))
	for _, rh := range c.rooms {
		rooms = append(rooms, rh)
	}
	c.mu.Unlock()

	evicted := 0
	for _, rh := range rooms {
		rh.mu.Lock()
		for e := rh.entries.Front(); e != nil; {
			next := e.Next()
			if e.Value.(StoredMessage).InsertedAtMillis < cutoff {
				rh.entries.Remove(e)
				evicted++
			}
			e = next
		}
		rh.mu.Unlock()
	}
	if evicted > 0 {
		metrics.HistoryEvictions.WithLabelValues("ttl").Add(float64(evicted))
	}
	return evicted
}

// SweepIdleRooms drops whole room entries once the cache is over its
// MaxRoomsInCache capacity, removing the least-recently-accessed rooms
// that have been idle for at least IdleThreshold (spec §4.3). Eviction
// order is by last-accessed ascending.
func (c *Cache) SweepIdleRooms(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.rooms) <= c.cfg.MaxRoomsInCache {
		return 0
	}

	type candidate struct {
		id           string
		lastAccessed time.Time
	}
	candidates := make([]candidate, 0, len(c.rooms))
	cutoff := now.Add(-c.cfg.IdleThreshold)
	for id, rh := range c.rooms {
		rh.mu.Lock()
		idle := rh.lastAccessed.Before(cutoff)
		last := rh.lastAccessed
		rh.mu.Unlock()
		if idle {
			candidates = append(candidates, candidate{id: id, lastAccessed: last})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].lastAccessed.Before(candidates[j].lastAccessed)
	})

	evicted := 0
	for _, cand := range candidates {
		if len(c.rooms) <= c.cfg.MaxRoomsInCache {
			break
		}
		delete(c.rooms, cand.id)
		metrics.HistoryEvictions.WithLabelValues("idle-room").Inc()
		metrics.HistoryMessagesStored.DeleteLabelValues(cand.id)
		evicted++
	}
	return evicted
}
