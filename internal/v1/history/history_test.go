package history

import (
	"testing"
	"time"

	"github.com/nimbusroom/roomsrv/internal/v1/wire"
)

func testConfig() Config {
	return Config{
		MaxMessagesPerRoom: 3,
		MaxRoomsInCache:    2,
		TTL:                time.Hour,
		IdleThreshold:      time.Minute,
		ReplayCount:        2,
	}
}

func TestAppend_IgnoresNonStorableKinds(t *testing.T) {
	c := New(testConfig())
	c.Append("room1", wire.ServerMessage{Type: wire.TypePositionUpdate}, 1000)
	if c.Len("room1") != 0 {
		t.Fatalf("expected position_update to be dropped, got len %d", c.Len("room1"))
	}
}

func TestAppend_EvictsFromFrontWhenOverCap(t *testing.T) {
	c := New(testConfig())
	for i := 0; i < 5; i++ {
		c.Append("room1", wire.ServerMessage{Type: wire.TypeChatMessage, Message: "m"}, int64(1000+i))
	}
	if got := c.Len("room1"); got != 3 {
		t.Fatalf("expected capped length 3, got %d", got)
	}
}

func TestReplay_ReturnsNewestInInsertionOrder(t *testing.T) {
	c := New(testConfig())
	c.Append("room1", wire.ServerMessage{Type: wire.TypeChatMessage, Message: "first"}, 1000)
	c.Append("room1", wire.ServerMessage{Type: wire.TypeChatMessage, Message: "second"}, 1001)
	c.Append("room1", wire.ServerMessage{Type: wire.TypeChatMessage, Message: "third"}, 1002)

	replay := c.Replay("room1", 1003)
	if len(replay) != 2 {
		t.Fatalf("expected replay count 2, got %d", len(replay))
	}
	if replay[0].Message.Message != "second" || replay[1].Message.Message != "third" {
		t.Fatalf("unexpected replay order: %+v", replay)
	}
}

func TestReplay_EmptyRoomReturnsNil(t *testing.T) {
	c := New(testConfig())
	if replay := c.Replay("nope", 1000); replay != nil {
		t.Fatalf("expected nil replay for unknown room, got %+v", replay)
	}
}

func TestSweepTTL_DropsOldEntriesOnly(t *testing.T) {
	c := New(Config{MaxMessagesPerRoom: 10, MaxRoomsInCache: 10, TTL: time.Minute, IdleThreshold: time.Hour, ReplayCount: 20})
	base := time.Unix(1_000_000, 0)
	c.Append("room1", wire.ServerMessage{Type: wire.TypeChatMessage}, base.UnixMilli())
	c.Append("room1", wire.ServerMessage{Type: wire.TypeChatMessage}, base.Add(2*time.Minute).UnixMilli())

	evicted := c.SweepTTL(base.Add(3 * time.Minute))
	if evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}
	if got := c.Len("room1"); got != 1 {
		t.Fatalf("expected 1 remaining entry, got %d", got)
	}
}

func TestSweepIdleRooms_NoOpUnderCapacity(t *testing.T) {
	c := New(testConfig())
	c.Append("room1", wire.ServerMessage{Type: wire.TypeChatMessage}, 1000)
	if evicted := c.SweepIdleRooms(time.Unix(1, 0).Add(time.Hour)); evicted != 0 {
		t.Fatalf("expected no eviction under capacity, got %d", evicted)
	}
}

func TestSweepIdleRooms_EvictsLeastRecentlyAccessedFirst(t *testing.T) {
	c := New(Config{MaxMessagesPerRoom: 10, MaxRoomsInCache: 1, TTL: time.Hour, IdleThreshold: time.Minute, ReplayCount: 20})
	base := time.Unix(1_000_000, 0)

	c.Append("old-room", wire.ServerMessage{Type: wire.TypeChatMessage}, base.UnixMilli())
	c.Append("new-room", wire.ServerMessage{Type: wire.TypeChatMessage}, base.Add(30*time.Second).UnixMilli())

	evicted := c.SweepIdleRooms(base.Add(2 * time.Minute))
	if evicted != 1 {
		t.Fatalf("expected 1 room eviction, got %d", evicted)
	}
	if c.RoomCount() != 1 {
		t.Fatalf("expected 1 remaining room, got %d", c.RoomCount())
	}
	if c.Len("old-room") != 0 {
		t.Error("expected old-room to be the one evicted")
	}
}
