package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// sendQueueDepth bounds each connection's outbound frame channel. The
// source this design is based on uses an unbounded queue (spec §9,
// "Unbounded send queues"); this implementation takes the recommended
// hardening and drops the newest frame once a connection's backlog hits
// the high-water mark, instead of growing memory without limit.
const sendQueueDepth = 1024

// writeWait bounds how long a single frame write may take before the
// writer pump gives up on a stalled peer.
const writeWait = 10 * time.Second

// Connection is one client's socket binding (spec §3). UserID starts
// equal to ID and is overwritten in place on successful auth; RoomID is
// empty until the connection joins a room.
type Connection struct {
	ID   string
	conn *websocket.Conn

	mu     sync.RWMutex
	userID string
	roomID string

	send       chan []byte
	closeOnce  sync.Once
	closed     bool
	superseded bool
}

func newConnection(id string, conn *websocket.Conn) *Connection {
	c := &Connection{
		ID:     id,
		conn:   conn,
		userID: id,
		send:   make(chan []byte, sendQueueDepth),
	}
	return c
}

// UserID returns the connection's current effective user id.
func (c *Connection) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// RoomID returns the connection's bound room id, or "" if unbound.
func (c *Connection) RoomID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomID
}

func (c *Connection) setUserID(userID string) {
	c.mu.Lock()
	c.userID = userID
	c.mu.Unlock()
}

func (c *Connection) setRoomID(roomID string) {
	c.mu.Lock()
	c.roomID = roomID
	c.mu.Unlock()
}

// enqueue appends one serialized frame to the connection's send channel.
// It never blocks: a full channel (a stalled or abandoned peer) causes the
// frame to be dropped rather than grow its backlog unboundedly. Holding
// c.mu for the whole check-and-send keeps enqueue and closeSend mutually
// exclusive, so a frame is never sent on a channel closeSend has already
// closed.
func (c *Connection) enqueue(frame []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// closeSend closes the send channel exactly once, signaling the writer
// pump to drain and exit. Taking c.mu's write lock before closing waits
// out any enqueue already in flight, so enqueue and close never race.
func (c *Connection) closeSend() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.send)
	})
}

// IsClosed reports whether the connection's send side has been shut down.
func (c *Connection) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// markSuperseded flags conn as replaced by a newer authentication for the
// same user id (hub's single-binding eviction policy, SPEC_FULL §6.1).
func (c *Connection) markSuperseded() {
	c.mu.Lock()
	c.superseded = true
	c.mu.Unlock()
}

// Superseded reports whether a newer authentication has already taken over
// this connection's user binding. Disconnect cleanup uses this to avoid
// tearing down room state the newer connection now owns.
func (c *Connection) Superseded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.superseded
}

// writePump drains the send channel into the socket until it is closed or
// a write fails. It owns the only writer of the underlying connection, so
// outbound delivery order matches enqueue order (spec §5).
func (c *Connection) writePump() {
	defer c.conn.Close()

	for frame := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump reads frames from the socket and hands each to handleFrame
// until the socket closes or errors, then runs onDisconnect exactly once.
// A single reader goroutine per connection preserves per-connection FIFO
// processing order (spec §5).
func (c *Connection) readPump(handleFrame func(raw []byte), onDisconnect func()) {
	defer func() {
		c.closeSend()
		onDisconnect()
	}()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		handleFrame(data)
	}
}
