// Package hub implements the connection hub (spec §4.6): socket accept,
// upgrade, per-connection send channel ownership, and the
// connection<->user<->room address book that the dispatcher fans out
// through.
package hub

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/nimbusroom/roomsrv/internal/v1/health"
	"github.com/nimbusroom/roomsrv/internal/v1/logging"
	"github.com/nimbusroom/roomsrv/internal/v1/metrics"
)

// acceptRate throttles new connection attempts per source IP, independent
// of and ahead of the per-message rate limiter in internal/v1/ratelimit
// (SPEC_FULL §5 supplement: "Connection-level accept throttling", grounded on
// the teacher's ratelimit.CheckWebSocket / wsIP limiter).
const acceptRate = "20-S"

// MessageHandler receives decoded connection lifecycle events from the
// hub. internal/v1/dispatcher implements this to own all domain logic;
// the hub itself never interprets a frame's contents.
type MessageHandler interface {
	HandleConnect(conn *Connection)
	HandleFrame(conn *Connection, raw []byte)
	HandleDisconnect(conn *Connection)
}

// Hub owns the process-wide connection table and the room/user indexes
// used for addressed and broadcast sends (spec §4.6, §5).
type Hub struct {
	maxConnections int
	handler        MessageHandler

	upgrader    websocket.Upgrader
	acceptLimit *limiter.Limiter

	mu          sync.RWMutex
	byID        map[string]*Connection
	byUser      map[string]string            // userID -> connID, single-binding policy (SPEC_FULL §6.1)
	roomMembers map[string]map[string]struct{} // roomID -> set of connID
}

// New creates a Hub enforcing maxConnections concurrently open sockets.
// Set Handler before accepting traffic.
func New(maxConnections int, corsOrigins []string) *Hub {
	rate, err := limiter.NewRateFromFormatted(acceptRate)
	if err != nil {
		// acceptRate is a compile-time constant; a parse failure here is a
		// programmer error, not a runtime condition.
		panic("hub: invalid acceptRate literal: " + err.Error())
	}

	h := &Hub{
		maxConnections: maxConnections,
		acceptLimit:    limiter.New(memory.NewStore(), rate),
		byID:           make(map[string]*Connection),
		byUser:         make(map[string]string),
		roomMembers:    make(map[string]map[string]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if len(corsOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range corsOrigins {
				if allowed == origin {
					return true
				}
			}
			return false
		},
	}
	return h
}

// SetHandler wires the dispatcher into the hub. Must be called before
// Accept is used.
func (h *Hub) SetHandler(handler MessageHandler) {
	h.handler = handler
}

// Accept upgrades an HTTP request to a socket connection and registers it
// with the hub. It enforces, in order: per-IP accept throttling, the
// server-wide connection cap, then the upgrade handshake itself (spec
// §4.6, §6 TCP_NODELAY).
func (h *Hub) Accept(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ip := clientIP(r)

	limCtx, err := h.acceptLimit.Get(ctx, ip)
	if err == nil && limCtx.Reached {
		metrics.ConnectionsRejected.WithLabelValues("accept_throttle").Inc()
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	}

	h.mu.RLock()
	atCapacity := len(h.byID) >= h.maxConnections
	h.mu.RUnlock()
	if atCapacity {
		metrics.ConnectionsRejected.WithLabelValues("capacity").Inc()
		http.Error(w, "server at capacity", http.StatusServiceUnavailable)
		return
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn(ctx, "websocket upgrade failed")
		return
	}

	if tcpConn, ok := wsConn.UnderlyingConn().(interface{ SetNoDelay(bool) error }); ok {
		_ = tcpConn.SetNoDelay(true)
	}

	conn := newConnection(uuid.NewString(), wsConn)

	h.mu.Lock()
	h.byID[conn.ID] = conn
	h.mu.Unlock()

	metrics.IncConnection()
	if h.handler != nil {
		h.handler.HandleConnect(conn)
	}

	go conn.writePump()
	go conn.readPump(
		func(raw []byte) {
			if h.handler != nil {
				h.handler.HandleFrame(conn, raw)
			}
		},
		func() {
			h.remove(conn)
			metrics.DecConnection()
			if h.handler != nil {
				h.handler.HandleDisconnect(conn)
			}
		},
	)
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	return r.RemoteAddr
}

// BindUser associates userID with conn, per the single-binding policy:
// authenticating a user id that already has a bound connection evicts the
// older connection (SPEC_FULL §6.1) rather than leaving send-to-user
// ambiguous between two sockets.
func (h *Hub) BindUser(conn *Connection, userID string) {
	h.mu.Lock()
	oldConnID, exists := h.byUser[userID]
	h.byUser[userID] = conn.ID
	h.mu.Unlock()

	conn.setUserID(userID)

	if exists && oldConnID != conn.ID {
		if old, ok := h.getByID(oldConnID); ok {
			old.markSuperseded()
			h.SendToConnection(old.ID, []byte(`{"type":"system","message":"Connection replaced by a newer authentication for this user."}`))
			old.closeSend()
		}
	}
}

// BindRoom associates conn with roomID for broadcast addressing.
func (h *Hub) BindRoom(conn *Connection, roomID string) {
	h.mu.Lock()
	if prev := conn.RoomID(); prev != "" {
		if members, ok := h.roomMembers[prev]; ok {
			delete(members, conn.ID)
		}
	}
	members, ok := h.roomMembers[roomID]
	if !ok {
		members = make(map[string]struct{})
		h.roomMembers[roomID] = members
	}
	members[conn.ID] = struct{}{}
	h.mu.Unlock()

	conn.setRoomID(roomID)
}

func (h *Hub) remove(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.byID, conn.ID)
	if h.byUser[conn.UserID()] == conn.ID {
		delete(h.byUser, conn.UserID())
	}
	if roomID := conn.RoomID(); roomID != "" {
		if members, ok := h.roomMembers[roomID]; ok {
			delete(members, conn.ID)
			if len(members) == 0 {
				delete(h.roomMembers, roomID)
			}
		}
	}
}

func (h *Hub) getByID(connID string) (*Connection, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.byID[connID]
	return c, ok
}

// SendToConnection enqueues frame for delivery to connID, dropping it
// silently if that connection's channel is closed or full (spec §4.6).
func (h *Hub) SendToConnection(connID string, frame []byte) {
	conn, ok := h.getByID(connID)
	if !ok || conn.IsClosed() {
		return
	}
	conn.enqueue(frame)
}

// SendToUser enqueues frame for delivery to the connection currently
// bound to userID, if any (spec §4.6; ambiguity resolved per SPEC_FULL
// §6.1 by forbidding duplicate auth, so this is always unambiguous).
func (h *Hub) SendToUser(userID string, frame []byte) {
	h.mu.RLock()
	connID, ok := h.byUser[userID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	h.SendToConnection(connID, frame)
}

// BroadcastToRoom enqueues frame to every connection bound to roomID,
// skipping excludeUserID's connection when non-empty (spec §4.6).
func (h *Hub) BroadcastToRoom(roomID string, frame []byte, excludeUserID string) {
	h.mu.RLock()
	members := h.roomMembers[roomID]
	targets := make([]*Connection, 0, len(members))
	for connID := range members {
		if conn, ok := h.byID[connID]; ok {
			targets = append(targets, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		if excludeUserID != "" && conn.UserID() == excludeUserID {
			continue
		}
		if conn.IsClosed() {
			continue
		}
		conn.enqueue(frame)
	}
}

// Stats satisfies health.CapacityChecker.
func (h *Hub) Stats() health.CapacityStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return health.CapacityStats{
		Connections:    len(h.byID),
		MaxConnections: h.maxConnections,
		Rooms:          len(h.roomMembers),
	}
}

// ConnectionCount reports the number of currently open connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byID)
}
