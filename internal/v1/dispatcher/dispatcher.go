// Package dispatcher wires the codec, rate limiter, room/user model,
// history cache, and screen-share manager together and implements the
// fan-out table (spec §4.7). It is the only package that interprets a
// decoded client message; internal/v1/hub stays transport-only.
package dispatcher

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nimbusroom/roomsrv/internal/v1/history"
	"github.com/nimbusroom/roomsrv/internal/v1/hub"
	"github.com/nimbusroom/roomsrv/internal/v1/logging"
	"github.com/nimbusroom/roomsrv/internal/v1/metrics"
	"github.com/nimbusroom/roomsrv/internal/v1/ratelimit"
	"github.com/nimbusroom/roomsrv/internal/v1/roomstate"
	"github.com/nimbusroom/roomsrv/internal/v1/screenshare"
	"github.com/nimbusroom/roomsrv/internal/v1/wire"
)

// rateLimited is the set of inbound kinds the per-connection limiter
// applies to (spec §4.2); auth, ping, and every screen-share signaling
// kind are exempt for media-negotiation responsiveness.
var rateLimited = map[string]struct{}{
	wire.TypeChatMessage:   {},
	wire.TypePositionUpdate: {},
	wire.TypeEmotion:        {},
	wire.TypeInteraction:    {},
	wire.TypeTyping:         {},
	wire.TypeSceneChange:    {},
	wire.TypeWeatherChange:  {},
	wire.TypeTimeChange:     {},
}

// Dispatcher holds every collaborator named in spec §4.7 and implements
// hub.MessageHandler.
type Dispatcher struct {
	Hub         *hub.Hub
	Rooms       *roomstate.Registry
	Limiter     *ratelimit.Limiter
	History     *history.Cache
	Shares      *screenshare.Manager

	// Clock is overridable in tests; defaults to time.Now.
	Clock func() time.Time
}

// New constructs a Dispatcher from its collaborators.
func New(h *hub.Hub, rooms *roomstate.Registry, limiter *ratelimit.Limiter, hist *history.Cache, shares *screenshare.Manager) *Dispatcher {
	return &Dispatcher{
		Hub:     h,
		Rooms:   rooms,
		Limiter: limiter,
		History: hist,
		Shares:  shares,
		Clock:   time.Now,
	}
}

func (d *Dispatcher) now() time.Time {
	return d.Clock()
}

func (d *Dispatcher) nowMillis() int64 {
	return d.now().UnixMilli()
}

// HandleConnect is a no-op: a connection has nothing to do until it
// authenticates (spec §4.6, §4.7).
func (d *Dispatcher) HandleConnect(conn *hub.Connection) {}

// HandleFrame decodes one inbound frame and routes it per the fan-out
// table in spec §4.7. A malformed frame or unknown type produces a single
// error reply to the sender without terminating the connection (spec
// §4.1, §7).
func (d *Dispatcher) HandleFrame(conn *hub.Connection, raw []byte) {
	msg, err := wire.Decode(raw)
	if err != nil {
		logging.Warn(context.Background(), "dropping malformed or unknown frame", zap.Error(err))
		d.replyError(conn, "Malformed or unrecognized message.")
		metrics.InboundMessages.WithLabelValues("unknown", "rejected").Inc()
		return
	}

	start := time.Now()
	status := "ok"
	defer func() {
		metrics.InboundMessages.WithLabelValues(msg.Type, status).Inc()
		metrics.MessageProcessingDuration.WithLabelValues(msg.Type).Observe(time.Since(start).Seconds())
	}()

	// auth and ping need no existing room binding.
	switch msg.Type {
	case wire.TypeAuth:
		d.handleAuth(conn, msg)
		return
	case wire.TypePing:
		d.handlePing(conn, msg)
		return
	}

	if conn.RoomID() == "" {
		// Not authenticated yet: every other kind is dropped silently
		// (spec §7, Authorization).
		status = "unauthenticated"
		return
	}
	if msg.RoomID != conn.RoomID() {
		status = "room_mismatch"
		if isScreenShareKind(msg.Type) {
			d.replyError(conn, "Not authorized for this room.")
		}
		return
	}

	if _, limited := rateLimited[msg.Type]; limited {
		if !d.Limiter.Allow(conn.ID, start) {
			d.replyError(conn, "Rate limit exceeded. Please slow down.")
			status = "rate_limited"
			return
		}
	}

	switch msg.Type {
	case wire.TypeChatMessage:
		d.handleChat(conn, msg)
	case wire.TypePositionUpdate:
		d.handlePositionUpdate(conn, msg)
	case wire.TypeEmotion:
		d.handleEmotion(conn, msg)
	case wire.TypeInteraction:
		d.handleInteraction(conn, msg)
	case wire.TypeTyping:
		d.handleTyping(conn, msg)
	case wire.TypeGetRoomState:
		d.handleGetRoomState(conn, msg)
	case wire.TypeSceneChange:
		d.handleSceneChange(conn, msg)
	case wire.TypeWeatherChange:
		d.handleWeatherChange(conn, msg)
	case wire.TypeTimeChange:
		d.handleTimeChange(conn, msg)
	case wire.TypeScreenShareStarted:
		d.handleScreenShareStarted(conn, msg)
	case wire.TypeScreenShareStopped:
		d.handleScreenShareStopped(conn, msg)
	case wire.TypeScreenShareWebRTCOffer:
		d.handleScreenShareSignal(conn, msg, d.Shares.HandleOffer)
	case wire.TypeScreenShareWebRTCAnswer:
		d.handleScreenShareSignal(conn, msg, d.Shares.HandleAnswer)
	case wire.TypeScreenShareWebRTCCandidate:
		d.handleScreenShareSignal(conn, msg, d.Shares.HandleCandidate)
	case wire.TypeScreenShareWebRTCReady:
		d.handleScreenShareReady(conn, msg, wire.TypeScreenShareWebRTCReady)
	case wire.TypeScreenShareReady:
		d.handleScreenShareReady(conn, msg, wire.TypeScreenShareReady)
	case wire.TypeScreenShareBroadcastOffer:
		d.handleScreenShareBroadcastOffer(conn, msg)
	case wire.TypeRequestScreenShareOffer:
		d.handleRequestScreenShareOffer(conn, msg)
	case wire.TypeJoinOngoingScreenShare:
		d.handleJoinOngoingScreenShare(conn, msg)
	default:
		status = "unhandled"
		d.replyError(conn, "Unsupported message type.")
	}
}

// HandleDisconnect implements the connection lifecycle cleanup (spec §3):
// remove the user from its room, stop any share it owned, broadcast
// user_left, and drop rate-limiter state. Hub bookkeeping (connection
// table, room index) is already gone by the time this runs.
func (d *Dispatcher) HandleDisconnect(conn *hub.Connection) {
	d.Limiter.Remove(conn.ID)

	roomID := conn.RoomID()
	if roomID == "" {
		return
	}
	if conn.Superseded() {
		// A newer authentication already evicted this connection's user
		// binding (SPEC_FULL §6.1); that connection owns the room
		// membership now, so don't remove it out from under them.
		return
	}
	userID := conn.UserID()
	now := d.now()
	nowMillis := now.UnixMilli()

	if room, ok := d.Rooms.Get(roomID); ok {
		room.RemoveUser(userID, nowMillis)
	}

	if stoppedRoomID, stopped := d.Shares.UserDisconnected(userID); stopped {
		stopMsg := wire.ServerMessage{
			Type:      wire.TypeScreenShareStopped,
			RoomID:    stoppedRoomID,
			UserID:    userID,
			Timestamp: nowMillis,
		}
		d.broadcast(stoppedRoomID, stopMsg, "")
	}

	leftMsg := wire.ServerMessage{
		Type:      wire.TypeUserLeft,
		RoomID:    roomID,
		UserID:    userID,
		Timestamp: nowMillis,
	}
	d.History.Append(roomID, leftMsg, nowMillis)
	d.broadcast(roomID, leftMsg, "")
}

func isScreenShareKind(kind string) bool {
	switch kind {
	case wire.TypeScreenShareStarted, wire.TypeScreenShareStopped,
		wire.TypeScreenShareWebRTCOffer, wire.TypeScreenShareWebRTCAnswer,
		wire.TypeScreenShareWebRTCCandidate, wire.TypeScreenShareWebRTCReady,
		wire.TypeScreenShareBroadcastOffer, wire.TypeScreenShareReady,
		wire.TypeRequestScreenShareOffer, wire.TypeJoinOngoingScreenShare:
		return true
	default:
		return false
	}
}

// effectiveUserID resolves spec §4.7 step 1: the message's user_id if
// provided, else the connection's bound user id.
func effectiveUserID(conn *hub.Connection, msg wire.ClientMessage) string {
	if msg.UserID != "" {
		return msg.UserID
	}
	return conn.UserID()
}

// resolveUsername implements spec §4.7 step 2.
func resolveUsername(room *roomstate.Room, userID string) string {
	if u, ok := room.GetUser(userID); ok {
		return u.DisplayName
	}
	return "User"
}

func (d *Dispatcher) send(conn *hub.Connection, msg wire.ServerMessage) {
	frame, err := wire.Encode(msg)
	if err != nil {
		logging.Error(context.Background(), "failed to encode outbound frame")
		return
	}
	d.Hub.SendToConnection(conn.ID, frame)
}

func (d *Dispatcher) sendToUser(userID string, msg wire.ServerMessage) {
	frame, err := wire.Encode(msg)
	if err != nil {
		logging.Error(context.Background(), "failed to encode outbound frame")
		return
	}
	d.Hub.SendToUser(userID, frame)
}

func (d *Dispatcher) broadcast(roomID string, msg wire.ServerMessage, excludeUserID string) {
	frame, err := wire.Encode(msg)
	if err != nil {
		logging.Error(context.Background(), "failed to encode outbound frame")
		return
	}
	d.Hub.BroadcastToRoom(roomID, frame, excludeUserID)
}

func (d *Dispatcher) replyError(conn *hub.Connection, message string) {
	d.send(conn, wire.ErrorFrame(message))
}
