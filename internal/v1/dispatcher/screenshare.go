package dispatcher

import (
	"github.com/nimbusroom/roomsrv/internal/v1/hub"
	"github.com/nimbusroom/roomsrv/internal/v1/screenshare"
	"github.com/nimbusroom/roomsrv/internal/v1/wire"
)

// handleScreenShareStarted begins (or restarts) a share and confirms it back
// to the whole room, including the sharer (spec §4.5).
func (d *Dispatcher) handleScreenShareStarted(conn *hub.Connection, msg wire.ClientMessage) {
	room, ok := d.Rooms.Get(conn.RoomID())
	if !ok {
		return
	}
	userID := effectiveUserID(conn, msg)
	nowMillis := d.nowMillis()

	sessionID, err := d.Shares.Start(userID, conn.RoomID(), resolveUsername(room, userID), msg.Nationality, screenshare.ShareData{
		ProjectionMode: msg.ProjectionMode,
		Quality:        msg.Quality,
	}, d.now())
	if err != nil {
		d.replyError(conn, "Someone else is already sharing in this room.")
		return
	}

	out := wire.ServerMessage{
		Type:           wire.TypeScreenShareStarted,
		RoomID:         conn.RoomID(),
		UserID:         userID,
		Username:       resolveUsername(room, userID),
		ProjectionMode: msg.ProjectionMode,
		Quality:        msg.Quality,
		SessionID:      sessionID,
		Timestamp:      nowMillis,
	}
	d.broadcast(conn.RoomID(), out, "")
}

// handleScreenShareStopped stops the caller's share, if any, and broadcasts
// the stop only when a share was actually removed (spec §4.5, §8: stop by a
// non-sharer is a no-op).
func (d *Dispatcher) handleScreenShareStopped(conn *hub.Connection, msg wire.ClientMessage) {
	userID := effectiveUserID(conn, msg)
	share := d.Shares.Stop(userID)
	if share == nil {
		return
	}

	out := wire.ServerMessage{
		Type:      wire.TypeScreenShareStopped,
		RoomID:    conn.RoomID(),
		UserID:    userID,
		Timestamp: d.nowMillis(),
	}
	d.broadcast(conn.RoomID(), out, "")
}

// signalFunc is the shape shared by Manager.HandleOffer/HandleAnswer/
// HandleCandidate: verify the share and build the addressed relay frame.
type signalFunc func(userID, roomID, target string, payload []byte, now int64) (wire.ServerMessage, error)

// handleScreenShareSignal relays an offer/answer/candidate frame directly to
// its target user; these are never broadcast or stored (spec §4.5).
func (d *Dispatcher) handleScreenShareSignal(conn *hub.Connection, msg wire.ClientMessage, fn signalFunc) {
	userID := effectiveUserID(conn, msg)
	out, err := fn(userID, conn.RoomID(), msg.TargetUserID, msg.Payload, d.nowMillis())
	if err != nil {
		d.replyError(conn, screenShareErrorText(err))
		return
	}
	d.sendToUser(msg.TargetUserID, out)
}

// handleScreenShareReady verifies the caller is the room's sharer and
// broadcasts the ready signal to everyone but the sharer, under outType
// (spec §4.5 groups screen_share_webrtc_ready and screen_share_ready
// identically).
func (d *Dispatcher) handleScreenShareReady(conn *hub.Connection, msg wire.ClientMessage, outType string) {
	room, ok := d.Rooms.Get(conn.RoomID())
	if !ok {
		return
	}
	userID := effectiveUserID(conn, msg)
	out, err := d.Shares.HandleReady(userID, conn.RoomID(), resolveUsername(room, userID), screenshare.ShareData{
		ProjectionMode: msg.ProjectionMode,
		Quality:        msg.Quality,
	}, d.nowMillis())
	if err != nil {
		d.replyError(conn, screenShareErrorText(err))
		return
	}
	out.Type = outType
	d.broadcast(conn.RoomID(), out, userID)
}

// handleScreenShareBroadcastOffer lets the sharer push one offer payload to
// every current viewer at once, instead of addressing each individually.
func (d *Dispatcher) handleScreenShareBroadcastOffer(conn *hub.Connection, msg wire.ClientMessage) {
	userID := effectiveUserID(conn, msg)
	share, ok := d.Shares.Get(conn.RoomID())
	if !ok || share.SharerUserID != userID {
		d.replyError(conn, screenShareErrorText(screenshare.ErrNotSharer))
		return
	}

	out := wire.ServerMessage{
		Type:      wire.TypeScreenShareWebRTCOffer,
		RoomID:    conn.RoomID(),
		UserID:    userID,
		Payload:   msg.Payload,
		Timestamp: d.nowMillis(),
	}
	d.broadcast(conn.RoomID(), out, userID)
}

// handleRequestScreenShareOffer forwards a viewer's offer request to the
// room's sharer (spec §4.5).
func (d *Dispatcher) handleRequestScreenShareOffer(conn *hub.Connection, msg wire.ClientMessage) {
	viewer := effectiveUserID(conn, msg)
	out, sharerID, err := d.Shares.HandleOfferRequest(viewer, conn.RoomID(), d.nowMillis())
	if err != nil {
		d.replyError(conn, screenShareErrorText(err))
		return
	}
	d.sendToUser(sharerID, out)
}

// handleJoinOngoingScreenShare announces a viewer to the sharer and adds it
// to the viewer list (spec §4.5). Explicit client-initiated joins reuse the
// same idempotent AddViewer path the auth-time handshake uses.
func (d *Dispatcher) handleJoinOngoingScreenShare(conn *hub.Connection, msg wire.ClientMessage) {
	viewer := effectiveUserID(conn, msg)
	out, sharerID, err := d.Shares.HandleJoinRequest(viewer, conn.RoomID(), d.nowMillis())
	if err != nil {
		d.replyError(conn, screenShareErrorText(err))
		return
	}
	d.sendToUser(sharerID, out)

	if err := d.Shares.AddViewer(conn.RoomID(), viewer); err != nil {
		d.replyError(conn, screenShareErrorText(err))
	}
}

func screenShareErrorText(err error) string {
	switch err {
	case screenshare.ErrNoActiveShare:
		return "There is no active screen share in this room."
	case screenshare.ErrNotSharer:
		return "Only the current sharer may do that."
	case screenshare.ErrAlreadySharing:
		return "Someone else is already sharing in this room."
	case screenshare.ErrViewerCapacity:
		return "This screen share has reached its viewer capacity."
	default:
		return "Screen share request failed."
	}
}
