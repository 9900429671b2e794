package dispatcher

import (
	"errors"

	"github.com/nimbusroom/roomsrv/internal/v1/hub"
	"github.com/nimbusroom/roomsrv/internal/v1/metrics"
	"github.com/nimbusroom/roomsrv/internal/v1/roomstate"
	"github.com/nimbusroom/roomsrv/internal/v1/wire"
)

// handleAuth implements spec §4.7's auth flow: resolve or synthesize the
// user's identity, join or create the room, and reply with auth_success or
// auth_error. A successful join also runs the late-joiner screen-share
// handshake and the history replay, in that order, before the user_joined
// broadcast (spec §4.3, §4.5).
func (d *Dispatcher) handleAuth(conn *hub.Connection, msg wire.ClientMessage) {
	now := d.now()
	nowMillis := now.UnixMilli()

	var user roomstate.User
	if msg.UserID == "" {
		user = roomstate.NewGuestUser(conn.ID, nowMillis)
	} else {
		user = roomstate.User{ID: msg.UserID, JoinedAt: nowMillis}
	}
	if msg.Username != "" {
		user.DisplayName = msg.Username
	} else if user.DisplayName == "" {
		user.DisplayName = "User"
	}
	user.Nationality = msg.Nationality

	room, err := d.Rooms.GetOrCreate(msg.RoomID, nowMillis)
	if err != nil {
		if errors.Is(err, roomstate.ErrRoomCapExceeded) {
			d.send(conn, wire.ServerMessage{Type: wire.TypeAuthError, Error: "Server has reached its maximum number of rooms."})
			return
		}
		d.send(conn, wire.ServerMessage{Type: wire.TypeAuthError, Error: "Unable to join room."})
		return
	}
	metrics.ActiveRooms.Set(float64(d.Rooms.RoomCount()))

	roomUser := roomstate.RoomUser{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Nationality: user.Nationality,
		JoinedAt:    nowMillis,
		LastSeen:    nowMillis,
	}
	if err := room.AddUser(roomUser, nowMillis); err != nil {
		d.send(conn, wire.ServerMessage{Type: wire.TypeAuthError, Error: "Room is full."})
		return
	}
	metrics.RoomUsers.WithLabelValues(msg.RoomID).Set(float64(room.UserCount()))

	d.Hub.BindUser(conn, user.ID)
	d.Hub.BindRoom(conn, msg.RoomID)

	info := d.buildRoomInfo(room, msg.RoomID)
	d.send(conn, wire.ServerMessage{
		Type:        wire.TypeAuthSuccess,
		RoomID:      msg.RoomID,
		UserID:      user.ID,
		Username:    user.DisplayName,
		Nationality: user.Nationality,
		Timestamp:   nowMillis,
		RoomInfo:    info,
	})

	// Late-joiner screen-share handshake (spec §4.5): steps 2-4 run here,
	// automatically, on top of whatever auth_success.room_info already
	// reported in step 1.
	if share, ok := d.Shares.GetOngoingShareInfo(msg.RoomID); ok {
		d.send(conn, wire.ServerMessage{
			Type:           wire.TypeOngoingScreenShare,
			RoomID:         msg.RoomID,
			UserID:         share.SharerUserID,
			Username:       share.SharerUsername,
			ProjectionMode: share.ProjectionMode,
			Quality:        share.Quality,
			SessionID:      share.SessionID,
			ViewerCount:    share.ViewerCount,
			Timestamp:      nowMillis,
		})
		d.sendToUser(share.SharerUserID, wire.ServerMessage{
			Type:         wire.TypeNewViewerJoined,
			RoomID:       msg.RoomID,
			ViewerUserID: user.ID,
			Timestamp:    nowMillis,
		})
		d.Shares.AddViewer(msg.RoomID, user.ID)
	}

	for _, stored := range d.History.Replay(msg.RoomID, nowMillis) {
		d.send(conn, stored.Message)
	}

	joinedMsg := wire.ServerMessage{
		Type:        wire.TypeUserJoined,
		RoomID:      msg.RoomID,
		UserID:      user.ID,
		Username:    user.DisplayName,
		Nationality: user.Nationality,
		Timestamp:   nowMillis,
	}
	d.History.Append(msg.RoomID, joinedMsg, nowMillis)
	d.broadcast(msg.RoomID, joinedMsg, user.ID)
}

// handlePing replies pong, preserving the client's t field exactly so it
// can measure round-trip latency (spec §4.1).
func (d *Dispatcher) handlePing(conn *hub.Connection, msg wire.ClientMessage) {
	d.send(conn, wire.ServerMessage{Type: wire.TypePong, T: msg.T, Timestamp: d.nowMillis()})
}

// handleGetRoomState replies with a full room snapshot addressed only to
// the requester (spec §4.4, §4.7).
func (d *Dispatcher) handleGetRoomState(conn *hub.Connection, msg wire.ClientMessage) {
	room, ok := d.Rooms.Get(conn.RoomID())
	if !ok {
		return
	}
	info := d.buildRoomInfo(room, conn.RoomID())
	d.send(conn, wire.ServerMessage{Type: wire.TypeRoomState, RoomID: conn.RoomID(), RoomInfo: info, Timestamp: d.nowMillis()})
}

// buildRoomInfo assembles the snapshot embedded in auth_success and
// room_state replies (spec §4.4).
func (d *Dispatcher) buildRoomInfo(room *roomstate.Room, roomID string) *wire.RoomInfo {
	info := &wire.RoomInfo{ScenePreset: room.GetScenePreset()}

	if w := room.GetWeather(); w != nil {
		info.Weather = &wire.WeatherInfo{
			WeatherType: w.WeatherType,
			Intensity:   w.Intensity,
			ChangedBy:   w.ChangedBy,
			ChangedAt:   w.ChangedAt,
		}
	}
	if t := room.GetTime(); t != nil {
		info.TimeOfDay = &wire.TimeInfo{
			Label:     t.Label,
			Hour:      t.Hour,
			ChangedBy: t.ChangedBy,
			ChangedAt: t.ChangedAt,
		}
	}

	for _, u := range room.ListUsers() {
		info.Users = append(info.Users, wire.UserSummary{
			UserID:      u.UserID,
			Username:    u.DisplayName,
			Nationality: u.Nationality,
			X:           u.Position.X,
			Y:           u.Position.Y,
			Z:           u.Position.Z,
		})
	}

	if share, ok := d.Shares.GetOngoingShareInfo(roomID); ok {
		info.OngoingScreenShare = &wire.ScreenShareInfo{
			SharerUserID:   share.SharerUserID,
			SharerUsername: share.SharerUsername,
			ProjectionMode: share.ProjectionMode,
			Quality:        share.Quality,
			SessionID:      share.SessionID,
			ViewerCount:    share.ViewerCount,
		}
	}
	return info
}
