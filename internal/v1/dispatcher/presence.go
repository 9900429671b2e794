package dispatcher

import (
	"github.com/nimbusroom/roomsrv/internal/v1/hub"
	"github.com/nimbusroom/roomsrv/internal/v1/roomstate"
	"github.com/nimbusroom/roomsrv/internal/v1/wire"
)

// handleChat stores and broadcasts a chat message, including the sender
// (spec §4.7's fan-out table: chat_message broadcasts to the whole room).
func (d *Dispatcher) handleChat(conn *hub.Connection, msg wire.ClientMessage) {
	room, ok := d.Rooms.Get(conn.RoomID())
	if !ok {
		return
	}
	userID := effectiveUserID(conn, msg)
	nowMillis := d.nowMillis()

	out := wire.ServerMessage{
		Type:        wire.TypeChatMessage,
		RoomID:      conn.RoomID(),
		UserID:      userID,
		Username:    resolveUsername(room, userID),
		Nationality: msg.Nationality,
		Message:     msg.Message,
		Timestamp:   nowMillis,
	}
	d.History.Append(conn.RoomID(), out, nowMillis)
	d.broadcast(conn.RoomID(), out, "")
}

// handlePositionUpdate applies a last-writer-wins position update and
// rebroadcasts it to everyone but the mover. An update for an unknown user
// is a silent no-op (spec §4.4, Boundary). Position updates are never
// stored in history.
func (d *Dispatcher) handlePositionUpdate(conn *hub.Connection, msg wire.ClientMessage) {
	room, ok := d.Rooms.Get(conn.RoomID())
	if !ok {
		return
	}
	userID := effectiveUserID(conn, msg)
	pos := roomstate.Position{}
	if msg.X != nil {
		pos.X = *msg.X
	}
	if msg.Y != nil {
		pos.Y = *msg.Y
	}
	if msg.Z != nil {
		pos.Z = *msg.Z
	}

	nowMillis := d.nowMillis()
	if !room.UpdateUserPosition(userID, pos, nowMillis) {
		return
	}

	out := wire.ServerMessage{
		Type:      wire.TypeUserPositionUpdate,
		RoomID:    conn.RoomID(),
		UserID:    userID,
		X:         msg.X,
		Y:         msg.Y,
		Z:         msg.Z,
		Timestamp: nowMillis,
	}
	d.broadcast(conn.RoomID(), out, userID)
}

// handleEmotion stores an emotion event and broadcasts it to everyone but
// the sender.
func (d *Dispatcher) handleEmotion(conn *hub.Connection, msg wire.ClientMessage) {
	room, ok := d.Rooms.Get(conn.RoomID())
	if !ok {
		return
	}
	userID := effectiveUserID(conn, msg)
	nowMillis := d.nowMillis()

	out := wire.ServerMessage{
		Type:      wire.TypeEmotion,
		RoomID:    conn.RoomID(),
		UserID:    userID,
		Username:  resolveUsername(room, userID),
		Emotion:   msg.Emotion,
		Timestamp: nowMillis,
	}
	d.History.Append(conn.RoomID(), out, nowMillis)
	d.broadcast(conn.RoomID(), out, userID)
}

// handleInteraction stores a targeted interaction event and broadcasts it
// to everyone but the sender.
func (d *Dispatcher) handleInteraction(conn *hub.Connection, msg wire.ClientMessage) {
	room, ok := d.Rooms.Get(conn.RoomID())
	if !ok {
		return
	}
	userID := effectiveUserID(conn, msg)
	nowMillis := d.nowMillis()

	out := wire.ServerMessage{
		Type:            wire.TypeInteraction,
		RoomID:          conn.RoomID(),
		UserID:          userID,
		Username:        resolveUsername(room, userID),
		InteractionType: msg.InteractionType,
		TargetUserID:    msg.TargetUserID,
		Timestamp:       nowMillis,
	}
	d.History.Append(conn.RoomID(), out, nowMillis)
	d.broadcast(conn.RoomID(), out, userID)
}

// handleTyping rebroadcasts a typing indicator to everyone but the typist.
// Typing indicators are transient and are never stored.
func (d *Dispatcher) handleTyping(conn *hub.Connection, msg wire.ClientMessage) {
	userID := effectiveUserID(conn, msg)
	out := wire.ServerMessage{
		Type:      wire.TypeTyping,
		RoomID:    conn.RoomID(),
		UserID:    userID,
		IsTyping:  msg.IsTyping,
		Timestamp: d.nowMillis(),
	}
	d.broadcast(conn.RoomID(), out, userID)
}

// handleSceneChange applies and broadcasts a scene preset change.
func (d *Dispatcher) handleSceneChange(conn *hub.Connection, msg wire.ClientMessage) {
	room, ok := d.Rooms.Get(conn.RoomID())
	if !ok || msg.ScenePreset == "" {
		return
	}
	userID := effectiveUserID(conn, msg)
	nowMillis := d.nowMillis()
	room.UpdateScenePreset(msg.ScenePreset, nowMillis)

	out := wire.ServerMessage{
		Type:        wire.TypeSceneChange,
		RoomID:      conn.RoomID(),
		UserID:      userID,
		ScenePreset: msg.ScenePreset,
		Timestamp:   nowMillis,
	}
	d.History.Append(conn.RoomID(), out, nowMillis)
	d.broadcast(conn.RoomID(), out, "")
}

// handleWeatherChange applies and broadcasts a weather change, recording
// provenance on the room's weather snapshot (spec §4.4, SPEC_FULL §6.2).
func (d *Dispatcher) handleWeatherChange(conn *hub.Connection, msg wire.ClientMessage) {
	room, ok := d.Rooms.Get(conn.RoomID())
	if !ok || msg.WeatherType == "" {
		return
	}
	userID := effectiveUserID(conn, msg)
	nowMillis := d.nowMillis()
	intensity := 0.0
	if msg.Intensity != nil {
		intensity = *msg.Intensity
	}
	room.UpdateWeather(roomstate.WeatherState{
		WeatherType: msg.WeatherType,
		Intensity:   intensity,
		ChangedBy:   userID,
		ChangedAt:   nowMillis,
	}, nowMillis)

	out := wire.ServerMessage{
		Type:        wire.TypeWeatherChange,
		RoomID:      conn.RoomID(),
		UserID:      userID,
		WeatherType: msg.WeatherType,
		Intensity:   msg.Intensity,
		Timestamp:   nowMillis,
	}
	d.History.Append(conn.RoomID(), out, nowMillis)
	d.broadcast(conn.RoomID(), out, "")
}

// handleTimeChange applies and broadcasts a time-of-day change, recording
// provenance on the room's time snapshot (spec §4.4, SPEC_FULL §6.2).
func (d *Dispatcher) handleTimeChange(conn *hub.Connection, msg wire.ClientMessage) {
	room, ok := d.Rooms.Get(conn.RoomID())
	if !ok || msg.TimeLabel == "" {
		return
	}
	userID := effectiveUserID(conn, msg)
	nowMillis := d.nowMillis()
	room.UpdateTime(roomstate.TimeState{
		Label:     msg.TimeLabel,
		Hour:      msg.Hour,
		ChangedBy: userID,
		ChangedAt: nowMillis,
	}, nowMillis)

	out := wire.ServerMessage{
		Type:      wire.TypeTimeChange,
		RoomID:    conn.RoomID(),
		UserID:    userID,
		TimeLabel: msg.TimeLabel,
		Hour:      msg.Hour,
		Timestamp: nowMillis,
	}
	d.History.Append(conn.RoomID(), out, nowMillis)
	d.broadcast(conn.RoomID(), out, "")
}
