// Package wire implements the JSON tagged-variant codec for messages
// exchanged between a room connection and the server. Every frame is a
// flat JSON object carrying a string `type` field; unused fields for a
// given type are simply omitted.
package wire

import "encoding/json"

// Inbound message type tags (spec §4.1).
const (
	TypeAuth          = "auth"
	TypeChatMessage   = "chat_message"
	TypePositionUpdate = "position_update"
	TypeEmotion       = "emotion"
	TypeInteraction   = "interaction"
	TypeTyping        = "typing"
	TypeGetRoomState  = "get_room_state"
	TypePing          = "ping"
	TypeSceneChange   = "scene_change"
	TypeWeatherChange = "weather_change"
	TypeTimeChange    = "time_change"

	TypeScreenShareStarted         = "screen_share_started"
	TypeScreenShareStopped         = "screen_share_stopped"
	TypeScreenShareWebRTCOffer     = "screen_share_webrtc_offer"
	TypeScreenShareWebRTCAnswer    = "screen_share_webrtc_answer"
	TypeScreenShareWebRTCCandidate = "screen_share_webrtc_candidate"
	TypeScreenShareWebRTCReady     = "screen_share_webrtc_ready"
	TypeScreenShareBroadcastOffer  = "screen_share_broadcast_offer"
	TypeScreenShareReady           = "screen_share_ready"
	TypeRequestScreenShareOffer    = "request_screen_share_offer"
	TypeJoinOngoingScreenShare     = "join_ongoing_screen_share"
)

// Outbound-only message type tags.
const (
	TypeAuthSuccess        = "auth_success"
	TypeAuthError          = "auth_error"
	TypeRoomState          = "room_state"
	TypeUserJoined         = "user_joined"
	TypeUserLeft           = "user_left"
	TypeUserPositionUpdate = "user_position_update"
	TypePong               = "pong"
	TypeSystem             = "system"
	TypeError              = "error"
	TypeOngoingScreenShare = "ongoing_screen_share"
	TypeNewViewerJoined    = "new_viewer_joined"
	TypeViewerRequestsOffer = "viewer_requests_offer"
)

// ClientMessage is the decoded form of any inbound frame. Only the fields
// relevant to Type are meaningful; the rest are zero-valued.
type ClientMessage struct {
	Type        string `json:"type"`
	RoomID      string `json:"room_id,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	Username    string `json:"username,omitempty"`
	Nationality string `json:"nationality,omitempty"`
	Timestamp   int64  `json:"timestamp,omitempty"`

	// auth
	Token string `json:"token,omitempty"`

	// chat_message
	Message string `json:"message,omitempty"`

	// position_update
	X *float64 `json:"x,omitempty"`
	Y *float64 `json:"y,omitempty"`
	Z *float64 `json:"z,omitempty"`

	// emotion
	Emotion string `json:"emotion,omitempty"`

	// interaction
	InteractionType string `json:"interaction_type,omitempty"`
	TargetUserID    string `json:"target_user_id,omitempty"`

	// typing
	IsTyping *bool `json:"is_typing,omitempty"`

	// ping
	T int64 `json:"t,omitempty"`

	// scene_change
	ScenePreset string `json:"scene_preset,omitempty"`

	// weather_change
	WeatherType string   `json:"weather_type,omitempty"`
	Intensity   *float64 `json:"intensity,omitempty"`

	// time_change
	TimeLabel string `json:"time_label,omitempty"`
	Hour      *int   `json:"hour,omitempty"`

	// screen-share
	ProjectionMode string          `json:"projection_mode,omitempty"`
	Quality        string          `json:"quality,omitempty"`
	SessionID      string          `json:"session_id,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage is the wire form of any outbound frame.
type ServerMessage struct {
	Type        string `json:"type"`
	RoomID      string `json:"room_id,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	Username    string `json:"username,omitempty"`
	Nationality string `json:"nationality,omitempty"`
	Timestamp   int64  `json:"timestamp,omitempty"`

	Message string `json:"message,omitempty"`

	X *float64 `json:"x,omitempty"`
	Y *float64 `json:"y,omitempty"`
	Z *float64 `json:"z,omitempty"`

	Emotion string `json:"emotion,omitempty"`

	InteractionType string `json:"interaction_type,omitempty"`
	TargetUserID    string `json:"target_user_id,omitempty"`

	IsTyping *bool `json:"is_typing,omitempty"`

	T int64 `json:"t,omitempty"`

	ScenePreset string   `json:"scene_preset,omitempty"`
	WeatherType string   `json:"weather_type,omitempty"`
	Intensity   *float64 `json:"intensity,omitempty"`
	TimeLabel   string   `json:"time_label,omitempty"`
	Hour        *int     `json:"hour,omitempty"`

	ProjectionMode string          `json:"projection_mode,omitempty"`
	Quality        string          `json:"quality,omitempty"`
	SessionID      string          `json:"session_id,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`

	RoomInfo *RoomInfo `json:"room_info,omitempty"`

	ViewerUserID string `json:"viewer_user_id,omitempty"`
	ViewerCount  int    `json:"viewer_count,omitempty"`

	Error string `json:"error,omitempty"`
}

// RoomInfo is embedded in auth_success and room_state responses.
type RoomInfo struct {
	ScenePreset        string              `json:"scene_preset"`
	Weather            *WeatherInfo        `json:"weather,omitempty"`
	TimeOfDay          *TimeInfo           `json:"time_of_day,omitempty"`
	Users              []UserSummary       `json:"users"`
	OngoingScreenShare *ScreenShareInfo    `json:"ongoing_screen_share,omitempty"`
}

// WeatherInfo is the latest weather snapshot for a room.
type WeatherInfo struct {
	WeatherType string  `json:"weather_type"`
	Intensity   float64 `json:"intensity"`
	ChangedBy   string  `json:"changed_by"`
	ChangedAt   int64   `json:"changed_at"`
}

// TimeInfo is the latest time-of-day snapshot for a room.
type TimeInfo struct {
	Label     string `json:"label"`
	Hour      *int   `json:"hour,omitempty"`
	ChangedBy string `json:"changed_by"`
	ChangedAt int64  `json:"changed_at"`
}

// UserSummary is a RoomUser projection sent in room state snapshots.
type UserSummary struct {
	UserID      string   `json:"user_id"`
	Username    string   `json:"username"`
	Nationality string   `json:"nationality,omitempty"`
	X           float64  `json:"x"`
	Y           float64  `json:"y"`
	Z           float64  `json:"z"`
}

// ScreenShareInfo is the projection of an active share included in
// room_info and in the standalone ongoing_screen_share message.
type ScreenShareInfo struct {
	SharerUserID   string `json:"sharer_user_id"`
	SharerUsername string `json:"sharer_username"`
	ProjectionMode string `json:"projection_mode"`
	Quality        string `json:"quality"`
	SessionID      string `json:"session_id"`
	ViewerCount    int    `json:"viewer_count"`
}
