package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownType is returned by Decode when the frame's type tag is not one
// of the recognized inbound kinds.
var ErrUnknownType = errors.New("wire: unknown message type")

// knownTypes is the set of inbound type tags the dispatcher understands.
var knownTypes = map[string]struct{}{
	TypeAuth:           {},
	TypeChatMessage:    {},
	TypePositionUpdate: {},
	TypeEmotion:        {},
	TypeInteraction:    {},
	TypeTyping:         {},
	TypeGetRoomState:   {},
	TypePing:           {},
	TypeSceneChange:    {},
	TypeWeatherChange:  {},
	TypeTimeChange:     {},

	TypeScreenShareStarted:         {},
	TypeScreenShareStopped:         {},
	TypeScreenShareWebRTCOffer:     {},
	TypeScreenShareWebRTCAnswer:    {},
	TypeScreenShareWebRTCCandidate: {},
	TypeScreenShareWebRTCReady:     {},
	TypeScreenShareBroadcastOffer:  {},
	TypeScreenShareReady:           {},
	TypeRequestScreenShareOffer:    {},
	TypeJoinOngoingScreenShare:     {},
}

// Decode parses a raw inbound frame. A malformed frame or one whose type
// tag is unrecognized is reported as an error; callers must reply with a
// protocol-level error frame and keep the connection open (spec §4.1, §7).
func Decode(raw []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("wire: malformed json: %w", err)
	}

	if _, ok := knownTypes[msg.Type]; !ok {
		return ClientMessage{}, fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}

	return msg, nil
}

// Encode serializes an outbound frame.
func Encode(msg ServerMessage) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("wire: failed to encode message: %w", err)
	}
	return b, nil
}

// ErrorFrame builds a standard outbound error reply.
func ErrorFrame(message string) ServerMessage {
	return ServerMessage{Type: TypeError, Error: message}
}
