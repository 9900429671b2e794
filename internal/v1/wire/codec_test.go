package wire

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecode_ChatMessage(t *testing.T) {
	raw := []byte(`{"type":"chat_message","message":"hi","user_id":"A","room_id":"room1"}`)
	msg, err := Decode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Type != TypeChatMessage || msg.Message != "hi" || msg.UserID != "A" || msg.RoomID != "room1" {
		t.Errorf("unexpected decoded message: %+v", msg)
	}
}

func TestDecode_PositionUpdate(t *testing.T) {
	raw := []byte(`{"type":"position_update","room_id":"room1","x":1.5,"y":2.5,"z":-3}`)
	msg, err := Decode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.X == nil || msg.Y == nil || msg.Z == nil {
		t.Fatal("expected x, y, z to be populated")
	}
	if *msg.X != 1.5 || *msg.Y != 2.5 || *msg.Z != -3 {
		t.Errorf("unexpected position: %v %v %v", *msg.X, *msg.Y, *msg.Z)
	}
}

func TestDecode_UnknownType(t *testing.T) {
	raw := []byte(`{"type":"not_a_real_type"}`)
	_, err := Decode(raw)
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestDecode_MalformedJSON(t *testing.T) {
	raw := []byte(`{"type": "chat_message"`)
	_, err := Decode(raw)
	if err == nil {
		t.Fatal("expected an error for malformed json")
	}
	if errors.Is(err, ErrUnknownType) {
		t.Fatal("malformed json should not be reported as unknown type")
	}
}

func TestDecode_UnknownFieldsIgnored(t *testing.T) {
	raw := []byte(`{"type":"ping","t":42,"some_future_field":"ignored"}`)
	msg, err := Decode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.T != 42 {
		t.Errorf("expected t=42, got %d", msg.T)
	}
}

func TestEncode_RoundTripsPing(t *testing.T) {
	out := ServerMessage{Type: TypePong, T: 42}
	raw, err := Encode(out)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}

	var decoded ServerMessage
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unexpected unmarshal error: %v", err)
	}
	if decoded.T != 42 || decoded.Type != TypePong {
		t.Errorf("round-trip mismatch: %+v", decoded)
	}
}

func TestErrorFrame(t *testing.T) {
	frame := ErrorFrame("Rate limit exceeded. Please slow down.")
	if frame.Type != TypeError {
		t.Errorf("expected error type, got %q", frame.Type)
	}
	if frame.Error != "Rate limit exceeded. Please slow down." {
		t.Errorf("unexpected error message: %q", frame.Error)
	}
}
