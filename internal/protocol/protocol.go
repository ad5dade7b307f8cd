// Package protocol defines the JSON wire format shared by the game client
// and server: a self-describing {type, payload} envelope per frame, with a
// fixed payload shape per message type. It carries no behavior beyond
// encoding and decoding.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

const maxFrameSize = 1 * 1024 * 1024 // 1MB max frame size

// Type identifies a message. Unknown values must be ignored by receivers so
// the protocol can grow without breaking older clients.
type Type string

// Client to server.
const (
	TypeJoinRoom   Type = "join_room"
	TypeRejoinRoom Type = "rejoin_room"
	TypeLeaveRoom  Type = "leave_room"
	TypeStartRace  Type = "start_race"
	TypeNavigate   Type = "navigate"
	TypeFinish     Type = "finish"
	TypeCursor     Type = "cursor"
	TypeUpdateRoom Type = "update_room"
)

// Server to client.
const (
	TypeRoomState    Type = "room_state"
	TypePlayerJoined Type = "player_joined"
	TypePlayerLeft   Type = "player_left"
	TypeRaceStarted  Type = "race_started"
	TypePlayerUpdate Type = "player_update"
	TypePlayerFinish Type = "player_finish"
	TypeCursorUpdate Type = "cursor_update"
	TypeError        Type = "error"
)

// Message is the envelope of every frame. Payload stays raw until the
// receiver knows what to do with the type.
type Message struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode marshals a single frame carrying the given payload.
func Encode(t Type, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", t, err)
		}
		raw = data
	}

	data, err := json.Marshal(Message{Type: t, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s frame: %w", t, err)
	}
	if len(data) > maxFrameSize {
		return nil, fmt.Errorf("frame size %d exceeds maximum %d bytes", len(data), maxFrameSize)
	}
	return data, nil
}

// Decode parses a single frame. It fails on malformed JSON or a missing
// type, never on an unknown type.
func Decode(data []byte) (Message, error) {
	if len(data) > maxFrameSize {
		return Message{}, fmt.Errorf("frame size %d exceeds maximum %d bytes", len(data), maxFrameSize)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("unmarshal frame: %w", err)
	}
	if msg.Type == "" {
		return Message{}, errors.New("frame has no type")
	}
	return msg, nil
}
