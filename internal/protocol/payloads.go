package protocol

import (
	"encoding/json"

	"github.com/pageracer/pageracer"
)

// Client to server payloads.

type JoinRoomPayload struct {
	RoomID       string `json:"roomId"`
	PlayerName   string `json:"playerName"`
	StartArticle string `json:"startArticle"`
	EndArticle   string `json:"endArticle"`
}

type RejoinRoomPayload struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName"`
}

type NavigatePayload struct {
	Article string `json:"article"`
}

type FinishPayload struct {
	Time int64 `json:"time"` // ms since race start
}

// CursorPayload is an outgoing pointer sample. X is a 0-1 fraction of the
// article content width. Y is the plain 0-1 fraction of the document height,
// always present as the lowest-precision fallback. AnchorID/NextAnchorID
// name the headings bracketing the pointer and SectionRatio the 0-1
// progress between them; any of the three may be absent when the local
// rendering could not resolve headings.
type CursorPayload struct {
	X            float64               `json:"x"`
	Y            float64               `json:"y"`
	Article      string                `json:"article"`
	CursorType   pageracer.CursorShape `json:"cursorType,omitempty"`
	AnchorID     string                `json:"anchorId,omitempty"`
	NextAnchorID string                `json:"nextAnchorId,omitempty"`
	SectionRatio *float64              `json:"sectionRatio,omitempty"`
}

type UpdateRoomPayload struct {
	StartArticle string `json:"startArticle"`
	EndArticle   string `json:"endArticle"`
}

// Server to client payloads.

// RoomStatePayload replaces the whole local room mirror.
type RoomStatePayload = pageracer.Room

// PlayerJoinedPayload is the joined player itself.
type PlayerJoinedPayload = pageracer.Player

type PlayerLeftPayload struct {
	PlayerID string `json:"playerId"`
}

type RaceStartedPayload struct {
	StartArticle string `json:"startArticle"`
	EndArticle   string `json:"endArticle"`
}

type PlayerUpdatePayload struct {
	PlayerID       string `json:"playerId"`
	CurrentArticle string `json:"currentArticle"`
	Clicks         int    `json:"clicks"`
}

type PlayerFinishPayload struct {
	PlayerID   string   `json:"playerId"`
	PlayerName string   `json:"playerName"`
	Time       int64    `json:"time"`
	Clicks     int      `json:"clicks"`
	Path       []string `json:"path"`
}

// CursorUpdatePayload is a relayed CursorPayload tagged with its producer.
type CursorUpdatePayload struct {
	PlayerID     string                `json:"playerId"`
	PlayerName   string                `json:"playerName"`
	X            float64               `json:"x"`
	Y            float64               `json:"y"`
	Article      string                `json:"article"`
	CursorType   pageracer.CursorShape `json:"cursorType,omitempty"`
	AnchorID     string                `json:"anchorId,omitempty"`
	NextAnchorID string                `json:"nextAnchorId,omitempty"`
	SectionRatio *float64              `json:"sectionRatio,omitempty"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

// ParsePayload unmarshals a message's payload into its typed struct.
// Unknown types return (nil, nil) so dispatchers can skip them without
// treating forward-compatible extensions as failures.
func ParsePayload(msg Message) (any, error) {
	switch msg.Type {
	case TypeJoinRoom:
		return unmarshalPayload[JoinRoomPayload](msg)
	case TypeRejoinRoom:
		return unmarshalPayload[RejoinRoomPayload](msg)
	case TypeLeaveRoom, TypeStartRace:
		return struct{}{}, nil
	case TypeNavigate:
		return unmarshalPayload[NavigatePayload](msg)
	case TypeFinish:
		return unmarshalPayload[FinishPayload](msg)
	case TypeCursor:
		return unmarshalPayload[CursorPayload](msg)
	case TypeUpdateRoom:
		return unmarshalPayload[UpdateRoomPayload](msg)
	case TypeRoomState:
		return unmarshalPayload[RoomStatePayload](msg)
	case TypePlayerJoined:
		return unmarshalPayload[PlayerJoinedPayload](msg)
	case TypePlayerLeft:
		return unmarshalPayload[PlayerLeftPayload](msg)
	case TypeRaceStarted:
		return unmarshalPayload[RaceStartedPayload](msg)
	case TypePlayerUpdate:
		return unmarshalPayload[PlayerUpdatePayload](msg)
	case TypePlayerFinish:
		return unmarshalPayload[PlayerFinishPayload](msg)
	case TypeCursorUpdate:
		return unmarshalPayload[CursorUpdatePayload](msg)
	case TypeError:
		return unmarshalPayload[ErrorPayload](msg)
	default:
		return nil, nil
	}
}

func unmarshalPayload[T any](msg Message) (any, error) {
	var payload T
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return nil, err
		}
	}
	return payload, nil
}
