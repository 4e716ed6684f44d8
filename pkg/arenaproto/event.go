// Package arenaproto defines the JSON frames exchanged with arena clients and
// the records other services read back from the archive.
package arenaproto

import (
	"encoding/json"
	"fmt"
)

// Inbound event types.
const (
	TypeMove        = "move"
	TypeRestartGame = "restartGame"
)

// Outbound event types.
const (
	TypePlayerRole    = "playerRole"
	TypeSpectatorRole = "spectatorRole"
	TypeWaiting       = "waiting"
	TypeMessage       = "message"
	TypeBoardState    = "boardState"
	TypePieceCaptured = "pieceCaptured"
	TypeCheck         = "check"
	TypeClearCheck    = "clearCheck"
	TypeGameOver      = "gameOver"
	TypeInvalidMove   = "invalidMove"
	TypeNoMoves       = "noMoves"
	TypeRoomClosed    = "roomClosed"
)

// Event is the envelope for every frame in both directions.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent marshals payload into an envelope. A nil payload is omitted.
func NewEvent(typ string, payload any) (Event, error) {
	evt := Event{Type: typ}
	if payload == nil {
		return evt, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	evt.Payload = raw
	return evt, nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("%s: decode payload: %w", e.Type, err)
	}
	return nil
}

// Text returns a string payload, or "" when the payload is not a JSON string.
func (e Event) Text() string {
	var s string
	if err := json.Unmarshal(e.Payload, &s); err != nil {
		return ""
	}
	return s
}
