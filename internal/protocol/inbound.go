// internal/protocol/inbound.go
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/lobbyhost/internal/models"
)

var (
	// ErrMalformed is returned for frames that cannot be applied.
	ErrMalformed = errors.New("malformed payload")
	// ErrUnknownType is returned for frames with an unrecognised type.
	ErrUnknownType = errors.New("unknown message type")
)

const (
	TypeLobbySnapshot    = "lobby-snapshot"
	TypeSlotUpdate       = "slot-update"
	TypeChatMessage      = "chat-message"
	TypeConnectionClosed = "connection-closed"
	TypeLeftLobby        = "left-lobby"
)

// Inbound is a decoded message from the game client.
type Inbound interface{ inboundType() string }

// LobbySnapshot is the full state of the lobby the client sits in.
type LobbySnapshot struct {
	Descriptor models.Descriptor
	Teams      []models.TeamInfo
	Slots      []models.Slot
}

// SlotUpdate carries the current slot table. LobbyName, when set, must match
// the lobby being tracked.
type SlotUpdate struct {
	LobbyName string
	Slots     []models.Slot
}

type ChatMessage struct {
	Message models.ChatMessage
}

type ConnectionClosed struct {
	Reason string
}

// LeftLobby: the client left the lobby without the connection closing.
type LeftLobby struct{}

func (LobbySnapshot) inboundType() string    { return TypeLobbySnapshot }
func (SlotUpdate) inboundType() string       { return TypeSlotUpdate }
func (ChatMessage) inboundType() string      { return TypeChatMessage }
func (ConnectionClosed) inboundType() string { return TypeConnectionClosed }
func (LeftLobby) inboundType() string        { return TypeLeftLobby }

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type snapshotPayload struct {
	models.Descriptor
	Teams []models.TeamInfo `json:"teams"`
	Slots []models.Slot     `json:"slots"`
}

type slotUpdatePayload struct {
	LobbyName string        `json:"lobbyName"`
	Slots     []models.Slot `json:"slots"`
}

type closedPayload struct {
	Reason string `json:"reason"`
}

// Decode parses one {"type": ..., "payload": ...} frame.
func Decode(data []byte) (Inbound, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch f.Type {
	case TypeLobbySnapshot:
		var p snapshotPayload
		if err := unmarshalPayload(f, &p); err != nil {
			return nil, err
		}
		if p.LobbyName == "" {
			return nil, fmt.Errorf("%w: snapshot without lobby name", ErrMalformed)
		}
		if err := validateSlots(p.Slots); err != nil {
			return nil, err
		}
		return LobbySnapshot{Descriptor: p.Descriptor, Teams: p.Teams, Slots: p.Slots}, nil

	case TypeSlotUpdate:
		var p slotUpdatePayload
		if err := unmarshalPayload(f, &p); err != nil {
			return nil, err
		}
		if err := validateSlots(p.Slots); err != nil {
			return nil, err
		}
		return SlotUpdate{LobbyName: p.LobbyName, Slots: p.Slots}, nil

	case TypeChatMessage:
		var m models.ChatMessage
		if err := unmarshalPayload(f, &m); err != nil {
			return nil, err
		}
		if m.Sender == "" {
			return nil, fmt.Errorf("%w: chat message without sender", ErrMalformed)
		}
		if m.At.IsZero() {
			m.At = time.Now()
		}
		return ChatMessage{Message: m}, nil

	case TypeConnectionClosed:
		var p closedPayload
		if len(f.Payload) > 0 {
			if err := unmarshalPayload(f, &p); err != nil {
				return nil, err
			}
		}
		return ConnectionClosed{Reason: p.Reason}, nil

	case TypeLeftLobby:
		return LeftLobby{}, nil

	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, f.Type)
}

func unmarshalPayload(f frame, v any) error {
	if len(f.Payload) == 0 {
		return fmt.Errorf("%w: %s without payload", ErrMalformed, f.Type)
	}
	if err := json.Unmarshal(f.Payload, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, f.Type, err)
	}
	return nil
}

func validateSlots(slots []models.Slot) error {
	seen := make(map[int]bool, len(slots))
	for _, s := range slots {
		if s.Number < 0 || seen[s.Number] {
			return fmt.Errorf("%w: bad slot number %d", ErrMalformed, s.Number)
		}
		seen[s.Number] = true
		switch s.Status {
		case models.SlotOpen, models.SlotClosed:
		case models.SlotOccupied:
			if s.PlayerID == "" && !s.Computer {
				return fmt.Errorf("%w: occupied slot %d without player", ErrMalformed, s.Number)
			}
		default:
			return fmt.Errorf("%w: slot %d has status %q", ErrMalformed, s.Number, s.Status)
		}
	}
	return nil
}
