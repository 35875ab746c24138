// internal/protocol/outbound.go
package protocol

import (
	"encoding/json"
	"fmt"
)

// Command is an instruction for the game client. Commands are fire and
// forget; their effect shows up as later inbound updates.
type Command interface{ Type() string }

type CreateLobby struct {
	LobbyName string `json:"lobbyName"`
	MapPath   string `json:"mapPath"`
	Private   bool   `json:"private"`
}

type SetTeam struct {
	Slot int `json:"slot"`
	Team int `json:"team"`
}

type CloseSlot struct {
	Slot int `json:"slot"`
}

type OpenSlot struct {
	Slot int `json:"slot"`
}

type BanSlot struct {
	Slot int `json:"slot"`
}

type KickSlot struct {
	Slot int `json:"slot"`
}

type SetHandicap struct {
	Slot     int `json:"slot"`
	Handicap int `json:"handicap"`
}

type SendChatMessage struct {
	Text string `json:"text"`
}

// SwapSlots exchanges the occupants of two slots.
type SwapSlots struct {
	SlotA int `json:"slotA"`
	SlotB int `json:"slotB"`
}

type LobbyStart struct{}

type LeaveGame struct{}

func (CreateLobby) Type() string     { return "create-lobby" }
func (SetTeam) Type() string         { return "set-team" }
func (CloseSlot) Type() string       { return "close-slot" }
func (OpenSlot) Type() string        { return "open-slot" }
func (BanSlot) Type() string         { return "ban-slot" }
func (KickSlot) Type() string        { return "kick-slot" }
func (SetHandicap) Type() string     { return "set-handicap" }
func (SendChatMessage) Type() string { return "send-chat-message" }
func (SwapSlots) Type() string       { return "swap-slots" }
func (LobbyStart) Type() string      { return "lobby-start" }
func (LeaveGame) Type() string       { return "leave-game" }

// Encode renders cmd as a {"type": ..., "payload": ...} frame.
func Encode(cmd Command) ([]byte, error) {
	data, err := json.Marshal(struct {
		Type    string  `json:"type"`
		Payload Command `json:"payload"`
	}{cmd.Type(), cmd})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", cmd.Type(), err)
	}
	return data, nil
}
