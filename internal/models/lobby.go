// internal/models/lobby.go
package models

import "time"

// TeamCategory is decided once, when a lobby is first seen.
type TeamCategory string

const (
	TeamPlayer    TeamCategory = "player"
	TeamSpectator TeamCategory = "spectator"
	TeamOther     TeamCategory = "other" // computer, neutral or creep teams
)

// Descriptor holds the static metadata of a hosted lobby.
type Descriptor struct {
	LobbyName string `json:"lobbyName"`
	MapName   string `json:"mapName"`
	MapPath   string `json:"mapPath,omitempty"`
	Host      string `json:"host"`
	Observers bool   `json:"observers"`
	Private   bool   `json:"private"`
	MaxTeams  int    `json:"maxTeams"`
}

// TeamInfo describes a team as announced by the client.
type TeamInfo struct {
	Number   int          `json:"number"`
	Name     string       `json:"name"`
	Category TeamCategory `json:"category,omitempty"`
}

// ChatMessage is a single line of lobby chat.
type ChatMessage struct {
	Sender string    `json:"sender"`
	Source string    `json:"source,omitempty"` // "lobby", "whisper", ...
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}
