// internal/models/slot.go
package models

// SlotStatus is the occupancy state of a lobby slot.
type SlotStatus string

const (
	SlotOpen     SlotStatus = "open"
	SlotClosed   SlotStatus = "closed"
	SlotOccupied SlotStatus = "occupied"
)

// Slot is one numbered player position in a lobby. Slot numbers are stable;
// the player occupying a slot is not.
type Slot struct {
	Number     int        `json:"slot"`
	Status     SlotStatus `json:"status"`
	PlayerID   string     `json:"playerId,omitempty"`
	PlayerName string     `json:"playerName,omitempty"`
	Team       int        `json:"team"`

	IsSelf   bool `json:"isSelf"`   // the local viewer sits here
	IsPlayer bool `json:"isPlayer"` // backed by a live network connection
	Computer bool `json:"computer"`
	Observer bool `json:"observer"`

	Color    int    `json:"color"`
	Race     string `json:"race,omitempty"`
	Handicap int    `json:"handicap"`

	ChangeColor    bool `json:"changeColor"`
	ChangeRace     bool `json:"changeRace"`
	ChangeTeam     bool `json:"changeTeam"`
	ChangeHandicap bool `json:"changeHandicap"`
}

// LiveID returns the occupant's identifier when the slot holds a real,
// connected player, and "" otherwise.
func (s Slot) LiveID() string {
	if s.Status != SlotOccupied || !s.IsPlayer {
		return ""
	}
	return s.PlayerID
}

// Label is the display text used in team exports.
func (s Slot) Label() string {
	switch s.Status {
	case SlotOpen:
		return "OPEN"
	case SlotClosed:
		return "CLOSED"
	}
	if s.Computer {
		return "COMPUTER"
	}
	if s.PlayerName != "" {
		return s.PlayerName
	}
	return s.PlayerID
}
