// internal/lobby/events.go
package lobby

import "github.com/jason-s-yu/lobbyhost/internal/models"

// Event is a change inferred from a slot diff.
type Event interface{ isLobbyEvent() }

// PlayerJoined: a slot is newly held by a live player who was not seated before.
type PlayerJoined struct {
	PlayerID string
	Slot     int
}

// PlayerLeft: a live player is no longer in any slot.
type PlayerLeft struct {
	PlayerID string
	Slot     int
}

// PlayerMoved: the same player now sits in a different slot.
type PlayerMoved struct {
	PlayerID string
	From     int
	To       int
}

// PlayersSwapped: exactly two slots exchanged their occupants.
// A moved from SlotA to SlotB, B moved from SlotB to SlotA.
type PlayersSwapped struct {
	A, B         string
	SlotA, SlotB int
}

type SlotOpened struct{ Slot int }

type SlotClosed struct{ Slot int }

func (PlayerJoined) isLobbyEvent()   {}
func (PlayerLeft) isLobbyEvent()     {}
func (PlayerMoved) isLobbyEvent()    {}
func (PlayersSwapped) isLobbyEvent() {}
func (SlotOpened) isLobbyEvent()     {}
func (SlotClosed) isLobbyEvent()     {}

// DeriveEvents classifies changed slots. A swap is only recognized when
// exactly two slots changed and each holds the other's previous occupant;
// any other multi-slot change is reported as independent events.
func (l *Lobby) DeriveEvents(changes []SlotChange) []Event {
	if sw, ok := asSwap(changes); ok {
		return []Event{sw}
	}

	// previous positions of live players among the changed slots
	prevSlot := make(map[string]int)
	for _, c := range changes {
		if id := c.Old.LiveID(); id != "" && !c.Added {
			prevSlot[id] = c.Old.Number
		}
	}

	var out []Event
	for _, c := range changes {
		oldID := ""
		if !c.Added {
			oldID = c.Old.LiveID()
		}
		newID := c.New.LiveID()

		if oldID != "" && oldID == newID {
			continue // attribute-only change
		}
		if newID != "" {
			if from, moved := prevSlot[newID]; moved && from != c.New.Number {
				out = append(out, PlayerMoved{PlayerID: newID, From: from, To: c.New.Number})
			} else {
				out = append(out, PlayerJoined{PlayerID: newID, Slot: c.New.Number})
			}
		}
		if oldID != "" && !l.Has(oldID) {
			out = append(out, PlayerLeft{PlayerID: oldID, Slot: c.Old.Number})
		}
		if oldID == "" && newID == "" && c.Old.Status != c.New.Status {
			switch c.New.Status {
			case models.SlotOpen:
				out = append(out, SlotOpened{Slot: c.New.Number})
			case models.SlotClosed:
				out = append(out, SlotClosed{Slot: c.New.Number})
			}
		}
	}
	return out
}

func asSwap(changes []SlotChange) (PlayersSwapped, bool) {
	if len(changes) != 2 || changes[0].Added || changes[1].Added {
		return PlayersSwapped{}, false
	}
	c1, c2 := changes[0], changes[1]
	a, b := c1.Old.LiveID(), c2.Old.LiveID()
	if a == "" || b == "" || a == b {
		return PlayersSwapped{}, false
	}
	if c1.New.LiveID() != b || c2.New.LiveID() != a {
		return PlayersSwapped{}, false
	}
	return PlayersSwapped{A: a, B: b, SlotA: c1.Old.Number, SlotB: c2.Old.Number}, true
}
