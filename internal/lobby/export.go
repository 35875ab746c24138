// internal/lobby/export.go
package lobby

import (
	"sort"

	"github.com/jason-s-yu/lobbyhost/internal/models"
)

// SlotView is the read-only projection of one slot.
type SlotView struct {
	Slot     int                 `json:"slot"`
	Label    string              `json:"label"`
	PlayerID string              `json:"playerId,omitempty"`
	IsPlayer bool                `json:"isPlayer"`
	Status   models.SlotStatus   `json:"status"`
	Stats    *models.PlayerStats `json:"stats,omitempty"`
}

// TeamView is the read-only projection of one team.
type TeamView struct {
	Number   int                 `json:"number"`
	Name     string              `json:"name"`
	Category models.TeamCategory `json:"category"`
	Slots    []SlotView          `json:"slots"`
}

// ExportTeams projects the lobby into teams ordered by team number, each with
// its slots ordered by slot number. Teams without slots are left out.
func (l *Lobby) ExportTeams(playerTeamsOnly bool) []TeamView {
	byTeam := make(map[int][]SlotView)
	for _, s := range l.Slots() {
		if playerTeamsOnly && !l.IsPlayerTeam(s.Team) {
			continue
		}
		v := SlotView{
			Slot:     s.Number,
			Label:    s.Label(),
			IsPlayer: s.LiveID() != "",
			Status:   s.Status,
		}
		if v.IsPlayer {
			v.PlayerID = s.PlayerID
			if ps, ok := l.stats[s.PlayerID]; ok {
				ps := ps
				v.Stats = &ps
			}
		}
		byTeam[s.Team] = append(byTeam[s.Team], v)
	}

	numbers := make([]int, 0, len(byTeam))
	for n := range byTeam {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	out := make([]TeamView, 0, len(numbers))
	for _, n := range numbers {
		t := l.teams[n]
		out = append(out, TeamView{Number: n, Name: t.Name, Category: t.Category, Slots: byTeam[n]})
	}
	return out
}
