// internal/lobby/classify.go
package lobby

import (
	"regexp"

	"github.com/jason-s-yu/lobbyhost/internal/models"
)

var (
	spectatorNames = regexp.MustCompile(`(?i)\b(observers?|obs|spectators?|specs?|referees?|casters?)\b`)
	otherNames     = regexp.MustCompile(`(?i)\b(neutral|creeps?|computers?|hostile|passive|bots?)\b`)
)

// Classify matches a team name against spectator and computer naming
// conventions. Names matching neither are player teams.
func Classify(teamName string) models.TeamCategory {
	switch {
	case spectatorNames.MatchString(teamName):
		return models.TeamSpectator
	case otherNames.MatchString(teamName):
		return models.TeamOther
	default:
		return models.TeamPlayer
	}
}

// classifyTeam applies the creation-time priority: observer-flagged occupants,
// then all-computer slots, then the team name.
func classifyTeam(name string, slots []models.Slot) models.TeamCategory {
	computers := 0
	for _, s := range slots {
		if s.Observer {
			return models.TeamSpectator
		}
		if s.Computer {
			computers++
		}
	}
	if len(slots) > 0 && computers == len(slots) {
		return models.TeamOther
	}
	return Classify(name)
}
