// internal/models/player.go
package models

// PlayerStats is the enrichment data kept per player in a lobby.
//
// Fetched distinguishes "not looked up yet" from "looked up, nothing known";
// Rating is nil whenever no rating is available.
type PlayerStats struct {
	PlayerID   string   `json:"playerId"`
	Games      int      `json:"games"`
	Wins       int      `json:"wins"`
	Losses     int      `json:"losses"`
	Rating     *float64 `json:"rating,omitempty"`
	Deviation  float64  `json:"deviation,omitempty"`
	Rank       int      `json:"rank,omitempty"`
	LastChange float64  `json:"lastChange,omitempty"`

	Cleared bool `json:"cleared"` // passed ban/whitelist screening
	Fetched bool `json:"fetched"`
}

// RatingOr returns the rating, or def when none is available.
func (p PlayerStats) RatingOr(def float64) float64 {
	if p.Rating == nil {
		return def
	}
	return *p.Rating
}

// Float is a small helper for building optional ratings.
func Float(v float64) *float64 { return &v }
