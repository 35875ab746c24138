// internal/rating/glicko2.go
package rating

import "math"

const (
	// GlickoScale is the multiplier used for converting between Elo and Glicko2's mu.
	GlickoScale = 173.7178
	// DefaultMu is the baseline rating (1500) in Glicko2 terms.
	DefaultMu = 1500.0
	// DefaultPhi is the baseline rating deviation (RD) in Glicko2 terms (350).
	DefaultPhi = 350.0
	// DefaultSigma is the volatility assigned to unrated players.
	DefaultSigma = 0.06
)

// Glicko2Rating holds the transformed rating (Mu), rating deviation (Phi),
// and volatility (Sigma) for a single player in Glicko2 space.
type Glicko2Rating struct {
	Mu    float64
	Phi   float64
	Sigma float64
}

// NewGlicko2Rating creates a new Glicko2Rating from a standard Elo, rating deviation, and volatility.
//
// elo is the player's current rating in standard "1500-based" scale.
// rd is the player's rating deviation in the same scale (e.g., 350).
// A non-positive rd is treated as DefaultPhi.
func NewGlicko2Rating(elo, rd, sigma float64) Glicko2Rating {
	if rd <= 0 {
		rd = DefaultPhi
	}
	return Glicko2Rating{
		Mu:    (elo - DefaultMu) / GlickoScale,
		Phi:   rd / GlickoScale,
		Sigma: sigma,
	}
}

// ToElo converts a Glicko2Rating's Mu back to a standard 1500-based Elo scale.
func (r Glicko2Rating) ToElo() float64 {
	return r.Mu*GlickoScale + DefaultMu
}

// Deviation is the rating deviation on the Elo scale.
func (r Glicko2Rating) Deviation() float64 {
	return r.Phi * GlickoScale
}

// Conservative is the lower bound of the 95% interval, rounded to a whole point.
// Leaderboards use it to rank players whose deviation is still large.
func (r Glicko2Rating) Conservative() float64 {
	return math.Round(r.ToElo() - 2*r.Deviation())
}
