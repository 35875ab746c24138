// internal/stats/random.go
package stats

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/jason-s-yu/lobbyhost/internal/models"
	"github.com/jason-s-yu/lobbyhost/internal/rating"
)

// RandomProvider invents plausible stats. It is meant for local testing
// against a real client without a leaderboard.
type RandomProvider struct {
	mu     sync.Mutex
	rng    *rand.Rand
	spread float64
}

// NewRandomProvider draws ratings from a normal distribution centred on the
// Glicko default with the given standard deviation.
func NewRandomProvider(seed uint64, spread float64) *RandomProvider {
	return &RandomProvider{
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		spread: spread,
	}
}

func (p *RandomProvider) Fetch(ctx context.Context, playerID string) (models.PlayerStats, error) {
	if err := ctx.Err(); err != nil {
		return models.PlayerStats{}, err
	}

	p.mu.Lock()
	elo := rating.DefaultMu + p.rng.NormFloat64()*p.spread
	rd := 50 + p.rng.Float64()*150
	games := p.rng.IntN(300)
	wins := 0
	if games > 0 {
		wins = p.rng.IntN(games + 1)
	}
	change := math.Round(p.rng.NormFloat64() * 15)
	p.mu.Unlock()

	return models.PlayerStats{
		PlayerID:   playerID,
		Games:      games,
		Wins:       wins,
		Losses:     games - wins,
		Rating:     models.Float(math.Round(elo)),
		Deviation:  rd,
		LastChange: change,
		Fetched:    true,
	}, nil
}
