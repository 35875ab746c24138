// internal/stats/postgres.go
package stats

import (
	"context"
	"errors"
	"fmt"

	"github.com/jason-s-yu/lobbyhost/internal/database"
	"github.com/jason-s-yu/lobbyhost/internal/models"
	"github.com/jason-s-yu/lobbyhost/internal/rating"
)

// PostgresProvider reads player stats straight from the leaderboard tables.
type PostgresProvider struct {
	db database.Querier
}

func NewPostgresProvider(db database.Querier) *PostgresProvider {
	return &PostgresProvider{db: db}
}

func (p *PostgresProvider) Fetch(ctx context.Context, playerID string) (models.PlayerStats, error) {
	rec, err := database.GetPlayerStats(ctx, p.db, playerID)
	switch {
	case errors.Is(err, database.ErrPlayerNotFound):
		return models.PlayerStats{}, fmt.Errorf("%w: %s", ErrNotFound, playerID)
	case err != nil && ctx.Err() != nil:
		return models.PlayerStats{}, contextErr(ctx)
	case err != nil:
		return models.PlayerStats{}, fmt.Errorf("%w: %w", ErrTransient, err)
	}

	stats := models.PlayerStats{
		PlayerID:   playerID,
		Games:      rec.Games,
		Wins:       rec.Wins,
		Losses:     rec.Losses,
		Rank:       rec.Rank,
		LastChange: rec.LastChange,
		Fetched:    true,
	}
	if rec.Rating != nil {
		stats.Rating = models.Float(*rec.Rating)
		stats.Deviation = deref(rec.Deviation, rating.DefaultPhi)
	}
	return stats, nil
}

func deref(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
