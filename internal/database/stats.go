// internal/database/stats.go
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrPlayerNotFound is returned when no row exists for a player id.
var ErrPlayerNotFound = errors.New("player not found")

// Querier is the subset of *pgxpool.Pool used for stats lookups.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PlayerRecord is a player's leaderboard row.
type PlayerRecord struct {
	Games      int
	Wins       int
	Losses     int
	Rating     *float64 // nil until the player has a rated game
	Deviation  *float64
	Volatility *float64
	Rank       int
	LastChange float64
}

const playerStatsQuery = `
	SELECT p.games, p.wins, p.losses,
	       p.rating::float8, p.rd::float8, p.volatility::float8,
	       CASE WHEN p.rating IS NULL THEN 0
	            ELSE (SELECT COUNT(*) + 1 FROM players o WHERE o.rating > p.rating)::int
	       END,
	       COALESCE((
	           SELECT (r.new_rating - r.old_rating)::float8
	           FROM ratings r
	           WHERE r.player_id = p.id
	           ORDER BY r.created_at DESC
	           LIMIT 1
	       ), 0)::float8
	FROM players p
	WHERE p.id = $1
`

// GetPlayerStats loads the leaderboard row for playerID.
func GetPlayerStats(ctx context.Context, q Querier, playerID string) (PlayerRecord, error) {
	var rec PlayerRecord
	err := q.QueryRow(ctx, playerStatsQuery, playerID).Scan(
		&rec.Games, &rec.Wins, &rec.Losses,
		&rec.Rating, &rec.Deviation, &rec.Volatility,
		&rec.Rank, &rec.LastChange,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return PlayerRecord{}, fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}
	if err != nil {
		return PlayerRecord{}, fmt.Errorf("failed to query stats for %s: %w", playerID, err)
	}
	return rec, nil
}
