// internal/stats/provider.go
package stats

import (
	"context"
	"errors"
	"fmt"

	"github.com/jason-s-yu/lobbyhost/internal/models"
)

var (
	// ErrTransient marks failures worth retrying: network errors, timeouts and 5xx responses.
	ErrTransient = errors.New("stats lookup failed temporarily")
	// ErrNotFound means the lookup succeeded but nothing is known about the player.
	ErrNotFound = errors.New("no stats for player")
)

// Provider looks up enrichment data for a player.
// Implementations must be safe for concurrent calls on distinct players.
type Provider interface {
	Fetch(ctx context.Context, playerID string) (models.PlayerStats, error)
}

// ProviderFunc adapts a plain function to Provider.
type ProviderFunc func(ctx context.Context, playerID string) (models.PlayerStats, error)

func (f ProviderFunc) Fetch(ctx context.Context, playerID string) (models.PlayerStats, error) {
	return f(ctx, playerID)
}

// contextErr reports why ctx ended. A deadline is a timeout and may be
// retried; cancellation is returned as is.
func contextErr(ctx context.Context) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return err
}
