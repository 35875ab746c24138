// internal/stats/http.go
package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/lobbyhost/internal/models"
)

// HTTPProvider reads player stats from a leaderboard REST API
// exposing GET {base}/players/{id}.
type HTTPProvider struct {
	rest   *resty.Client
	logger *logrus.Logger
}

type playerResponse struct {
	ID         string   `json:"id"`
	Games      int      `json:"games"`
	Wins       int      `json:"wins"`
	Losses     int      `json:"losses"`
	Rating     *float64 `json:"rating"`
	Deviation  float64  `json:"deviation"`
	Rank       int      `json:"rank"`
	LastChange float64  `json:"lastChange"`
}

func NewHTTPProvider(baseURL string, timeout time.Duration, logger *logrus.Logger) *HTTPProvider {
	rest := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &HTTPProvider{rest: rest, logger: logger}
}

func (p *HTTPProvider) Fetch(ctx context.Context, playerID string) (models.PlayerStats, error) {
	response, err := p.rest.R().
		SetContext(ctx).
		SetPathParam("id", playerID).
		Get("/players/{id}")
	if err != nil {
		if ctx.Err() != nil {
			return models.PlayerStats{}, contextErr(ctx)
		}
		return models.PlayerStats{}, fmt.Errorf("%w: %v", ErrTransient, err)
	}

	switch status := response.StatusCode(); {
	case status == http.StatusNotFound:
		return models.PlayerStats{}, fmt.Errorf("%w: %s", ErrNotFound, playerID)
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return models.PlayerStats{}, fmt.Errorf("%w: status %d", ErrTransient, status)
	case status != http.StatusOK:
		p.logger.WithFields(logrus.Fields{
			"player": playerID,
			"status": status,
			"body":   response.String(),
		}).Warn("Unexpected stats API response")
		return models.PlayerStats{}, fmt.Errorf("stats API returned status %d for %s", status, playerID)
	}

	var body playerResponse
	if err := json.Unmarshal(response.Body(), &body); err != nil {
		return models.PlayerStats{}, fmt.Errorf("failed to decode stats for %s: %w", playerID, err)
	}
	return models.PlayerStats{
		PlayerID:   playerID,
		Games:      body.Games,
		Wins:       body.Wins,
		Losses:     body.Losses,
		Rating:     body.Rating,
		Deviation:  body.Deviation,
		Rank:       body.Rank,
		LastChange: body.LastChange,
		Fetched:    true,
	}, nil
}
