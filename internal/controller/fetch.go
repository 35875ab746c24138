// internal/controller/fetch.go
package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/lobbyhost/internal/events"
	"github.com/jason-s-yu/lobbyhost/internal/models"
	"github.com/jason-s-yu/lobbyhost/internal/protocol"
	"github.com/jason-s-yu/lobbyhost/internal/stats"
)

// screen runs eligibility for a newly seated player and, once cleared,
// starts the stats lookup.
func (c *Controller) screen(slot models.Slot) {
	id := slot.LiveID()
	if id == "" {
		return
	}

	verdict := Verdict{Cleared: true}
	if !slot.IsSelf {
		verdict = c.eligibility.Check(id)
	}
	if !verdict.Cleared {
		c.log().WithFields(logrus.Fields{
			"player": id,
			"reason": verdict.Reason,
		}).Info("Player failed screening")
		c.lobby.UpdateStats(id, func(s *models.PlayerStats) { s.Cleared = false })
		if c.lobby.IsHost() {
			c.send(protocol.KickSlot{Slot: slot.Number})
		}
		c.notice(id, fmt.Sprintf("%s cannot play here: %s", slot.Label(), verdict.Reason))
		return
	}

	c.lobby.UpdateStats(id, func(s *models.PlayerStats) { s.Cleared = true })
	if c.lobby.StatsAvailable {
		c.fetch(id)
	}
}

// fetch starts a lookup unless one is already running for the player.
func (c *Controller) fetch(playerID string) {
	if c.inFlight[playerID] {
		return
	}
	c.inFlight[playerID] = true
	c.attempts[playerID]++

	epoch := c.epoch
	timeout := c.settings.Settings().FetchTimeout
	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, timeout)
		defer cancel()
		st, err := c.stats.Fetch(ctx, playerID)
		c.post(fetchDone{epoch: epoch, playerID: playerID, stats: st, err: err})
	}()
}

func (c *Controller) onFetchDone(m fetchDone) {
	logger := c.log().WithField("player", m.playerID)
	if m.epoch != c.epoch {
		logger.Debug("Discarding lookup from a previous lobby")
		return
	}
	delete(c.inFlight, m.playerID)
	if c.lobby == nil || !c.lobby.Has(m.playerID) {
		logger.Debug("Discarding lookup for departed player")
		return
	}

	s := c.settings.Settings()
	switch {
	case m.err == nil:
		c.storeStats(m.playerID, m.stats)

	case errors.Is(m.err, stats.ErrNotFound):
		logger.Info("No stats known for player")
		c.storeStats(m.playerID, models.PlayerStats{})

	case errors.Is(m.err, stats.ErrTransient) && c.attempts[m.playerID] < s.FetchAttempts:
		delay := c.backoffFor(m.playerID, s).NextBackOff()
		logger.WithFields(logrus.Fields{
			"error":   m.err,
			"attempt": c.attempts[m.playerID],
			"retryIn": delay,
		}).Warn("Stats lookup failed, retrying")
		c.arm(timerKey{kind: timerRetry, player: m.playerID}, delay)
		return

	default:
		logger.WithFields(logrus.Fields{
			"error":   m.err,
			"attempt": c.attempts[m.playerID],
		}).Warn("Giving up on stats lookup")
		c.storeStats(m.playerID, models.PlayerStats{})
		c.notice(m.playerID, fmt.Sprintf("Stats unavailable for %s", c.displayName(m.playerID)))
	}
	c.evaluate()
}

// storeStats records a finished lookup, keeping the screening result.
func (c *Controller) storeStats(playerID string, fetched models.PlayerStats) {
	delete(c.attempts, playerID)
	delete(c.backoffs, playerID)

	var stored models.PlayerStats
	c.lobby.UpdateStats(playerID, func(s *models.PlayerStats) {
		cleared := s.Cleared
		*s = fetched
		s.PlayerID = playerID
		s.Cleared = cleared
		s.Fetched = true
		stored = *s
	})
	c.publish(events.PlayerDataUpdated{
		Lobby:    c.lobby.Name(),
		PlayerID: playerID,
		Stats:    stored,
		Teams:    c.lobby.ExportTeams(false),
	})
}

func (c *Controller) backoffFor(playerID string, s Settings) *backoff.ExponentialBackOff {
	b, ok := c.backoffs[playerID]
	if !ok {
		b = backoff.NewExponentialBackOff()
		b.InitialInterval = s.RetryInitial
		b.MaxInterval = s.RetryMax
		b.Reset()
		c.backoffs[playerID] = b
	}
	return b
}

func (c *Controller) onRetry(playerID string) {
	if c.lobby == nil || !c.lobby.Has(playerID) {
		return
	}
	c.fetch(playerID)
}

func (c *Controller) displayName(playerID string) string {
	if c.lobby != nil {
		if slot, ok := c.lobby.SlotOf(playerID); ok && slot.PlayerName != "" {
			return slot.PlayerName
		}
	}
	return playerID
}
