// internal/controller/chat.go
package controller

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/lobbyhost/internal/balance"
	"github.com/jason-s-yu/lobbyhost/internal/events"
	"github.com/jason-s-yu/lobbyhost/internal/models"
	"github.com/jason-s-yu/lobbyhost/internal/rating"
)

func (c *Controller) onChat(m models.ChatMessage) {
	if !c.lobby.AppendChat(m) {
		return
	}
	c.publish(events.ChatReceived{Lobby: c.lobby.Name(), Message: m})

	s := c.settings.Settings()
	if !s.ChatCommands || s.ChatPrefix == "" || m.Sender == c.lobby.Self().PlayerID {
		return
	}
	text := strings.TrimSpace(m.Text)
	if !strings.HasPrefix(text, s.ChatPrefix) {
		return
	}
	fields := strings.Fields(strings.TrimPrefix(text, s.ChatPrefix))
	if len(fields) == 0 {
		return
	}

	c.log().WithFields(logrus.Fields{"sender": m.Sender, "command": fields[0]}).Debug("Chat command")
	switch strings.ToLower(fields[0]) {
	case "balance":
		plan, err := c.balance(OriginExternalPlayer, m.Sender)
		switch {
		case err != nil:
			c.notice(m.Sender, describe("Balance", err))
		case plan.Balanced:
			c.notice(m.Sender, "Teams are already balanced")
		default:
			c.notice(m.Sender, fmt.Sprintf("Balancing with %d swap(s)", len(plan.Swaps)))
		}

	case "start":
		delay := time.Duration(0)
		if len(fields) > 1 {
			if secs, err := strconv.Atoi(fields[1]); err == nil && secs >= 0 {
				delay = time.Duration(secs) * time.Second
			}
		}
		if err := c.startGame(OriginExternalPlayer, m.Sender, delay); err != nil {
			c.notice(m.Sender, describe("Start", err))
		}

	case "abort":
		if err := c.cancelStartRequest(OriginExternalPlayer, m.Sender); err != nil {
			c.notice(m.Sender, describe("Abort", err))
		}

	case "stats":
		target := m.Sender
		if len(fields) > 1 {
			target = c.findPlayer(fields[1])
		}
		c.notice(m.Sender, c.describeStats(target))
	}
}

// findPlayer resolves a chat argument to a seated player id by id or name.
func (c *Controller) findPlayer(arg string) string {
	for _, slot := range c.lobby.RealPlayers(false) {
		if slot.PlayerID == arg || strings.EqualFold(slot.PlayerName, arg) {
			return slot.PlayerID
		}
	}
	return arg
}

func (c *Controller) describeStats(playerID string) string {
	name := c.displayName(playerID)
	st, ok := c.lobby.Stats(playerID)
	switch {
	case !ok:
		return fmt.Sprintf("%s is not in this lobby", name)
	case !st.Fetched:
		return fmt.Sprintf("%s: stats pending", name)
	case st.Rating == nil:
		return fmt.Sprintf("%s: unrated, %d games", name, st.Games)
	case st.Deviation <= 0:
		return fmt.Sprintf("%s: %.0f, %d-%d over %d games", name, *st.Rating, st.Wins, st.Losses, st.Games)
	}
	r := rating.NewGlicko2Rating(*st.Rating, st.Deviation, rating.DefaultSigma)
	return fmt.Sprintf("%s: %.0f ±%.0f (at least %.0f), %d-%d over %d games",
		name, r.ToElo(), r.Deviation(), r.Conservative(), st.Wins, st.Losses, st.Games)
}

func describe(action string, err error) string {
	switch {
	case errors.Is(err, ErrPermission):
		return action + " refused: only admins may do that"
	case errors.Is(err, ErrNotHost):
		return action + " refused: this lobby is hosted by someone else"
	case errors.Is(err, ErrSwapPending):
		return action + " refused: swaps are still in progress"
	case errors.Is(err, balance.ErrStatsUnavailable):
		return action + " refused: waiting for player stats"
	case errors.Is(err, balance.ErrTooManyPlayers):
		return action + " refused: too many players to balance"
	}
	return fmt.Sprintf("%s failed: %v", action, err)
}
