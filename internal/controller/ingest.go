// internal/controller/ingest.go
package controller

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/lobbyhost/internal/events"
	"github.com/jason-s-yu/lobbyhost/internal/lobby"
	"github.com/jason-s-yu/lobbyhost/internal/models"
	"github.com/jason-s-yu/lobbyhost/internal/protocol"
)

func (c *Controller) onInbound(in protocol.Inbound) error {
	switch in := in.(type) {
	case protocol.LobbySnapshot:
		if c.lobby == nil || c.lobby.Name() != in.Descriptor.LobbyName {
			return c.enterLobby(in)
		}
		c.applySlots(in.Slots)
		return nil

	case protocol.SlotUpdate:
		if c.lobby == nil {
			return ErrNoLobby
		}
		if in.LobbyName != "" && in.LobbyName != c.lobby.Name() {
			return fmt.Errorf("%w: got %q while in %q", ErrLobbyChange, in.LobbyName, c.lobby.Name())
		}
		c.applySlots(in.Slots)
		return nil

	case protocol.ChatMessage:
		if c.lobby == nil {
			return ErrNoLobby
		}
		c.onChat(in.Message)
		return nil

	case protocol.ConnectionClosed:
		c.leave("connection closed: " + in.Reason)
		return nil

	case protocol.LeftLobby:
		c.leave("left lobby")
		return nil
	}
	return fmt.Errorf("%w: %T", protocol.ErrUnknownType, in)
}

// enterLobby replaces the current lobby. A snapshot that cannot be trusted
// leaves everything as it was.
func (c *Controller) enterLobby(snap protocol.LobbySnapshot) error {
	l, err := lobby.New(snap.Descriptor, snap.Teams, snap.Slots)
	if err != nil {
		c.log().WithFields(logrus.Fields{
			"incoming": snap.Descriptor.LobbyName,
			"error":    err,
		}).Warn("Rejected lobby snapshot")
		return fmt.Errorf("failed to enter lobby %q: %w", snap.Descriptor.LobbyName, err)
	}

	s := c.settings.Settings()
	c.resetSession()
	l.StatsAvailable = s.StatsEnabled && c.stats != nil
	c.lobby = l

	c.log().WithFields(logrus.Fields{
		"map":  l.Descriptor.MapName,
		"host": l.Descriptor.Host,
	}).Info("Entered lobby")
	c.publish(events.NewLobby{Lobby: l.Name(), Descriptor: l.Descriptor, Teams: l.ExportTeams(false)})

	for _, slot := range l.RealPlayers(false) {
		c.screen(slot)
	}
	c.armStale(s)
	c.evaluate()
	return nil
}

// resetSession drops everything tied to the current lobby. In-flight
// fetches are invalidated by the epoch bump.
func (c *Controller) resetSession() {
	c.disarmAll()
	c.epoch++
	c.lobby = nil
	c.expected = nil
	c.satisfied = nil
	c.roundBroken = false
	c.balancedOnce = false
	c.ready = false
	c.startAt = time.Time{}
	c.refreshing = make(map[int]bool)
	c.inFlight = make(map[string]bool)
	c.attempts = make(map[string]int)
	c.backoffs = make(map[string]*backoff.ExponentialBackOff)
}

func (c *Controller) leave(reason string) {
	if c.lobby == nil {
		return
	}
	name := c.lobby.Name()
	c.log().WithField("reason", reason).Info("Left lobby")
	c.resetSession()
	c.publish(events.LeftLobby{Lobby: name})
}

func (c *Controller) applySlots(slots []models.Slot) {
	l := c.lobby
	// a refreshed slot is done once the client reports it again, changed or not
	refreshed := false
	for _, slot := range slots {
		if c.refreshing[slot.Number] && slot.Status != models.SlotClosed {
			delete(c.refreshing, slot.Number)
			refreshed = true
		}
	}

	changes := l.ApplySlotDiff(slots)
	if len(changes) == 0 {
		if refreshed {
			c.evaluate()
		}
		return
	}

	c.publish(events.PayloadChanged{Lobby: l.Name(), Teams: l.ExportTeams(false)})

	for _, ev := range l.DeriveEvents(changes) {
		switch ev := ev.(type) {
		case lobby.PlayerJoined:
			c.balancedOnce = false
			c.publish(events.PlayerJoined{Lobby: l.Name(), PlayerID: ev.PlayerID, Slot: ev.Slot, Teams: l.ExportTeams(false)})
			if slot, ok := l.Slot(ev.Slot); ok {
				c.screen(slot)
			}

		case lobby.PlayerLeft:
			c.balancedOnce = false
			c.forgetPlayer(ev.PlayerID)
			c.invalidateSwaps(ev.PlayerID)
			c.cancelCountdown(fmt.Sprintf("%s left", ev.PlayerID))
			c.publish(events.PlayerLeft{Lobby: l.Name(), PlayerID: ev.PlayerID, Slot: ev.Slot, Teams: l.ExportTeams(false)})

		case lobby.PlayersSwapped:
			expected := c.observeSwap(ev.A, ev.B)
			if !expected {
				c.balancedOnce = false
				c.cancelCountdown("players swapped")
			}
			c.publish(events.PlayersSwapped{Lobby: l.Name(), A: ev.A, B: ev.B, Expected: expected, Teams: l.ExportTeams(false)})

		case lobby.PlayerMoved:
			if l.IsPlayerTeam(teamOf(changes, ev.From)) != l.IsPlayerTeam(teamOf(changes, ev.To)) {
				c.balancedOnce = false
			}
		}
	}

	c.armStale(c.settings.Settings())
	if err := c.sendNextSwap(); err != nil {
		c.log().WithField("error", err).Warn("Failed to send queued swap, abandoning balance")
		c.clearBalance()
	}
	c.evaluate()
}

func teamOf(changes []lobby.SlotChange, slot int) int {
	for _, ch := range changes {
		if ch.New.Number == slot {
			return ch.New.Team
		}
	}
	return -1
}

// forgetPlayer stops retries for a player who left. An in-flight lookup is
// left to finish so a quick rejoin never starts a second one.
func (c *Controller) forgetPlayer(playerID string) {
	delete(c.attempts, playerID)
	delete(c.backoffs, playerID)
	c.disarm(timerKey{kind: timerRetry, player: playerID})
}
