// internal/controller/readiness.go
package controller

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/lobbyhost/internal/events"
	"github.com/jason-s-yu/lobbyhost/internal/protocol"
)

// evaluate runs after every change to the lobby: it closes finished balance
// rounds, tracks readiness and drives the automation settings.
func (c *Controller) evaluate() {
	if c.lobby == nil {
		return
	}
	c.finishRound()

	s := c.settings.Settings()
	wasReady := c.ready
	c.ready = c.isLobbyReady(s)
	if !c.ready || wasReady {
		return
	}

	if c.startAt.IsZero() {
		c.log().Info("Lobby ready")
		c.publish(events.LobbyReady{Lobby: c.lobby.Name(), Teams: c.lobby.ExportTeams(true)})
	}

	if s.AutoBalance && !c.balancedOnce && c.lobby.StatsAvailable && c.lobby.IsHost() {
		plan, err := c.balance(OriginAutomation, "")
		if err != nil {
			c.notice("", fmt.Sprintf("Auto balance failed: %v", err))
			return
		}
		if !plan.Balanced {
			return
		}
	}
	if s.AutoStart && c.startAt.IsZero() && c.lobby.IsHost() {
		if err := c.startGame(OriginAutomation, "", s.StartDelay); err != nil {
			c.log().WithField("error", err).Warn("Auto start failed")
		}
	}
}

// isLobbyReady holds when every player-team slot is filled, nothing is
// pending, and, with stats on, every competing player is screened and looked up.
func (c *Controller) isLobbyReady(s Settings) bool {
	l := c.lobby
	if l == nil || len(c.expected) > 0 || len(c.refreshing) > 0 {
		return false
	}
	if len(l.OpenSlots(true)) > 0 {
		return false
	}
	players := l.RealPlayers(true)
	if len(players) < s.MinPlayers {
		return false
	}
	if !l.StatsAvailable {
		return true
	}
	for _, slot := range players {
		st, ok := l.Stats(slot.LiveID())
		if !ok || !st.Cleared || !st.Fetched {
			return false
		}
	}
	return true
}

func (c *Controller) startGame(origin Origin, requester string, delay time.Duration) error {
	if err := c.authorize(origin, requester); err != nil {
		return err
	}
	if delay <= 0 {
		delay = c.settings.Settings().StartDelay
	}
	c.startAt = time.Now().Add(delay)
	c.arm(timerKey{kind: timerStart}, delay)

	c.log().WithFields(logrus.Fields{"origin": origin, "delay": delay}).Info("Start countdown armed")
	c.publish(events.StartArmed{Lobby: c.lobby.Name(), Delay: delay, At: c.startAt})
	return nil
}

func (c *Controller) cancelStartRequest(origin Origin, requester string) error {
	if err := c.authorize(origin, requester); err != nil {
		return err
	}
	if c.startAt.IsZero() {
		return nil
	}
	c.cancelCountdown(fmt.Sprintf("cancelled by %s", origin))
	return nil
}

func (c *Controller) cancelCountdown(reason string) {
	if c.startAt.IsZero() {
		return
	}
	c.disarm(timerKey{kind: timerStart})
	c.startAt = time.Time{}
	c.log().WithField("reason", reason).Info("Start countdown cancelled")
	c.publish(events.StartCancelled{Lobby: c.lobby.Name(), Reason: reason})
}

func (c *Controller) onStartExpired() {
	c.startAt = time.Time{}
	if c.lobby == nil {
		return
	}
	s := c.settings.Settings()
	switch {
	case !c.lobby.IsHost():
		c.publish(events.StartCancelled{Lobby: c.lobby.Name(), Reason: "no longer host"})
		return
	case !c.isLobbyReady(s):
		c.publish(events.StartCancelled{Lobby: c.lobby.Name(), Reason: "lobby not ready"})
		c.notice("", "Start aborted: lobby is not ready")
		return
	}
	if err := c.send(protocol.LobbyStart{}); err != nil {
		c.publish(events.StartCancelled{Lobby: c.lobby.Name(), Reason: err.Error()})
		return
	}
	c.log().Info("Game started")
	c.publish(events.GameStarted{Lobby: c.lobby.Name(), Teams: c.lobby.ExportTeams(false)})
}

// onStale handles a lobby that has been quiet for StaleAfter. A lobby with
// fewer than two players is reported; otherwise every open slot is closed
// and reopened so the client announces it again.
func (c *Controller) onStale() {
	if c.lobby == nil {
		return
	}
	players := len(c.lobby.RealPlayers(false))
	if players < 2 {
		c.log().WithField("players", players).Info("Lobby is stale")
		c.publish(events.LobbyStale{Lobby: c.lobby.Name(), Players: players})
		return
	}

	s := c.settings.Settings()
	defer c.armStale(s)
	if !c.lobby.IsHost() {
		return
	}

	c.refreshing = make(map[int]bool)
	for _, slot := range c.lobby.OpenSlots(false) {
		if c.send(protocol.CloseSlot{Slot: slot.Number}) != nil {
			continue
		}
		if c.send(protocol.OpenSlot{Slot: slot.Number}) != nil {
			continue
		}
		c.refreshing[slot.Number] = true
	}
	if len(c.refreshing) > 0 {
		c.log().WithField("slots", len(c.refreshing)).Info("Refreshing open slots")
		c.ready = false
	}
}
