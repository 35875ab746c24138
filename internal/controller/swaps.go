// internal/controller/swaps.go
package controller

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/lobbyhost/internal/balance"
	"github.com/jason-s-yu/lobbyhost/internal/events"
	"github.com/jason-s-yu/lobbyhost/internal/protocol"
)

// expectedSwap is a swap the controller asked for and has not yet seen.
// Only the head of the queue is sent; the rest wait for it to land.
type expectedSwap struct {
	a, b    string
	balance bool
	sent    bool
}

func (e expectedSwap) involves(playerID string) bool {
	return e.a == playerID || e.b == playerID
}

func (e expectedSwap) matches(a, b string) bool {
	return (e.a == a && e.b == b) || (e.a == b && e.b == a)
}

// authorize checks that origin may run a privileged operation on the lobby.
func (c *Controller) authorize(origin Origin, requester string) error {
	switch origin {
	case OriginLocalOperator, OriginAutomation:
	case OriginExternalPlayer:
		if requester == "" || !c.eligibility.IsAdmin(requester) {
			return fmt.Errorf("%w: %s is not an admin", ErrPermission, c.displayName(requester))
		}
	default:
		return fmt.Errorf("%w: unknown origin %d", ErrPermission, origin)
	}
	if c.lobby == nil {
		return ErrNoLobby
	}
	if !c.lobby.IsHost() {
		return ErrNotHost
	}
	return nil
}

// balance computes a plan for the player teams and queues its swaps.
// Any error leaves the lobby untouched.
func (c *Controller) balance(origin Origin, requester string) (balance.Plan, error) {
	if err := c.authorize(origin, requester); err != nil {
		return balance.Plan{}, err
	}
	if len(c.expected) > 0 {
		return balance.Plan{}, ErrSwapPending
	}
	if !c.lobby.StatsAvailable {
		return balance.Plan{}, ErrStatsOff
	}

	s := c.settings.Settings()
	in := c.balanceInput(s)
	plan, err := balance.Compute(in)
	if err != nil {
		c.log().WithFields(logrus.Fields{"origin": origin, "error": err}).Info("Balance not possible")
		return balance.Plan{}, err
	}

	c.log().WithFields(logrus.Fields{
		"origin":    origin,
		"swaps":     len(plan.Swaps),
		"deviation": plan.Deviation,
	}).Info("Computed balance plan")

	c.balancedOnce = true
	if plan.Balanced {
		return plan, nil
	}

	c.cancelCountdown("balancing")
	c.satisfied = nil
	c.roundBroken = false
	for _, sw := range plan.Swaps {
		c.expected = append(c.expected, expectedSwap{a: sw.A, b: sw.B, balance: true})
	}
	if err := c.sendNextSwap(); err != nil {
		c.clearBalance()
		return balance.Plan{}, err
	}
	c.ready = false
	return plan, nil
}

func (c *Controller) balanceInput(s Settings) balance.Input {
	in := balance.Input{Ratings: make(map[string]float64)}
	byTeam := make(map[int]int)
	for _, slot := range c.lobby.RealPlayers(true) {
		idx, ok := byTeam[slot.Team]
		if !ok {
			idx = len(in.Teams)
			byTeam[slot.Team] = idx
			team, _ := c.lobby.Team(slot.Team)
			in.Teams = append(in.Teams, balance.Team{Name: team.Name})
		}
		id := slot.LiveID()
		in.Teams[idx].Players = append(in.Teams[idx].Players, id)
		in.Eligible = append(in.Eligible, id)
		if st, ok := c.lobby.Stats(id); ok && st.Fetched {
			in.Ratings[id] = st.RatingOr(s.DefaultRating)
		}
	}
	// teams with only open slots still take part
	for _, slot := range c.lobby.OpenSlots(true) {
		if _, ok := byTeam[slot.Team]; !ok {
			team, _ := c.lobby.Team(slot.Team)
			byTeam[slot.Team] = len(in.Teams)
			in.Teams = append(in.Teams, balance.Team{Name: team.Name, Players: []string{}})
		}
	}
	if s.ExcludeHost {
		in.Excluded = c.lobby.Descriptor.Host
	}
	return in
}

// swap queues a manual swap of two seated players.
func (c *Controller) swap(origin Origin, requester, a, b string) error {
	if err := c.authorize(origin, requester); err != nil {
		return err
	}
	if a == b {
		return fmt.Errorf("cannot swap %s with themselves", a)
	}
	for _, p := range []string{a, b} {
		if !c.lobby.Has(p) {
			return fmt.Errorf("%w: %s", ErrNotSeated, p)
		}
	}
	c.expected = append(c.expected, expectedSwap{a: a, b: b})
	if err := c.sendNextSwap(); err != nil {
		c.expected = c.expected[:len(c.expected)-1]
		return err
	}
	c.ready = false
	return nil
}

// sendNextSwap sends the head of the queue unless it is already out.
func (c *Controller) sendNextSwap() error {
	if len(c.expected) == 0 || c.expected[0].sent {
		return nil
	}
	head := c.expected[0]
	slotA, okA := c.lobby.SlotOf(head.a)
	slotB, okB := c.lobby.SlotOf(head.b)
	if !okA || !okB {
		violated("%w: swap %s<->%s references a player who is not seated", balance.ErrInvariant, head.a, head.b)
	}
	if err := c.send(protocol.SwapSlots{SlotA: slotA.Number, SlotB: slotB.Number}); err != nil {
		return err
	}
	c.expected[0].sent = true
	return nil
}

// observeSwap consumes the expected swap matching {a, b}, if any.
func (c *Controller) observeSwap(a, b string) bool {
	for i, e := range c.expected {
		if !e.matches(a, b) {
			continue
		}
		c.expected = append(c.expected[:i], c.expected[i+1:]...)
		if e.balance {
			c.satisfied = append(c.satisfied, balance.Swap{A: e.a, B: e.b})
		}
		return true
	}
	return false
}

// invalidateSwaps drops every expected swap involving a departed player.
// When that breaks a balance plan, its unsent swaps are dropped as well.
func (c *Controller) invalidateSwaps(playerID string) {
	kept := c.expected[:0]
	brokeBalance := false
	for _, e := range c.expected {
		if e.involves(playerID) {
			brokeBalance = brokeBalance || e.balance
			continue
		}
		kept = append(kept, e)
	}
	c.expected = kept
	if !brokeBalance {
		return
	}
	c.roundBroken = true
	remaining := c.expected[:0]
	for _, e := range c.expected {
		if !e.balance || e.sent {
			remaining = append(remaining, e)
		}
	}
	c.expected = remaining
}

// clearBalance abandons the current balance attempt along with anything
// not yet sent.
func (c *Controller) clearBalance() {
	remaining := c.expected[:0]
	for _, e := range c.expected {
		if !e.balance && e.sent {
			remaining = append(remaining, e)
		}
	}
	c.expected = remaining
	c.satisfied = nil
	c.roundBroken = false
}

// finishRound reports a balance round once nothing is outstanding.
func (c *Controller) finishRound() {
	if len(c.expected) > 0 || len(c.satisfied) == 0 {
		return
	}
	if !c.roundBroken {
		c.log().WithField("swaps", len(c.satisfied)).Info("Lobby balanced")
		c.publish(events.LobbyBalanced{Lobby: c.lobby.Name(), Swaps: c.satisfied, Teams: c.lobby.ExportTeams(true)})
	}
	c.satisfied = nil
	c.roundBroken = false
}

// command forwards a client command that has no controller bookkeeping.
func (c *Controller) command(origin Origin, requester string, cmd protocol.Command) error {
	switch cmd.(type) {
	case protocol.SwapSlots, protocol.LobbyStart:
		return errors.New("use Swap or StartGame for " + cmd.Type())
	case protocol.CreateLobby:
		if origin == OriginExternalPlayer {
			return fmt.Errorf("%w: players cannot create lobbies", ErrPermission)
		}
		if c.lobby != nil {
			return fmt.Errorf("already in lobby %q", c.lobby.Name())
		}
		return c.send(cmd)
	case protocol.LeaveGame:
		if origin == OriginExternalPlayer {
			return fmt.Errorf("%w: players cannot make the host leave", ErrPermission)
		}
		if c.lobby == nil {
			return ErrNoLobby
		}
		return c.send(cmd)
	}
	if err := c.authorize(origin, requester); err != nil {
		return err
	}
	return c.send(cmd)
}
