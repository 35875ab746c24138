// internal/lobby/lobby.go
package lobby

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jason-s-yu/lobbyhost/internal/models"
)

// ErrInvalidState is returned when a payload cannot be trusted to describe a lobby.
var ErrInvalidState = errors.New("invalid lobby state")

const (
	// chatDuplicateWindow is how long an identical line from the same sender is treated as noise.
	chatDuplicateWindow = time.Second
	// debugEscape prefixes client debug lines that never belong in the chat log.
	debugEscape = "\x1b"
)

// Lobby is the in-memory model of one hosted lobby. It does no I/O and is not
// safe for concurrent use; the controller owns it from a single goroutine.
type Lobby struct {
	Descriptor models.Descriptor `json:"descriptor"`
	CreatedAt  time.Time         `json:"createdAt"`

	// StatsAvailable is set when player stats are looked up for this lobby.
	StatsAvailable bool `json:"statsAvailable"`

	teams map[int]models.TeamInfo
	slots map[int]models.Slot
	chat  []models.ChatMessage
	stats map[string]models.PlayerStats
}

// SlotChange is a slot whose content differs from what was stored.
type SlotChange struct {
	Old   models.Slot
	New   models.Slot
	Added bool // no slot with this number was known before
}

// New builds a fresh lobby from a full snapshot.
//
// A snapshot without a host, without slots, or without the local viewer's own
// slot is rejected with ErrInvalidState.
func New(desc models.Descriptor, teams []models.TeamInfo, slots []models.Slot) (*Lobby, error) {
	if strings.TrimSpace(desc.Host) == "" {
		return nil, fmt.Errorf("%w: lobby %q has no host", ErrInvalidState, desc.LobbyName)
	}
	if len(slots) == 0 {
		return nil, fmt.Errorf("%w: lobby %q has no slots", ErrInvalidState, desc.LobbyName)
	}

	l := &Lobby{
		Descriptor: desc,
		CreatedAt:  time.Now(),
		teams:      make(map[int]models.TeamInfo),
		slots:      make(map[int]models.Slot, len(slots)),
		stats:      make(map[string]models.PlayerStats),
	}

	self := 0
	for _, s := range slots {
		if _, dup := l.slots[s.Number]; dup {
			return nil, fmt.Errorf("%w: duplicate slot %d", ErrInvalidState, s.Number)
		}
		l.slots[s.Number] = s
		if s.IsSelf {
			self++
		}
	}
	if self != 1 {
		return nil, fmt.Errorf("%w: local viewer not found among %d slots", ErrInvalidState, len(slots))
	}

	for _, t := range teams {
		l.teams[t.Number] = t
	}
	for _, s := range l.slots {
		if _, ok := l.teams[s.Team]; !ok {
			l.teams[s.Team] = models.TeamInfo{Number: s.Team, Name: fmt.Sprintf("Team %d", s.Team+1)}
		}
	}
	for n, t := range l.teams {
		t.Category = classifyTeam(t.Name, l.slotsOfTeam(n))
		l.teams[n] = t
	}

	l.syncStats()
	return l, nil
}

// Name returns the lobby name, the identity of this lobby instance.
func (l *Lobby) Name() string { return l.Descriptor.LobbyName }

// ApplySlotDiff stores every slot whose content changed and reports only
// those. Re-applying an identical snapshot reports nothing.
func (l *Lobby) ApplySlotDiff(slots []models.Slot) []SlotChange {
	var changes []SlotChange
	for _, s := range slots {
		old, known := l.slots[s.Number]
		if known && old == s {
			continue
		}
		if _, ok := l.teams[s.Team]; !ok {
			name := fmt.Sprintf("Team %d", s.Team+1)
			l.teams[s.Team] = models.TeamInfo{Number: s.Team, Name: name, Category: classifyTeam(name, []models.Slot{s})}
		}
		l.slots[s.Number] = s
		changes = append(changes, SlotChange{Old: old, New: s, Added: !known})
	}
	if len(changes) > 0 {
		l.syncStats()
	}
	return changes
}

// syncStats creates stats entries for newly present live players and drops
// entries for players no longer in any slot.
func (l *Lobby) syncStats() {
	present := make(map[string]bool)
	for _, s := range l.slots {
		if id := s.LiveID(); id != "" {
			present[id] = true
			if _, ok := l.stats[id]; !ok {
				l.stats[id] = models.PlayerStats{PlayerID: id}
			}
		}
	}
	for id := range l.stats {
		if !present[id] {
			delete(l.stats, id)
		}
	}
}

// Slot returns the slot with the given number.
func (l *Lobby) Slot(n int) (models.Slot, bool) {
	s, ok := l.slots[n]
	return s, ok
}

// Slots returns all slots ordered by number.
func (l *Lobby) Slots() []models.Slot {
	out := make([]models.Slot, 0, len(l.slots))
	for _, s := range l.slots {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// SlotOf finds the slot currently occupied by a live player.
func (l *Lobby) SlotOf(playerID string) (models.Slot, bool) {
	if playerID == "" {
		return models.Slot{}, false
	}
	for _, s := range l.slots {
		if s.LiveID() == playerID {
			return s, true
		}
	}
	return models.Slot{}, false
}

// Has reports whether the player is still seated in the lobby.
func (l *Lobby) Has(playerID string) bool {
	_, ok := l.SlotOf(playerID)
	return ok
}

// Self returns the local viewer's slot.
func (l *Lobby) Self() models.Slot {
	for _, s := range l.slots {
		if s.IsSelf {
			return s
		}
	}
	return models.Slot{}
}

// IsHost reports whether the local viewer hosts this lobby.
func (l *Lobby) IsHost() bool {
	self := l.Self()
	return self.PlayerID != "" && self.PlayerID == l.Descriptor.Host
}

// Team returns the team descriptor for a team number.
func (l *Lobby) Team(n int) (models.TeamInfo, bool) {
	t, ok := l.teams[n]
	return t, ok
}

// IsPlayerTeam reports whether the team holds competing players.
func (l *Lobby) IsPlayerTeam(n int) bool {
	return l.teams[n].Category == models.TeamPlayer
}

// RealPlayers returns the slots holding live players, optionally only those
// on player teams.
func (l *Lobby) RealPlayers(playerTeamsOnly bool) []models.Slot {
	var out []models.Slot
	for _, s := range l.Slots() {
		if s.LiveID() == "" {
			continue
		}
		if playerTeamsOnly && !l.IsPlayerTeam(s.Team) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// OpenSlots returns the open slots, optionally only those on player teams.
func (l *Lobby) OpenSlots(playerTeamsOnly bool) []models.Slot {
	var out []models.Slot
	for _, s := range l.Slots() {
		if s.Status != models.SlotOpen {
			continue
		}
		if playerTeamsOnly && !l.IsPlayerTeam(s.Team) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Stats returns the stats entry of a present player.
func (l *Lobby) Stats(playerID string) (models.PlayerStats, bool) {
	ps, ok := l.stats[playerID]
	return ps, ok
}

// UpdateStats mutates the stats entry of a present player. It returns false
// when the player has left, in which case nothing is stored.
func (l *Lobby) UpdateStats(playerID string, fn func(*models.PlayerStats)) bool {
	ps, ok := l.stats[playerID]
	if !ok {
		return false
	}
	fn(&ps)
	ps.PlayerID = playerID
	l.stats[playerID] = ps
	return true
}

// AppendChat adds a line to the chat log. Debug lines and repeats of the same
// line by the same sender within a short window are dropped.
func (l *Lobby) AppendChat(msg models.ChatMessage) bool {
	if strings.HasPrefix(msg.Text, debugEscape) {
		return false
	}
	if msg.At.IsZero() {
		msg.At = time.Now()
	}
	for i := len(l.chat) - 1; i >= 0; i-- {
		prev := l.chat[i]
		if msg.At.Sub(prev.At) > chatDuplicateWindow {
			break
		}
		if prev.Sender == msg.Sender && prev.Text == msg.Text {
			return false
		}
	}
	l.chat = append(l.chat, msg)
	return true
}

// ChatLog returns a copy of the chat log.
func (l *Lobby) ChatLog() []models.ChatMessage {
	out := make([]models.ChatMessage, len(l.chat))
	copy(out, l.chat)
	return out
}

func (l *Lobby) slotsOfTeam(team int) []models.Slot {
	var out []models.Slot
	for _, s := range l.slots {
		if s.Team == team {
			out = append(out, s)
		}
	}
	return out
}
