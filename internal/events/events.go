// internal/events/events.go
package events

import (
	"time"

	"github.com/jason-s-yu/lobbyhost/internal/balance"
	"github.com/jason-s-yu/lobbyhost/internal/lobby"
	"github.com/jason-s-yu/lobbyhost/internal/models"
)

// Kind names an event on the wire.
type Kind string

const (
	KindNewLobby          Kind = "new-lobby"
	KindPayloadChanged    Kind = "payload-changed"
	KindPlayerJoined      Kind = "player-joined"
	KindPlayerLeft        Kind = "player-left"
	KindPlayersSwapped    Kind = "players-swapped"
	KindPlayerDataUpdated Kind = "player-data-updated"
	KindLobbyReady        Kind = "lobby-ready"
	KindLobbyBalanced     Kind = "lobby-balanced"
	KindLobbyStale        Kind = "lobby-stale"
	KindLeftLobby         Kind = "left-lobby"
	KindChatReceived      Kind = "chat-received"
	KindNotice            Kind = "notice"
	KindStartArmed        Kind = "start-armed"
	KindStartCancelled    Kind = "start-cancelled"
	KindGameStarted       Kind = "game-started"
)

// Event is a closed set of notifications published by the controller.
type Event interface {
	Kind() Kind
	isEvent()
}

// NewLobby: a lobby with a different name replaced the previous one.
type NewLobby struct {
	Lobby      string            `json:"lobby"`
	Descriptor models.Descriptor `json:"descriptor"`
	Teams      []lobby.TeamView  `json:"teams"`
}

// PayloadChanged: slots changed without a more specific event.
type PayloadChanged struct {
	Lobby string           `json:"lobby"`
	Teams []lobby.TeamView `json:"teams"`
}

type PlayerJoined struct {
	Lobby    string           `json:"lobby"`
	PlayerID string           `json:"playerId"`
	Slot     int              `json:"slot"`
	Teams    []lobby.TeamView `json:"teams"`
}

type PlayerLeft struct {
	Lobby    string           `json:"lobby"`
	PlayerID string           `json:"playerId"`
	Slot     int              `json:"slot"`
	Teams    []lobby.TeamView `json:"teams"`
}

// PlayersSwapped: two players exchanged slots. Expected is set when the swap
// matched one the controller requested.
type PlayersSwapped struct {
	Lobby    string           `json:"lobby"`
	A        string           `json:"a"`
	B        string           `json:"b"`
	Expected bool             `json:"expected"`
	Teams    []lobby.TeamView `json:"teams"`
}

type PlayerDataUpdated struct {
	Lobby    string             `json:"lobby"`
	PlayerID string             `json:"playerId"`
	Stats    models.PlayerStats `json:"stats"`
	Teams    []lobby.TeamView   `json:"teams"`
}

type LobbyReady struct {
	Lobby string           `json:"lobby"`
	Teams []lobby.TeamView `json:"teams"`
}

// LobbyBalanced: every swap of a balance plan was observed.
type LobbyBalanced struct {
	Lobby string           `json:"lobby"`
	Swaps []balance.Swap   `json:"swaps"`
	Teams []lobby.TeamView `json:"teams"`
}

// LobbyStale: the lobby sat idle with fewer than two real players.
type LobbyStale struct {
	Lobby   string `json:"lobby"`
	Players int    `json:"players"`
}

type LeftLobby struct {
	Lobby string `json:"lobby"`
}

type ChatReceived struct {
	Lobby   string             `json:"lobby"`
	Message models.ChatMessage `json:"message"`
}

// Notice is a human readable message, optionally aimed at one player.
type Notice struct {
	Lobby    string `json:"lobby"`
	PlayerID string `json:"playerId,omitempty"`
	Text     string `json:"text"`
}

type StartArmed struct {
	Lobby string        `json:"lobby"`
	Delay time.Duration `json:"delay"`
	At    time.Time     `json:"at"`
}

type StartCancelled struct {
	Lobby  string `json:"lobby"`
	Reason string `json:"reason"`
}

type GameStarted struct {
	Lobby string           `json:"lobby"`
	Teams []lobby.TeamView `json:"teams"`
}

func (NewLobby) Kind() Kind          { return KindNewLobby }
func (PayloadChanged) Kind() Kind    { return KindPayloadChanged }
func (PlayerJoined) Kind() Kind      { return KindPlayerJoined }
func (PlayerLeft) Kind() Kind        { return KindPlayerLeft }
func (PlayersSwapped) Kind() Kind    { return KindPlayersSwapped }
func (PlayerDataUpdated) Kind() Kind { return KindPlayerDataUpdated }
func (LobbyReady) Kind() Kind        { return KindLobbyReady }
func (LobbyBalanced) Kind() Kind     { return KindLobbyBalanced }
func (LobbyStale) Kind() Kind        { return KindLobbyStale }
func (LeftLobby) Kind() Kind         { return KindLeftLobby }
func (ChatReceived) Kind() Kind      { return KindChatReceived }
func (Notice) Kind() Kind            { return KindNotice }
func (StartArmed) Kind() Kind        { return KindStartArmed }
func (StartCancelled) Kind() Kind    { return KindStartCancelled }
func (GameStarted) Kind() Kind       { return KindGameStarted }

func (NewLobby) isEvent()          {}
func (PayloadChanged) isEvent()    {}
func (PlayerJoined) isEvent()      {}
func (PlayerLeft) isEvent()        {}
func (PlayersSwapped) isEvent()    {}
func (PlayerDataUpdated) isEvent() {}
func (LobbyReady) isEvent()        {}
func (LobbyBalanced) isEvent()     {}
func (LobbyStale) isEvent()        {}
func (LeftLobby) isEvent()         {}
func (ChatReceived) isEvent()      {}
func (Notice) isEvent()            {}
func (StartArmed) isEvent()        {}
func (StartCancelled) isEvent()    {}
func (GameStarted) isEvent()       {}
