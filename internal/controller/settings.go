// internal/controller/settings.go
package controller

import (
	"time"

	"github.com/jason-s-yu/lobbyhost/internal/rating"
)

// Settings is read afresh for every message the controller handles.
type Settings struct {
	StatsEnabled bool
	AutoBalance  bool // balance once per team composition when the lobby becomes ready
	AutoStart    bool // arm the start countdown when the lobby becomes ready
	ExcludeHost  bool // keep the host's team together when balancing
	ChatCommands bool
	ChatPrefix   string

	MinPlayers    int
	DefaultRating float64 // used for players whose lookup found no rating

	StartDelay    time.Duration
	StaleAfter    time.Duration // zero disables the idle check
	FetchTimeout  time.Duration
	FetchAttempts int
	RetryInitial  time.Duration
	RetryMax      time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		StatsEnabled:  true,
		ExcludeHost:   true,
		ChatCommands:  true,
		ChatPrefix:    "?",
		MinPlayers:    2,
		DefaultRating: rating.DefaultMu,
		StartDelay:    10 * time.Second,
		StaleAfter:    5 * time.Minute,
		FetchTimeout:  10 * time.Second,
		FetchAttempts: 3,
		RetryInitial:  2 * time.Second,
		RetryMax:      30 * time.Second,
	}
}

// SettingsSource provides the current settings snapshot.
type SettingsSource interface {
	Settings() Settings
}

// StaticSettings is a SettingsSource that never changes.
type StaticSettings Settings

func (s StaticSettings) Settings() Settings { return Settings(s) }
