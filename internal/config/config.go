// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/lobbyhost/internal/controller"
	"github.com/jason-s-yu/lobbyhost/internal/relay"
	"github.com/jason-s-yu/lobbyhost/internal/stats"
)

// Config is the process configuration, read from the environment.
type Config struct {
	ClientURL      string   `env:"CLIENT_URL,required"`
	HTTPAddr       string   `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`
	OriginPatterns []string `env:"ORIGIN_PATTERNS" envSeparator:"," envDefault:"localhost:*,127.0.0.1:*"`

	StatsBackend   string        `env:"STATS_BACKEND" envDefault:"http"`
	StatsURL       string        `env:"STATS_URL"`
	StatsTimeout   time.Duration `env:"STATS_TIMEOUT" envDefault:"5s"`
	StatsCacheTTL  time.Duration `env:"STATS_CACHE_TTL" envDefault:"10m"`
	RandomSeed     uint64        `env:"STATS_RANDOM_SEED" envDefault:"1"`
	RandomSpread   float64       `env:"STATS_RANDOM_SPREAD" envDefault:"200"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	RedisAddr      string        `env:"REDIS_ADDR"`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`
	HubQueue       string        `env:"HUB_QUEUE" envDefault:"lobbyhost:events"`
	MirrorDebounce time.Duration `env:"MIRROR_DEBOUNCE" envDefault:"250ms"`
	AnnounceInChat bool          `env:"ANNOUNCE_IN_CHAT" envDefault:"true"`

	StatsEnabled  bool          `env:"STATS_ENABLED" envDefault:"true"`
	AutoBalance   bool          `env:"AUTO_BALANCE" envDefault:"false"`
	AutoStart     bool          `env:"AUTO_START" envDefault:"false"`
	ExcludeHost   bool          `env:"EXCLUDE_HOST" envDefault:"true"`
	ChatCommands  bool          `env:"CHAT_COMMANDS" envDefault:"true"`
	ChatPrefix    string        `env:"CHAT_PREFIX" envDefault:"?"`
	MinPlayers    int           `env:"MIN_PLAYERS" envDefault:"2"`
	DefaultRating float64       `env:"DEFAULT_RATING" envDefault:"1500"`
	StartDelay    time.Duration `env:"START_DELAY" envDefault:"10s"`
	StaleAfter    time.Duration `env:"STALE_AFTER" envDefault:"5m"`
	FetchTimeout  time.Duration `env:"FETCH_TIMEOUT" envDefault:"10s"`
	FetchAttempts int           `env:"FETCH_ATTEMPTS" envDefault:"3"`
	RetryInitial  time.Duration `env:"RETRY_INITIAL" envDefault:"2s"`
	RetryMax      time.Duration `env:"RETRY_MAX" envDefault:"30s"`

	Admins    []string          `env:"ADMINS" envSeparator:","`
	Whitelist []string          `env:"WHITELIST" envSeparator:","`
	Banned    map[string]string `env:"BANNED" envSeparator:"," envKeyValSeparator:"="`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	if c.StatsEnabled {
		switch c.StatsBackend {
		case stats.BackendHTTP:
			if c.StatsURL == "" {
				return fmt.Errorf("STATS_URL is required for the %q stats backend", c.StatsBackend)
			}
		case stats.BackendPostgres:
			if c.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required for the %q stats backend", c.StatsBackend)
			}
		case stats.BackendRandom:
		default:
			return fmt.Errorf("unknown STATS_BACKEND %q", c.StatsBackend)
		}
	}
	if c.MinPlayers < 1 {
		return fmt.Errorf("MIN_PLAYERS must be at least 1, got %d", c.MinPlayers)
	}
	if c.FetchAttempts < 1 {
		return fmt.Errorf("FETCH_ATTEMPTS must be at least 1, got %d", c.FetchAttempts)
	}
	if c.RetryMax < c.RetryInitial {
		return fmt.Errorf("RETRY_MAX (%s) is shorter than RETRY_INITIAL (%s)", c.RetryMax, c.RetryInitial)
	}
	return nil
}

// Level is the parsed LOG_LEVEL. Validate guarantees it parses.
func (c Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// Settings is the controller's view of the configuration.
func (c Config) Settings() controller.Settings {
	return controller.Settings{
		StatsEnabled:  c.StatsEnabled,
		AutoBalance:   c.AutoBalance,
		AutoStart:     c.AutoStart,
		ExcludeHost:   c.ExcludeHost,
		ChatCommands:  c.ChatCommands,
		ChatPrefix:    c.ChatPrefix,
		MinPlayers:    c.MinPlayers,
		DefaultRating: c.DefaultRating,
		StartDelay:    c.StartDelay,
		StaleAfter:    c.StaleAfter,
		FetchTimeout:  c.FetchTimeout,
		FetchAttempts: c.FetchAttempts,
		RetryInitial:  c.RetryInitial,
		RetryMax:      c.RetryMax,
	}
}

func (c Config) StatsOptions() stats.Options {
	return stats.Options{
		Backend:      c.StatsBackend,
		BaseURL:      c.StatsURL,
		Timeout:      c.StatsTimeout,
		Seed:         c.RandomSeed,
		RandomSpread: c.RandomSpread,
		CacheTTL:     c.StatsCacheTTL,
	}
}

// Eligibility builds the ban list, whitelist and admins.
func (c Config) Eligibility() *controller.StaticEligibility {
	e := controller.NewStaticEligibility(c.Admins...)
	for _, id := range c.Whitelist {
		e.Allow(id)
	}
	for id, reason := range c.Banned {
		e.Ban(id, reason)
	}
	return e
}

func (c Config) HubQueueName() string {
	if c.HubQueue == "" {
		return relay.DefaultHubQueue
	}
	return c.HubQueue
}
