// internal/config/historian.go
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/lobbyhost/internal/historian"
)

// HistorianConfig configures the lobbyhost-historian process.
type HistorianConfig struct {
	LogLevel    string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL string        `env:"DATABASE_URL,required"`
	RedisAddr   string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB     int           `env:"REDIS_DB" envDefault:"0"`
	Queue       string        `env:"HUB_QUEUE" envDefault:"lobbyhost:events"`
	BatchSize   int           `env:"HISTORIAN_BATCH_SIZE" envDefault:"20"`
	FlushDelay  time.Duration `env:"HISTORIAN_FLUSH_DELAY" envDefault:"500ms"`
	Inactivity  time.Duration `env:"LOBBY_INACTIVITY_TIMEOUT" envDefault:"30m"`
}

func LoadHistorian() (HistorianConfig, error) {
	var cfg HistorianConfig
	if err := env.Parse(&cfg); err != nil {
		return HistorianConfig{}, fmt.Errorf("parse env: %w", err)
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return HistorianConfig{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	if cfg.BatchSize < 1 {
		return HistorianConfig{}, fmt.Errorf("HISTORIAN_BATCH_SIZE must be at least 1, got %d", cfg.BatchSize)
	}
	return cfg, nil
}

func (c HistorianConfig) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

func (c HistorianConfig) Options() historian.Options {
	return historian.Options{
		Queue:      c.Queue,
		BatchSize:  c.BatchSize,
		FlushDelay: c.FlushDelay,
		Inactivity: c.Inactivity,
	}
}
