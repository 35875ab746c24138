// cmd/historian/main.go drains relayed lobby events from Redis into Postgres.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/lobbyhost/internal/cache"
	"github.com/jason-s-yu/lobbyhost/internal/config"
	"github.com/jason-s-yu/lobbyhost/internal/database"
	"github.com/jason-s-yu/lobbyhost/internal/historian"
)

func main() {
	logger := logrus.New()

	cfg, err := config.LoadHistorian()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	logger.SetLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer pool.Close()

	if err := database.EnsureHistorySchema(ctx, pool); err != nil {
		logger.Fatalf("database: %v", err)
	}

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB, logger)
	if err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	h := historian.New(rdb, historian.PostgresStore{DB: pool}, cfg.Options(), logger)
	if err := h.Run(ctx); err != nil {
		logger.Errorf("historian exited: %v", err)
	}
	logger.Info("Historian shutdown complete")
}
