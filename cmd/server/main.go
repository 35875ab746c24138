// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jason-s-yu/lobbyhost/internal/cache"
	"github.com/jason-s-yu/lobbyhost/internal/config"
	"github.com/jason-s-yu/lobbyhost/internal/controller"
	"github.com/jason-s-yu/lobbyhost/internal/database"
	"github.com/jason-s-yu/lobbyhost/internal/events"
	"github.com/jason-s-yu/lobbyhost/internal/handlers"
	"github.com/jason-s-yu/lobbyhost/internal/middleware"
	"github.com/jason-s-yu/lobbyhost/internal/protocol"
	"github.com/jason-s-yu/lobbyhost/internal/relay"
	"github.com/jason-s-yu/lobbyhost/internal/stats"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	logger.SetLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = database.Connect(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Fatalf("database: %v", err)
		}
		defer pool.Close()
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB, logger)
		if err != nil {
			logger.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
	}

	var provider stats.Provider
	if cfg.StatsEnabled {
		deps := stats.Deps{Logger: logger}
		if pool != nil {
			deps.DB = pool
		}
		if rdb != nil {
			deps.Redis = rdb
		}
		provider, err = stats.NewProvider(cfg.StatsOptions(), deps)
		if err != nil {
			logger.Fatalf("stats: %v", err)
		}
	}

	bus := events.NewBus(logger)
	defer bus.Close()

	link := protocol.NewLink(cfg.ClientURL, logger)
	ctrl := controller.New(controller.Deps{
		Stats:       provider,
		Eligibility: cfg.Eligibility(),
		Settings:    controller.StaticSettings(cfg.Settings()),
		Sink:        link,
		Bus:         bus,
		Logger:      logger,
	})
	mirror := relay.NewMirror(bus, cfg.MirrorDebounce, logger)

	mux := http.NewServeMux()
	handle := func(pattern string, h http.Handler) {
		mux.Handle(pattern, middleware.LogMiddleware(logger)(middleware.Recover(logger)(h)))
	}
	handle("GET /lobby", handlers.LobbyStateHandler(ctrl))
	handle("POST /lobby/balance", handlers.BalanceHandler(logger, ctrl))
	handle("POST /lobby/start", handlers.StartHandler(ctrl))
	handle("POST /lobby/abort", handlers.AbortHandler(ctrl))
	handle("POST /lobby/swap", handlers.SwapHandler(ctrl))
	handle("POST /lobby/chat", handlers.ChatHandler(ctrl))
	handle("POST /lobby/slots/{slot}/{action}", handlers.SlotHandler(ctrl))
	handle("GET /lobby/ws", handlers.MirrorWSHandler(logger, ctrl, mirror, cfg.OriginPatterns))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ctrl.Run(gctx) })
	g.Go(func() error { return mirror.Run(gctx) })
	g.Go(func() error {
		return link.Run(gctx, func(in protocol.Inbound) {
			if err := ctrl.Ingest(gctx, in); err != nil {
				logger.WithFields(logrus.Fields{"error": err, "message": fmt.Sprintf("%T", in)}).Warn("Client message not applied")
			}
		})
	})
	if cfg.AnnounceInChat {
		announcer := relay.NewAnnouncer(bus, link, logger)
		g.Go(func() error { return announcer.Run(gctx) })
	}
	if rdb != nil {
		hub := relay.NewHubRelay(bus, rdb, cfg.HubQueueName(), logger)
		g.Go(func() error { return hub.Run(gctx) })
	}
	g.Go(func() error {
		logger.Infof("Running on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Errorf("server exited: %v", err)
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}
