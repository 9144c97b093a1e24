package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/safeguardhq/safeguard/internal/auth"
	"github.com/safeguardhq/safeguard/internal/config"
	"github.com/safeguardhq/safeguard/internal/database"
	"github.com/safeguardhq/safeguard/internal/emergency"
	"github.com/safeguardhq/safeguard/internal/fanout"
	"github.com/safeguardhq/safeguard/internal/geo"
	"github.com/safeguardhq/safeguard/internal/migrations"
	"github.com/safeguardhq/safeguard/internal/presence"
	"github.com/safeguardhq/safeguard/internal/push"
	"github.com/safeguardhq/safeguard/internal/reports"
	"github.com/safeguardhq/safeguard/internal/server"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	// --- Presence (Redis when configured, in-process otherwise) ---
	var (
		rdb           *redis.Client
		presenceStore presence.Store
	)
	if cfg.RedisURL != "" {
		rdb, err = openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		presenceStore = presence.NewRedisStore(rdb, cfg.PresenceTTL)
		logger.Info("connected to redis")
	} else {
		presenceStore = presence.NewMemoryStore(cfg.PresenceTTL)
		logger.Info("using in-process presence store")
	}

	// --- Domain wiring ---
	store := emergency.NewSQLiteStore(db)
	// Sessions leave the index on deactivation, never by staleness.
	index := geo.NewIndex(0)
	broker := fanout.NewBroker()
	tokens := push.NewTokenStore(db)
	pusher := push.NewClient(cfg.ExpoPushURL, logger)

	notifier := fanout.NewNotifier(broker, presenceStore, tokens, pusher, logger, fanout.Config{
		RadiusKm:       cfg.NotifyRadiusKm,
		UpdateInterval: cfg.LocationPushInterval,
	})

	coord := emergency.NewCoordinator(store, index, notifier, logger)
	if err := coord.Rebuild(ctx); err != nil {
		return fmt.Errorf("rebuilding session index: %w", err)
	}

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, server.Deps{
		Logger:          logger,
		DB:              db,
		Redis:           rdb,
		Verifier:        auth.NewJWTVerifier(cfg.JWTSecret),
		Coordinator:     coord,
		Broker:          broker,
		Presence:        presenceStore,
		Reports:         reports.NewStore(db),
		Tokens:          tokens,
		DefaultRadiusKm: cfg.NotifyRadiusKm,
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}
