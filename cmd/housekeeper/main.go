package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/internal/basket"
	"github.com/angelmondragon/storefront-backend/internal/housekeeping"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

const serviceKind = "housekeeper"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind
	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
		"interval":    cfg.Housekeeping.Interval.String(),
	})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "housekeeper stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "housekeeper shut down")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer dbClient.Close()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer redisClient.Close()

	hk := cfg.Housekeeping
	idleBaskets, err := housekeeping.NewIdleBaskets(basket.NewRepository(dbClient.DB()), cfg.Basket.SessionTTL, hk.BatchSize)
	if err != nil {
		return err
	}
	retention, err := housekeeping.NewOutboxRetention(dbClient, outbox.NewRepository(dbClient.DB()), hk.OutboxRetention, hk.BatchSize)
	if err != nil {
		return err
	}
	lock, err := housekeeping.NewRedisLock(redisClient, hk.Interval)
	if err != nil {
		return err
	}

	var registerer prometheus.Registerer
	if cfg.Metrics.Enabled {
		registerer = prometheus.DefaultRegisterer
	}
	runner, err := housekeeping.NewRunner(housekeeping.RunnerParams{
		Logger:   logg,
		Lock:     lock,
		Tasks:    []housekeeping.Task{idleBaskets, retention},
		Metrics:  metrics.NewHousekeepingMetrics(registerer),
		Interval: hk.Interval,
	})
	if err != nil {
		return err
	}

	logg.Info(ctx, "starting housekeeper")
	return runner.Run(ctx)
}
