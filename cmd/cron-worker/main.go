package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bidloop/bidloop-backend/internal/auction"
	"github.com/bidloop/bidloop-backend/internal/autobid"
	"github.com/bidloop/bidloop-backend/internal/bidding"
	"github.com/bidloop/bidloop-backend/internal/cron"
	"github.com/bidloop/bidloop-backend/internal/products"
	"github.com/bidloop/bidloop-backend/internal/users"
	"github.com/bidloop/bidloop-backend/pkg/config"
	"github.com/bidloop/bidloop-backend/pkg/db"
	"github.com/bidloop/bidloop-backend/pkg/logger"
	"github.com/bidloop/bidloop-backend/pkg/metrics"
	"github.com/bidloop/bidloop-backend/pkg/migrate"
	"github.com/bidloop/bidloop-backend/pkg/outbox"
	"github.com/bidloop/bidloop-backend/pkg/redis"
)

const lockKeyFormat = "bl:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outboxRepo, logg)
	locks := auction.NewLockTable()

	productService, err := products.NewService(products.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create product service", err)
		os.Exit(1)
	}

	auctionRepo := auction.NewRepository(dbClient.DB())
	auctionService, err := auction.NewService(auction.ServiceParams{
		Repo:     auctionRepo,
		Products: productService,
		Tx:       dbClient,
		Outbox:   outboxService,
		Locks:    locks,
		Logger:   logg,
		Config:   cfg.Auction,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auction service", err)
		os.Exit(1)
	}

	biddingService, err := bidding.NewService(bidding.ServiceParams{
		Auctions:        auctionRepo,
		Bids:            bidding.NewRepository(dbClient.DB()),
		Users:           users.NewRepository(dbClient.DB()),
		Products:        productService,
		Tx:              dbClient,
		Outbox:          outboxService,
		Reactor:         autobid.NewReactor(autobid.NewRepository(dbClient.DB())),
		Locks:           locks,
		Logger:          logg,
		MaxCascadeDepth: cfg.Auction.MaxCascadeDepth,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create bidding service", err)
		os.Exit(1)
	}

	openJob, err := cron.NewOpenAuctionsJob(cron.OpenAuctionsJobParams{
		Logger: logg,
		Opener: auctionService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create open auctions job", err)
		os.Exit(1)
	}

	closeJob, err := cron.NewCloseAuctionsJob(cron.CloseAuctionsJobParams{
		Logger: logg,
		Closer: biddingService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create close auctions job", err)
		os.Exit(1)
	}

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(openJob, closeJob, retentionJob),
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
