package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bidloop/bidloop-backend/api/routes"
	"github.com/bidloop/bidloop-backend/internal/auction"
	"github.com/bidloop/bidloop-backend/internal/autobid"
	"github.com/bidloop/bidloop-backend/internal/bidding"
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

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	registry := prometheus.NewRegistry()
	biddingMetrics := metrics.NewBiddingMetrics(registry)

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
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

	autoBidRepo := autobid.NewRepository(dbClient.DB())
	biddingService, err := bidding.NewService(bidding.ServiceParams{
		Auctions:        auctionRepo,
		Bids:            bidding.NewRepository(dbClient.DB()),
		Users:           users.NewRepository(dbClient.DB()),
		Products:        productService,
		Tx:              dbClient,
		Outbox:          outboxService,
		Reactor:         autobid.NewReactor(autoBidRepo),
		Locks:           locks,
		Metrics:         biddingMetrics,
		Logger:          logg,
		MaxCascadeDepth: cfg.Auction.MaxCascadeDepth,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create bidding service", err)
		os.Exit(1)
	}

	autoBidService, err := autobid.NewService(autobid.ServiceParams{
		Repo:     autoBidRepo,
		Auctions: auctionRepo,
		Tx:       dbClient,
		Locks:    locks,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auto-bid service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:     cfg,
			Logger:     logg,
			DB:         dbClient,
			Redis:      redisClient,
			Auctions:   auctionService,
			Bidding:    biddingService,
			AutoBids:   autoBidService,
			Prometheus: registry,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
