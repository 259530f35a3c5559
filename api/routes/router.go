package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bidloop/bidloop-backend/api/controllers"
	"github.com/bidloop/bidloop-backend/api/middleware"
	auctionsvc "github.com/bidloop/bidloop-backend/internal/auction"
	autobidsvc "github.com/bidloop/bidloop-backend/internal/autobid"
	biddingsvc "github.com/bidloop/bidloop-backend/internal/bidding"
	"github.com/bidloop/bidloop-backend/pkg/config"
	"github.com/bidloop/bidloop-backend/pkg/db"
	"github.com/bidloop/bidloop-backend/pkg/logger"
	"github.com/bidloop/bidloop-backend/pkg/redis"
)

// RouterParams collect everything the HTTP surface needs.
type RouterParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         db.Pinger
	Redis      redis.Pinger
	Auctions   *auctionsvc.Service
	Bidding    *biddingsvc.Service
	AutoBids   *autobidsvc.Service
	Prometheus prometheus.Gatherer
}

// NewRouter wires middleware, health, metrics, and the v1 API routes.
func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
		middleware.Actor(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.DB, params.Redis))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	if params.Prometheus != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(params.Prometheus, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auctions", func(r chi.Router) {
		r.Post("/", controllers.CreateAuction(params.Auctions, logg))
		r.Get("/", controllers.ListAuctions(params.Auctions, logg))

		r.Route("/{auctionId}", func(r chi.Router) {
			r.Get("/", controllers.GetAuction(params.Auctions, logg))
			r.Delete("/", controllers.CancelAuction(params.Auctions, logg))

			r.Post("/bids", controllers.PlaceBid(params.Bidding, logg))
			r.Get("/bids", controllers.ListBids(params.Bidding, logg))
			r.Post("/buy-now", controllers.BuyNow(params.Bidding, logg))

			r.Put("/auto-bid", controllers.RegisterAutoBid(params.AutoBids, logg))
			r.Delete("/auto-bid", controllers.CancelAutoBid(params.AutoBids, logg))
		})
	})

	return r
}
