package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/gym-booking-bot/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/gym-booking-bot/internal/http/middleware"
	"github.com/wolfman30/gym-booking-bot/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger          *logging.Logger
	Booking         *handlers.BookingHandler
	AdminAuthSecret string
	MetricsHandler  http.Handler

	// RateLimitRPS caps per-client booking requests; zero disables it.
	RateLimitRPS   float64
	RateLimitBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", cfg.Booking.HealthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Get("/catalog", cfg.Booking.Catalog)
		v1.Route("/booking", func(b chi.Router) {
			b.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
			b.Post("/start", cfg.Booking.Start)
			b.Post("/messages", cfg.Booking.Message)
			b.Post("/cancel", cfg.Booking.Cancel)
		})
	})

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
		admin.Post("/catalog/refresh", cfg.Booking.RefreshCatalog)
	})

	return r
}
