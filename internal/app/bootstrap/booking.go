package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/gym-booking-bot/internal/api/router"
	"github.com/wolfman30/gym-booking-bot/internal/bookings"
	"github.com/wolfman30/gym-booking-bot/internal/catalog"
	appconfig "github.com/wolfman30/gym-booking-bot/internal/config"
	"github.com/wolfman30/gym-booking-bot/internal/conversation"
	"github.com/wolfman30/gym-booking-bot/internal/http/handlers"
	"github.com/wolfman30/gym-booking-bot/internal/keylock"
	"github.com/wolfman30/gym-booking-bot/internal/members"
	"github.com/wolfman30/gym-booking-bot/internal/observability/metrics"
	"github.com/wolfman30/gym-booking-bot/internal/session"
	"github.com/wolfman30/gym-booking-bot/internal/sheets"
	"github.com/wolfman30/gym-booking-bot/pkg/logging"
)

// App is the fully wired booking service.
type App struct {
	Provider *catalog.Provider
	Engine   *conversation.Engine
	Sweeper  *session.Sweeper
	Handler  http.Handler
	Metrics  *metrics.BookingMetrics

	closers []func()
}

// Close releases pools and clients in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// BuildApp wires every component from cfg. reg and gatherer default to the
// prometheus globals when nil.
func BuildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, reg prometheus.Registerer, gatherer prometheus.Gatherer) (*App, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	defs, err := catalog.ParseDefinitions(cfg.CatalogCategoriesJSON)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: catalog definitions: %w", err)
	}
	src, err := BuildSheetsSource(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	app := &App{Metrics: metrics.NewBookingMetrics(reg)}
	store, err := app.buildBookingStore(ctx, cfg, src, defs, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	sessions, expirer, err := app.buildSessionStore(ctx, cfg, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Provider = catalog.NewProvider(catalog.NewLoader(src, defs, logger), logger, catalog.WithObserver(app.Metrics))

	routes := bookings.RoutesFromDefinitions(defs)
	checker := bookings.NewChecker(store, routes, cfg.ConflictBuffer, cfg.Location(), logger)
	service := bookings.NewService(store, routes, checker, logger, bookings.WithObserver(app.Metrics))

	locks := keylock.New()
	app.Metrics.TrackLockedUsers(locks.Len)

	app.Engine = conversation.NewEngine(sessions, app.Provider, service, logger,
		conversation.WithLocker(locks),
		conversation.WithObserver(app.Metrics),
		conversation.WithLocation(cfg.Location()),
		conversation.WithKeywords(cfg.ConfirmKeyword, cfg.CancelKeyword),
	)
	app.Sweeper = session.NewSweeper(expirer, cfg.SessionTTL, app.Metrics, logger, session.WithLocker(locks))

	app.Handler = router.New(&router.Config{
		Logger: logger,
		Booking: handlers.NewBookingHandler(handlers.BookingHandlerConfig{
			Engine:  app.Engine,
			Members: members.NewDirectory(src, cfg.MemberSheet),
			Catalog: app.Provider,
			Logger:  logger,
		}),
		AdminAuthSecret: cfg.AdminJWTSecret,
		MetricsHandler:  promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
		RateLimitRPS:    cfg.RateLimitRPS,
		RateLimitBurst:  cfg.RateLimitBurst,
	})
	return app, nil
}

func (a *App) buildBookingStore(ctx context.Context, cfg *appconfig.Config, src sheets.Source, defs []catalog.Definition, logger *logging.Logger) (bookings.Store, error) {
	switch cfg.BookingBackend {
	case "", "sheets":
		return bookings.NewSheetStore(src), nil
	case "memory":
		mem := sheets.NewMemorySource()
		for _, def := range defs {
			mem.SetSheet(def.BookingTable, [][]string{bookings.Header})
		}
		return bookings.NewSheetStore(mem), nil
	case "postgres":
		pool, err := BuildPostgresPool(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		if pool == nil {
			return nil, errors.New("bootstrap: DATABASE_URL is required for the postgres booking backend")
		}
		a.closers = append(a.closers, pool.Close)
		store := bookings.NewPostgresStore(pool)
		for _, def := range defs {
			if err := store.EnsureTable(ctx, def.BookingTable); err != nil {
				return nil, err
			}
		}
		return store, nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown booking backend %q", cfg.BookingBackend)
	}
}

func (a *App) buildSessionStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (session.Store, session.Expirer, error) {
	switch cfg.SessionBackend {
	case "", "memory":
		store := session.NewMemoryStore()
		return store, store, nil
	case "redis":
		client := BuildRedisClient(ctx, cfg, logger, true)
		if client == nil {
			return nil, nil, fmt.Errorf("bootstrap: redis unavailable at %s", cfg.RedisAddr)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		store := session.NewRedisStore(client, cfg.SessionTTL)
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown session backend %q", cfg.SessionBackend)
	}
}
