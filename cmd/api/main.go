package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/gym-booking-bot/internal/app/bootstrap"
	appconfig "github.com/wolfman30/gym-booking-bot/internal/config"
	"github.com/wolfman30/gym-booking-bot/pkg/logging"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting gym-booking-bot API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"booking_backend", cfg.BookingBackend,
		"session_backend", cfg.SessionBackend,
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	app, err := bootstrap.BuildApp(ctx, cfg, logger, nil, nil)
	if err != nil {
		logger.Error("failed to build app", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if _, err := app.Provider.Refresh(ctx); err != nil {
		logger.Warn("initial catalog load failed; bookings unavailable until next refresh", "error", err)
	}
	background := startBackground(ctx, app, cfg)

	srv := newServer(cfg, app.Handler)

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	stop()
	background.Wait()

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func newServer(cfg *appconfig.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// startBackground runs the catalog refresh and session sweep loops until ctx
// is cancelled.
func startBackground(ctx context.Context, app *bootstrap.App, cfg *appconfig.Config) *sync.WaitGroup {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		app.Provider.Run(ctx, cfg.CatalogRefreshInterval)
	}()
	go func() {
		defer wg.Done()
		app.Sweeper.Run(ctx, cfg.SessionSweepInterval)
	}()
	return &wg
}
