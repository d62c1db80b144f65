package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/gym-booking-bot/internal/config"
	"github.com/wolfman30/gym-booking-bot/internal/sheets"
	"github.com/wolfman30/gym-booking-bot/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildPostgresPool connects to DATABASE_URL. An empty URL returns nil.
func BuildPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) (*pgxpool.Pool, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	logger.Info("connected to postgres")
	return pool, nil
}

// BuildSheetsSource picks the tabular source: a JSON fixture when
// SHEETS_FIXTURE_PATH is set, Google Sheets when GOOGLE_SPREADSHEET_KEY is set,
// otherwise an empty in-memory source.
func BuildSheetsSource(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (sheets.Source, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if !cfg.UsesSheets() {
		logger.Warn("no sheets configured; catalog will be empty")
		return sheets.NewMemorySource(), nil
	}
	if cfg.SheetsFixturePath != "" {
		f, err := os.Open(cfg.SheetsFixturePath)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: open sheets fixture: %w", err)
		}
		defer f.Close()
		src, err := sheets.LoadFixture(f)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load sheets fixture: %w", err)
		}
		logger.Info("using sheets fixture", "path", cfg.SheetsFixturePath)
		return src, nil
	}
	src, err := sheets.NewGoogleSource(ctx, cfg.SpreadsheetKey, sheets.CredentialsOptions(cfg.GoogleCredentialsJSON)...)
	if err != nil {
		return nil, err
	}
	logger.Info("using google sheets", "spreadsheet", cfg.SpreadsheetKey)
	return src, nil
}
