package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string
	Timezone string
	// ShutdownTimeoutSeconds bounds graceful HTTP shutdown.
	ShutdownTimeoutSeconds int

	// Google Sheets backing the catalog, member directory and (by default) bookings.
	SpreadsheetKey        string
	GoogleCredentialsJSON string
	// SheetsFixturePath seeds an in-memory source instead of Google Sheets when set.
	SheetsFixturePath string
	MemberSheet       string

	CatalogCategoriesJSON  string
	CatalogRefreshInterval time.Duration

	BookingBackend string
	DatabaseURL    string

	SessionBackend       string
	RedisAddr            string
	RedisPassword        string
	RedisTLS             bool
	SessionTTL           time.Duration
	SessionSweepInterval time.Duration

	ConflictBuffer time.Duration
	ConfirmKeyword string
	CancelKeyword  string

	AdminJWTSecret string
	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Timezone: getEnv("TIMEZONE", "Asia/Taipei"),

		ShutdownTimeoutSeconds: getEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", 30),

		SpreadsheetKey:        getEnv("GOOGLE_SPREADSHEET_KEY", ""),
		GoogleCredentialsJSON: getEnv("GOOGLE_APPLICATION_CREDENTIALS_CONTENT", ""),
		SheetsFixturePath:     getEnv("SHEETS_FIXTURE_PATH", ""),
		MemberSheet:           getEnv("MEMBER_SHEET", "會員資料"),

		CatalogCategoriesJSON:  getEnv("CATALOG_CATEGORIES_JSON", ""),
		CatalogRefreshInterval: getEnvAsDuration("CATALOG_REFRESH_INTERVAL", 15*time.Minute),

		BookingBackend: strings.ToLower(strings.TrimSpace(getEnv("BOOKING_BACKEND", "sheets"))),
		DatabaseURL:    getEnv("DATABASE_URL", ""),

		SessionBackend:       strings.ToLower(strings.TrimSpace(getEnv("SESSION_BACKEND", "memory"))),
		RedisAddr:            getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisTLS:             getEnvAsBool("REDIS_TLS", false),
		SessionTTL:           getEnvAsDuration("SESSION_TTL", 30*time.Minute),
		SessionSweepInterval: getEnvAsDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),

		ConflictBuffer: getEnvAsDuration("CONFLICT_BUFFER", 2*time.Hour),
		ConfirmKeyword: getEnv("CONFIRM_KEYWORD", "確認"),
		CancelKeyword:  getEnv("CANCEL_KEYWORD", "取消"),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
		RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 10),
	}
}

// UsesSheets reports whether any component needs a tabular source.
func (c *Config) UsesSheets() bool {
	return c.SheetsFixturePath != "" || c.SpreadsheetKey != ""
}

// Location resolves Timezone, falling back to UTC when the zone database lacks it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}
