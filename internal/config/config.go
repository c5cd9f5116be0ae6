/*
Package config loads the environment-driven configuration SPEC_FULL.md's
§6 "Environment" requires: a connection string to the relational store, an
HTTP port, the event worker's poll interval, batch size and webhook
timeout, and a log level — generalizing the teacher's command-line `-port`/`-db` flags
(cmd/server/main.go) to the multi-tenant, environment-driven deployment
a production ERP core runs under. The retry backoff schedule is not
configured here; it is a fixed table in internal/events/worker.go.
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the fully-resolved, validated process configuration.
type Config struct {
	// DatabaseURL is a Postgres DSN. Empty means "use the SQLite dev
	// store at SQLitePath instead" (see StoreBackend).
	DatabaseURL string
	SQLitePath  string

	HTTPPort int

	LogLevel string // debug, info, warn, error

	// EventWorkerPollInterval and EventWorkerBatchSize tune
	// internal/events.Worker; DefaultWebhookTimeout bounds each
	// individual delivery attempt independent of the posting path
	// (spec §5).
	EventWorkerPollInterval time.Duration
	EventWorkerBatchSize    int
	DefaultWebhookTimeout   time.Duration

	// RedisURL configures internal/cache's optional aging-report cache;
	// empty disables caching entirely.
	RedisURL string
}

// StoreBackend reports which ledger.Store implementation Load's result
// selects: "postgres" when DatabaseURL is set, "sqlite" otherwise.
func (c Config) StoreBackend() string {
	if c.DatabaseURL != "" {
		return "postgres"
	}
	return "sqlite"
}

// Load reads a .env file if present (development convenience, silently
// skipped if absent — production deployments set real environment
// variables) and parses the environment into a validated Config.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		SQLitePath:              getEnvOrDefault("SQLITE_PATH", "ledgercore.db"),
		LogLevel:                getEnvOrDefault("LOG_LEVEL", "info"),
		EventWorkerPollInterval: 10 * time.Second,
		EventWorkerBatchSize:    50,
		DefaultWebhookTimeout:   10 * time.Second,
		RedisURL:                os.Getenv("REDIS_URL"),
	}

	port, err := getEnvIntOrDefault("HTTP_PORT", 8080)
	if err != nil {
		return Config{}, err
	}
	cfg.HTTPPort = port

	if v := os.Getenv("EVENT_WORKER_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid EVENT_WORKER_POLL_INTERVAL %q: %w", v, err)
		}
		cfg.EventWorkerPollInterval = d
	}
	if v := os.Getenv("EVENT_WORKER_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid EVENT_WORKER_BATCH_SIZE %q: %w", v, err)
		}
		cfg.EventWorkerBatchSize = n
	}
	if v := os.Getenv("DEFAULT_WEBHOOK_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid DEFAULT_WEBHOOK_TIMEOUT %q: %w", v, err)
		}
		cfg.DefaultWebhookTimeout = d
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("config: HTTP_PORT out of range: %d", c.HTTPPort)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid LOG_LEVEL %q", c.LogLevel)
	}
	if c.EventWorkerBatchSize <= 0 {
		return fmt.Errorf("config: EVENT_WORKER_BATCH_SIZE must be positive: %d", c.EventWorkerBatchSize)
	}
	return nil
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvIntOrDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s %q: %w", key, v, err)
	}
	return n, nil
}
