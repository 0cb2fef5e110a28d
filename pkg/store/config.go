package store

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the Postgres connection settings backing the Store.
type Config struct {
	DSN string

	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// LoadConfigFromEnv loads Store configuration from the environment.
// DATABASE_URL, if set, is used verbatim as the pgx connection string;
// otherwise the discrete DB_* variables are assembled into one, matching
// the fallback the rest of the harness uses for every other env-driven
// component.
func LoadConfigFromEnv() (Config, error) {
	cfg := Config{
		MaxConns:        int32(mustAtoi(getEnvOrDefault("DB_MAX_OPEN_CONNS", "25"))),
		MinConns:        int32(mustAtoi(getEnvOrDefault("DB_MAX_IDLE_CONNS", "5"))),
		MaxConnLifetime: 1 * time.Hour,
		MaxConnIdleTime: 15 * time.Minute,
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DSN = v
	} else {
		port := getEnvOrDefault("DB_PORT", "5432")
		host := getEnvOrDefault("DB_HOST", "localhost")
		user := getEnvOrDefault("DB_USER", "harness")
		password := os.Getenv("DB_PASSWORD")
		database := getEnvOrDefault("DB_NAME", "harness")
		sslmode := getEnvOrDefault("DB_SSLMODE", "disable")

		if password == "" {
			return Config{}, fmt.Errorf("DATABASE_URL or DB_PASSWORD is required")
		}

		cfg.DSN = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=%s",
			user, password, host, port, database, sslmode,
		)
	}

	if d := os.Getenv("DB_CONN_MAX_LIFETIME"); d != "" {
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %w", err)
		}
		cfg.MaxConnLifetime = parsed
	}
	if d := os.Getenv("DB_CONN_MAX_IDLE_TIME"); d != "" {
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DB_CONN_MAX_IDLE_TIME: %w", err)
		}
		cfg.MaxConnIdleTime = parsed
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func mustAtoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
