// Package config loads runtime configuration from the environment,
// with an optional .env file for desktop installs. Every value has a
// default so the tools run with no configuration at all.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	// DatabasePath is the shared SQLite file all tools open.
	DatabasePath string

	// RetryAttempts bounds the lock-contention retry loop.
	RetryAttempts int
	// BusyTimeout is handed to SQLite; long enough to outlast typical
	// contention from sibling processes.
	BusyTimeout time.Duration

	// MinAmount/MaxAmount bound accepted money amounts.
	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal
	// FolioRetries bounds re-derivation after a folio collision.
	FolioRetries int

	// OperatorHash is the bcrypt hash checked on re-authentication.
	OperatorHash string
}

// Load reads .env (if present) and the environment.
func Load() Config {
	// Missing .env is the normal case outside a configured install.
	_ = godotenv.Load()

	return Config{
		DatabasePath:  getenv("COMUNIDAD_DB_PATH", "comunidad.db"),
		RetryAttempts: getint("COMUNIDAD_RETRY_ATTEMPTS", 5),
		BusyTimeout:   time.Duration(getint("COMUNIDAD_BUSY_TIMEOUT_MS", 30000)) * time.Millisecond,
		MinAmount:     getdecimal("COMUNIDAD_MONTO_MINIMO", decimal.New(1, -2)),
		MaxAmount:     getdecimal("COMUNIDAD_MONTO_MAXIMO", decimal.New(1_000_000, 0)),
		FolioRetries:  getint("COMUNIDAD_FOLIO_RETRIES", 3),
		OperatorHash:  os.Getenv("COMUNIDAD_OPERATOR_HASH"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getdecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return fallback
	}
	return d
}
