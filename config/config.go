/*
Package config loads application configuration from environment variables,
with an optional .env file for local development.

PURPOSE:
  Centralizes every tunable in one struct so main.go reads the environment
  exactly once. Values come from OS environment variables; a .env file in
  the working directory (or its parent) is loaded first when present.

VARIABLES:
  PORT                 HTTP server port (default 8080)
  DATABASE_PATH        SQLite database path (default ./storeledger.db,
                       ":memory:" for in-memory)
  VAT_RATE             VAT fraction used for tax decomposition (default 0.21)
  GROSS_RECEIPTS_RATE  Gross-receipts fraction (default 0.03)
  CASCADE_CHUNK_DAYS   Days between cancellation checks during a
                       recalculation pass (default 90)

SEE ALSO:
  - cmd/server/main.go: The only consumer
*/
package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/egidigero/storeledger/settlement"
)

// Config holds all configuration for the application.
type Config struct {
	Port         string
	DatabasePath string

	Tax              settlement.TaxConfig
	CascadeChunkDays int
}

// Load reads configuration from the environment, preferring a local .env
// file when one exists.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		if err = godotenv.Load("../.env"); err != nil && !os.IsNotExist(err) {
			log.Printf("Warning: could not load .env file: %v", err)
		}
	}

	defaults := settlement.DefaultTaxConfig()
	return Config{
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "./storeledger.db"),
		Tax: settlement.TaxConfig{
			VATRate:           getEnvAsDecimal("VAT_RATE", defaults.VATRate),
			GrossReceiptsRate: getEnvAsDecimal("GROSS_RECEIPTS_RATE", defaults.GrossReceiptsRate),
		},
		CascadeChunkDays: getEnvAsInt("CASCADE_CHUNK_DAYS", 90),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using default %d", key, raw, fallback)
		return fallback
	}
	return n
}

func getEnvAsDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using default %s", key, raw, fallback)
		return fallback
	}
	return d
}
