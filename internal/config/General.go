package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// ProducedDenom is the token identifier of the native production token.
	ProducedDenom string
	// PriceDenom is the token identifier used to settle marketplace trades.
	PriceDenom string

	// MarketFeeBps is the protocol fee on marketplace settlement, in basis
	// points of the sale total. Zero disables the fee.
	MarketFeeBps uint64
	// FeeCollector receives the marketplace protocol fee. Required only when
	// MarketFeeBps is non-zero.
	FeeCollector string

	// SnapshotIntervalMinutes is how often the pool snapshot loop persists
	// ledger state to the journal.
	SnapshotIntervalMinutes uint64
)

// LoadConfig loads configuration from environment variables and sets the
// global config vars. Token denominations are required; fee and snapshot
// settings fall back to defaults.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	ProducedDenom, err = getEnv("PRODUCED_DENOM")
	if err != nil {
		return err
	}

	PriceDenom, err = getEnv("PRICE_DENOM")
	if err != nil {
		return err
	}

	MarketFeeBps = getEnvAsUint64OrDefault("MARKET_FEE_BPS", 0)
	if MarketFeeBps > 10_000 {
		return errors.New("MARKET_FEE_BPS must not exceed 10000")
	}

	FeeCollector = os.Getenv("FEE_COLLECTOR")
	if MarketFeeBps > 0 && FeeCollector == "" {
		return errors.New("FEE_COLLECTOR is required when MARKET_FEE_BPS is non-zero")
	}

	SnapshotIntervalMinutes = getEnvAsUint64OrDefault("SNAPSHOT_INTERVAL_MINUTES", 10)

	log.Debug().
		Str("ProducedDenom", ProducedDenom).
		Str("PriceDenom", PriceDenom).
		Uint64("MarketFeeBps", MarketFeeBps).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint64OrDefault retrieves an environment variable as a uint64,
// falling back to the default when unset or invalid.
func getEnvAsUint64OrDefault(key string, defaultValue uint64) uint64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", valueStr).Msg("Invalid uint64 environment variable, using default")
		return defaultValue
	}
	return value
}
