// ./internal/state/db.go
package state

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// TestDBConnection pings the database, reporting whether it is reachable.
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	if err := DB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS pool_events (
			event_id UUID PRIMARY KEY,
			event_type VARCHAR(64) NOT NULL,
			pool_id BIGINT NOT NULL,
			event_timestamp TIMESTAMPTZ NOT NULL,
			holder VARCHAR(255),
			counterparty VARCHAR(255),
			token VARCHAR(128),
			amount NUMERIC(78, 0),
			shares BIGINT,
			order_id BIGINT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_pool_events_pool ON pool_events (pool_id, event_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_pool_events_type ON pool_events (event_type, event_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_pool_events_holder ON pool_events (holder, event_timestamp DESC);

		CREATE TABLE IF NOT EXISTS pool_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			pool_id BIGINT NOT NULL,
			kind_name VARCHAR(64) NOT NULL,
			pool_state VARCHAR(32) NOT NULL,
			total_shares BIGINT NOT NULL,
			total_weighted_shares BIGINT NOT NULL,
			holder_count INTEGER NOT NULL,
			acc_produced_per_weight NUMERIC(78, 0) NOT NULL,
			remaining_mint_quota NUMERIC(78, 0) NOT NULL,
			unlocked_not_withdrawn NUMERIC(78, 0) NOT NULL,
			active_order_count INTEGER NOT NULL,
			snapshot_timestamp TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_pool_snapshots_pool ON pool_snapshots (pool_id, snapshot_timestamp DESC);
	`

	if _, err := DB.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to apply database schema: %w", err)
	}

	log.Info().Msg("Database schema ensured successfully.")
	return nil
}
