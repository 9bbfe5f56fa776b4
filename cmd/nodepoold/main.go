package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/enclave-network/nodepool/internal/bank"
	"github.com/enclave-network/nodepool/internal/clock"
	"github.com/enclave-network/nodepool/internal/config"
	"github.com/enclave-network/nodepool/internal/events"
	"github.com/enclave-network/nodepool/internal/ledger"
	"github.com/enclave-network/nodepool/internal/logger"
	"github.com/enclave-network/nodepool/internal/market"
	"github.com/enclave-network/nodepool/internal/state"
	"github.com/enclave-network/nodepool/internal/types"
	"github.com/enclave-network/nodepool/internal/web"
)

// main is the entry point for the pool engine daemon.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Pool engine starting...")

	// Initialize Database Connection (event journal and snapshots)
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// --- 2. Engine Construction with Dependency Injection ---
	tokenBank := bank.NewInMemory()
	systemClock := clock.System{}
	sink := events.Multi{state.JournalSink{}}

	ledgerInstance, err := ledger.New(ledger.Config{
		Kinds:         config.DefaultPoolKinds,
		Schedule:      config.DefaultUnlockSchedule,
		ProducedDenom: config.ProducedDenom,
		Bank:          tokenBank,
		Clock:         systemClock,
		Sink:          sink,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create ledger")
	}

	marketInstance, err := market.New(market.Config{
		Ledger:       ledgerInstance,
		Bank:         tokenBank,
		Clock:        systemClock,
		Sink:         sink,
		PriceDenom:   config.PriceDenom,
		FeeBps:       config.MarketFeeBps,
		FeeCollector: types.HolderID(config.FeeCollector),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create market")
	}

	// --- 3. Start Web Server ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}

	webServer := web.NewWebServer(webPort, ledgerInstance, marketInstance)
	go func() {
		log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting pool engine API server")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 4. Snapshot Loop ---
	interval := time.Duration(config.SnapshotIntervalMinutes) * time.Minute
	log.Info().Str("interval", interval.String()).Msg("Starting pool snapshot loop")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runSnapshotLoop(ctx, ledgerInstance, marketInstance, interval)
	log.Info().Msg("Pool engine shut down.")
}

// runSnapshotLoop persists a snapshot of every pool to the journal at the
// configured interval until the context is cancelled.
func runSnapshotLoop(ctx context.Context, l *ledger.Ledger, m *market.Market, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshotAllPools(l, m)
		}
	}
}

func snapshotAllPools(l *ledger.Ledger, m *market.Market) {
	pools := l.Pools()
	saved := 0
	for _, pool := range pools {
		snapshot, err := l.Snapshot(pool.ID, m.ActiveOrderCount(pool.ID))
		if err != nil {
			log.Error().Err(err).Uint64("poolID", uint64(pool.ID)).Msg("Failed to build pool snapshot")
			continue
		}
		if err := state.SavePoolSnapshot(snapshot); err != nil {
			log.Error().Err(err).Uint64("poolID", uint64(pool.ID)).Msg("Failed to persist pool snapshot")
			continue
		}
		saved++
	}
	log.Info().Int("pools", len(pools)).Int("saved", saved).Msg("Pool snapshot pass complete")
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
