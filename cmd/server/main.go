package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/solpay/service/access"
	"github.com/brojonat/solpay/service/config"
	"github.com/brojonat/solpay/service/dashboard"
	"github.com/brojonat/solpay/service/db"
	"github.com/brojonat/solpay/service/metrics"
	natspkg "github.com/brojonat/solpay/service/nats"
	"github.com/brojonat/solpay/service/payment"
	"github.com/brojonat/solpay/service/server"
	"github.com/brojonat/solpay/service/solana"
	"github.com/brojonat/solpay/service/temporal"
	"github.com/brojonat/solpay/service/wallet"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
		"network", cfg.SolanaNetwork,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	admin, err := cfg.AdminPublicKey()
	if err != nil {
		logger.Error("invalid admin wallet", "error", err)
		os.Exit(1)
	}

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	solanaClient := solana.NewClient(solana.NewRPCClient(cfg.SolanaRPCURL), cfg.SolanaNetwork, m, logger).
		WithRateLimit(cfg.RPCRateLimit).
		WithConfirmation(0, cfg.ConfirmTimeout)
	logger.Info("initialized solana RPC client", "url", cfg.SolanaRPCURL)

	var connector wallet.Connector = wallet.Disconnected{}
	if cfg.WalletKeypairPath != "" {
		kp, err := wallet.LoadKeypair(cfg.WalletKeypairPath, solanaClient, logger)
		if err != nil {
			logger.Error("failed to load wallet keypair", "error", err)
			os.Exit(1)
		}
		connector = kp
		pk, _ := kp.Identity()
		logger.Info("wallet connected", "address", pk.String())
	} else {
		logger.Warn("no wallet keypair configured, payments are disabled")
	}

	flow := payment.NewFlow(payment.DefaultConfig(admin), solanaClient, connector, logger).
		WithMetrics(m)

	// Persistent history (optional)
	if cfg.DatabaseURL != "" {
		dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		if err := dbPool.Ping(ctx); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}

		store := db.NewStore(dbPool)
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}
		flow.WithHistory(payment.NewStoreHistory(store))
		logger.Info("connected to database")
	} else {
		logger.Info("DATABASE_URL not set, keeping payment history in memory")
	}

	// Payment event stream (optional)
	var ssePublisher *server.SSEPublisher
	if cfg.NATSURL != "" {
		publisher, err := natspkg.NewPublisher(cfg.NATSURL, m, logger)
		if err != nil {
			logger.Error("failed to connect NATS publisher", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		flow.WithPublisher(publisher)

		ssePublisher, err = server.NewSSEPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Error("failed to create SSE publisher", "error", err)
			os.Exit(1)
		}
		defer ssePublisher.Close()
	} else {
		logger.Info("NATS_URL not set, payment events are not published")
	}

	// Payment-request settlement tracking (optional)
	var settlements *temporal.Client
	if cfg.TemporalHost != "" {
		settlements, err = temporal.NewClient(cfg.TemporalHost, cfg.TemporalNamespace, cfg.TemporalTaskQueue, logger)
		if err != nil {
			logger.Error("failed to create temporal client", "error", err)
			os.Exit(1)
		}
		defer settlements.Close()
		settlements.WithSettlement(cfg.SettlementPollInterval, cfg.SettlementTimeout)
		flow.WithTracker(settlements)
	} else {
		logger.Info("TEMPORAL_HOST not set, payment requests are not tracked")
	}

	aggregator := dashboard.NewAggregator(dashboard.DefaultConfig(admin), solanaClient, m, logger)
	dash := dashboard.NewService(aggregator, dashboard.DefaultConfig(admin).PageSize, logger)
	gate := access.NewGate(admin)

	httpServer := server.New(cfg.ServerAddr, cfg, flow, dash, gate, connector, ssePublisher, m, logger)
	if err := httpServer.WithTemplates(); err != nil {
		logger.Error("failed to load templates", "error", err)
		os.Exit(1)
	}
	if settlements != nil {
		httpServer.WithSettlements(settlements)
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
