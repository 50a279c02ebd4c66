// Package main runs the agent-pump HTTP service: token launches, curve
// quotes and trades, the agent ledger and the live fill stream.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"agent-pump/internal/address"
	"agent-pump/internal/api"
	"agent-pump/internal/config"
	"agent-pump/internal/engine"
	"agent-pump/internal/events"
	"agent-pump/internal/ledger"
	"agent-pump/internal/logging"
	"agent-pump/internal/storage"
	chstore "agent-pump/internal/storage/clickhouse"
	"agent-pump/internal/storage/memory"
	"agent-pump/internal/storage/migrations"
	pgstore "agent-pump/internal/storage/postgres"
)

// stores holds the selected storage implementations.
type stores struct {
	curves storage.CurveStore
	agents storage.AgentStore
	fills  storage.FillStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	configPath := flag.String("config", os.Getenv("AGENTPUMP_CONFIG"), "Path to YAML config file")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage regardless of config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *useMemory {
		cfg.Storage.Backend = config.BackendMemory
		cfg.Storage.ClickhouseDSN = ""
	}

	logger := logging.New(cfg.Logging)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, cleanup, err := createStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("create stores failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	deriver, err := address.NewDeriver(cfg.Program.ID)
	if err != nil {
		logger.Error("invalid program id", "error", err)
		os.Exit(1)
	}

	led := ledger.New(ledger.Options{
		Agents:      st.agents,
		Curves:      st.curves,
		Deriver:     deriver,
		Reputation:  ledger.LinearReputation(cfg.Ledger.ReputationPerUnit),
		LaunchBonus: cfg.Ledger.LaunchBonus,
		Logger:      logger,
	})

	hubCfg := events.DefaultHubConfig()
	if cfg.Events.StreamBuffer > 0 {
		hubCfg.SendBuffer = cfg.Events.StreamBuffer
	}
	hub := events.NewHub(hubCfg, logger)
	defer hub.Close()

	sinks := []events.Publisher{hub}
	if cfg.Events.AMQPURL != "" {
		pub, err := events.NewAMQPPublisher(events.AMQPConfig{
			URL:      cfg.Events.AMQPURL,
			Exchange: cfg.Events.Exchange,
			Durable:  cfg.Events.Durable,
		})
		if err != nil {
			logger.Error("connect amqp failed", "error", err)
			os.Exit(1)
		}
		defer pub.Close()
		sinks = append(sinks, pub)
	}

	eng, err := engine.New(engine.Options{
		Curves:    st.curves,
		Fills:     st.fills,
		Ledger:    led,
		Deriver:   deriver,
		Policy:    &cfg.Policy,
		Publisher: events.NewFanout(logger, sinks...),
		Logger:    logger,
	})
	if err != nil {
		logger.Error("create engine failed", "error", err)
		os.Exit(1)
	}

	limiter := api.NewRateLimiter(api.RateLimit{
		RequestsPerMinute: cfg.Server.RateLimit.RequestsPerMinute,
		Burst:             cfg.Server.RateLimit.Burst,
	})
	defer limiter.Close()

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: api.NewRouter(api.Config{
			Engine:      eng,
			Hub:         hub,
			RateLimiter: limiter,
			Logger:      logger,

			FeaturedReputation: cfg.Ledger.FeaturedReputation,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Channel to signal completion
	done := make(chan struct{})

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, initiating graceful shutdown", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		hub.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, forcing immediate shutdown", "signal", sig.String())
			os.Exit(1)
		case <-time.After(cfg.Server.ShutdownTimeout):
			logger.Error("graceful shutdown timed out, forcing exit", "timeout", cfg.Server.ShutdownTimeout.String())
			os.Exit(1)
		case <-done:
		}
	}()

	logger.Info("starting http server",
		"addr", cfg.Server.Addr,
		"storage", cfg.Storage.Backend,
		"fill_store", fillBackend(cfg),
		"program_id", cfg.Program.ID,
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server error", "error", err)
		os.Exit(1)
	}
	close(done)

	logger.Info("shutdown complete")
}

// createStores builds stores for the configured backend. Fills go to
// ClickHouse when a DSN is configured and stay in memory otherwise.
func createStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, func(), error) {
	st := &stores{}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		pool, err := pgstore.NewPoolWithOptions(ctx, cfg.Storage.PostgresDSN, pgstore.PoolOptions{
			MaxConns:    cfg.Storage.PostgresMaxConns,
			LockTimeout: cfg.Storage.LockTimeout,
			TxAttempts:  cfg.Storage.TxAttempts,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		if cfg.Storage.Migrate {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("postgres migrations: %w", err)
			}
		}
		st.curves = pgstore.NewCurveStore(pool)
		st.agents = pgstore.NewAgentStore(pool)
	default:
		st.curves = memory.NewCurveStore()
		st.agents = memory.NewAgentStore()
	}

	if cfg.Storage.ClickhouseDSN != "" {
		var conn *chstore.Conn
		var err error
		if cfg.Storage.Migrate {
			conn, err = chstore.EnsureDatabase(ctx, cfg.Storage.ClickhouseDSN)
		} else {
			conn, err = chstore.NewConn(ctx, cfg.Storage.ClickhouseDSN)
		}
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		closers = append(closers, func() { _ = conn.Close() })
		if cfg.Storage.Migrate {
			if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
			}
		}
		st.fills = chstore.NewFillStore(conn)
	} else {
		st.fills = memory.NewFillStore()
	}

	if cfg.Storage.Backend == config.BackendMemory {
		logger.Warn("using in-memory curve and agent storage; state is lost on restart")
	}
	return st, cleanup, nil
}

func fillBackend(cfg *config.Config) string {
	if cfg.Storage.ClickhouseDSN != "" {
		return "clickhouse"
	}
	return "memory"
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
