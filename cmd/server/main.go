// The TrustMesh daemon: wires the staking/escrow engine to its event bus,
// optional Postgres journal and Redis mirror, and the REST gateway.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/trustmesh/backend/internal/api"
	"github.com/trustmesh/backend/internal/config"
	"github.com/trustmesh/backend/internal/engine"
	"github.com/trustmesh/backend/internal/events"
	"github.com/trustmesh/backend/internal/journal"
	"github.com/trustmesh/backend/internal/metrics"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Default()
	if path := os.Getenv("TRUSTMESH_CONFIG"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			slog.Error("failed to load config", "path", path, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if env := os.Getenv("TRUSTMESH_ENV"); env != "" {
		cfg.Server.Env = env
	}
	if port := os.Getenv("TRUSTMESH_PORT"); port != "" {
		cfg.Server.Port = port
	}

	ctx := context.Background()

	bus := events.NewBus()
	vault := engine.NewMemoryVault()
	eng := engine.New(vault, cfg.EngineParams(),
		engine.WithEmitter(bus),
	)

	// Postgres event journal (optional).
	if dsn := firstNonEmpty(os.Getenv("TRUSTMESH_POSTGRES_DSN"), cfg.Postgres.DSN); dsn != "" {
		jnl, err := journal.Open(ctx, dsn)
		if err != nil {
			slog.Error("journal unavailable", "error", err)
			os.Exit(1)
		}
		defer jnl.Close()
		go jnl.Run(ctx, bus)
		slog.Info("Postgres event journal attached")
	}

	// Redis event mirror (optional).
	if addr := firstNonEmpty(os.Getenv("TRUSTMESH_REDIS_ADDR"), cfg.Redis.Addr); addr != "" {
		mirror, err := events.NewRedisMirror(addr, cfg.Redis.Password, cfg.Redis.DB, bus, "")
		if err != nil {
			slog.Warn("Redis mirror unavailable, running local-only", "error", err)
		} else {
			defer mirror.Close()
			go mirror.Run(ctx)
		}
	}

	opts := []api.Option{api.WithFaucet(vault)}
	if cfg.Monitoring.EnableMetrics {
		m := metrics.New()
		go m.WatchBus(ctx, bus)
		opts = append(opts, api.WithMetrics(m))
	}
	if cfg.Server.RateLimitPerMinute > 0 {
		opts = append(opts, api.WithRateLimit(cfg.Server.RateLimitPerMinute))
	}
	server := api.NewServer(eng, bus, cfg.Server.Env, opts...)

	slog.Info("starting TrustMesh",
		"env", cfg.Server.Env,
		"min_stake", cfg.EngineParams().MinStake,
		"unstake_cooldown", cfg.EngineParams().UnstakeCooldown,
		"default_deal_expiry", cfg.EngineParams().DefaultDealExpiry,
	)
	if err := server.Start(cfg.Server.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
