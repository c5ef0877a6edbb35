package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sells-group/carbon-dashboard/internal/dashboard"
	"github.com/sells-group/carbon-dashboard/internal/db"
	"github.com/sells-group/carbon-dashboard/internal/marketcap"
	"github.com/sells-group/carbon-dashboard/internal/monitoring"
	"github.com/sells-group/carbon-dashboard/internal/schema"
)

// appEnv holds the pool and services shared by the serve, dashboard, probe
// and marketcap commands.
type appEnv struct {
	Pool     *pgxpool.Pool
	Resolver *schema.Resolver
	Enricher *marketcap.Enricher
	Metrics  *monitoring.Metrics
	Service  *dashboard.Service
}

// Close releases the pool.
func (e *appEnv) Close() {
	if e.Pool != nil {
		e.Pool.Close()
	}
}

// initApp validates the configuration for command, connects to the database
// and wires the dashboard service. Callers should defer env.Close().
func initApp(ctx context.Context, command string) (*appEnv, error) {
	if err := cfg.Validate(command); err != nil {
		return nil, err
	}

	pool, err := db.Connect(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	metrics := monitoring.NewMetrics()
	resolver := schema.NewResolver(pool)
	enricher := marketcap.NewEnricher(cfg.MarketCap, marketcap.NewWorker(cfg.MarketCap),
		marketcap.WithObserver(metrics))
	svc := dashboard.NewService(pool, resolver, cfg.Dashboard).
		WithEnricher(enricher).
		WithObserver(metrics)

	zap.L().Debug("app initialized",
		zap.String("command", command),
		zap.Bool("market_cap_enabled", cfg.MarketCap.Enabled),
		zap.Float64("intensity_scale", cfg.Dashboard.IntensityScale),
	)

	return &appEnv{
		Pool:     pool,
		Resolver: resolver,
		Enricher: enricher,
		Metrics:  metrics,
		Service:  svc,
	}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
