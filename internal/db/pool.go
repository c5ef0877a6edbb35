// Package db provides the shared read-only PostgreSQL pool used by the dashboard.
package db

import (
	"context"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/carbon-dashboard/internal/config"
	"github.com/sells-group/carbon-dashboard/internal/resilience"
)

// Pool is the query surface shared by *pgxpool.Pool and pgxmock pools.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// ErrMissingConfig is returned when neither a database URL nor the discrete
// host/user/password/database settings are configured.
var ErrMissingConfig = eris.New("db: DATABASE_URL or PGHOST/PGUSER/PGPASSWORD/PGDATABASE must be set")

const (
	defaultMaxConns = int32(5)
	defaultMinConns = int32(1)
)

// ConnString builds a pgx connection string from the store settings.
func ConnString(cfg config.StoreConfig) (string, error) {
	if !cfg.HasDatabase() {
		return "", ErrMissingConfig
	}
	if cfg.DatabaseURL != "" {
		if cfg.SSLMode == "" {
			return cfg.DatabaseURL, nil
		}
		u, err := url.Parse(cfg.DatabaseURL)
		if err != nil {
			return "", eris.Wrap(err, "db: parse database url")
		}
		q := u.Query()
		if q.Get("sslmode") == "" {
			q.Set("sslmode", cfg.SSLMode)
		}
		u.RawQuery = q.Encode()
		return u.String(), nil
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		Path:   "/" + cfg.Database,
	}
	if cfg.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": []string{cfg.SSLMode}}.Encode()
	}
	return u.String(), nil
}

// Connect opens a bounded connection pool and verifies it with a ping,
// retrying while the server is still coming up.
func Connect(ctx context.Context, cfg config.StoreConfig) (*pgxpool.Pool, error) {
	connString, err := ConnString(cfg)
	if err != nil {
		return nil, err
	}

	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "db: parse config")
	}

	maxConns := defaultMaxConns
	minConns := defaultMinConns
	if cfg.MaxConns > 0 {
		maxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 && cfg.MinConns <= maxConns {
		minConns = cfg.MinConns
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "db: create pool")
	}
	b := resilience.DefaultBackoff()
	b.OnRetry = resilience.LogRetry("db ping")
	if err := resilience.Retry(ctx, b, pool.Ping); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "db: ping")
	}
	return pool, nil
}
