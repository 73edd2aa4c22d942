package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	applicationName   = "gymdesk"
	healthCheckPeriod = 30 * time.Second
	maxConnIdleTime   = 5 * time.Minute
)

// New opens a pool against dsn. Sessions are pinned to the facility timezone
// so CURRENT_DATE and NOW() agree with the application clock.
func New(ctx context.Context, dsn, timezone string) (*pgxpool.Pool, error) {
	cfg, err := poolConfig(dsn, timezone)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("platform/db: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("platform/db: reach postgres: %w", err)
	}
	return pool, nil
}

func poolConfig(dsn, timezone string) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("platform/db: parse dsn: %w", err)
	}
	params := cfg.ConnConfig.RuntimeParams
	if timezone != "" {
		params["timezone"] = timezone
	}
	if _, ok := params["application_name"]; !ok {
		params["application_name"] = applicationName
	}
	cfg.HealthCheckPeriod = healthCheckPeriod
	cfg.MaxConnIdleTime = maxConnIdleTime
	return cfg, nil
}
