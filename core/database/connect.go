// Package database opens the Postgres pool and applies golang-migrate
// migrations.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/funnelbot/core/logger"
)

const (
	component = "db"

	// readyTimeout bounds how long startup waits for Postgres to accept
	// connections, e.g. while its container is still booting.
	readyTimeout = 30 * time.Second
	readyPoll    = 2 * time.Second
)

// Connect waits for Postgres, opens the pool and sizes it from cfg.
func Connect(cfg Config) (*sqlx.DB, error) {
	cfg = cfg.WithDefaults()
	ctx, cancel := context.WithTimeout(context.Background(), readyTimeout)
	defer cancel()

	start := time.Now()
	db, err := waitForPostgres(ctx, cfg.URL())
	took := logger.RoundMS(time.Since(start)).Milliseconds()
	attrs := []slog.Attr{
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.String("db", cfg.Name),
		slog.Int64("duration_ms", took),
	}
	if err != nil {
		logger.Error(ctx, component, "db.connect", append(attrs,
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)...)
		return nil, fmt.Errorf("database: connect %s/%s: %w", cfg.Host, cfg.Name, err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)
	db.SetConnMaxIdleTime(5 * time.Minute)
	logger.Info(ctx, component, "db.connect", append(attrs,
		slog.String("status", "ok"),
		slog.Int("pool_open", cfg.MaxConnections),
	)...)
	return db, nil
}

// waitForPostgres retries until a ping succeeds or ctx ends, returning the
// last connection error in the latter case.
func waitForPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	var lastErr error
	for attempt := 1; ; attempt++ {
		db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
		if err == nil {
			return db, nil
		}
		lastErr = err
		logger.Debug(ctx, component, "db.wait",
			slog.Int("attempt", attempt),
			slog.String("err", err.Error()),
		)

		timer := time.NewTimer(readyPoll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("not ready after %d attempts: %w", attempt, lastErr)
		case <-timer.C:
		}
	}
}
