package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/m3rciful/topupbot/core/logger"
)

const (
	connectTimeout = 5 * time.Second
	readyTimeout   = 30 * time.Second
	readyInterval  = 2 * time.Second
)

// Connect opens the database connection, configures the pool, and verifies connectivity.
// Postgres connections are retried until the server accepts them or readyTimeout elapses.
func Connect(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	dsn, err := DataSource(cfg)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var (
		db      *sqlx.DB
		lastErr error
	)
	for {
		dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		db, lastErr = sqlx.ConnectContext(dialCtx, cfg.Driver, dsn)
		cancel()
		if lastErr == nil {
			break
		}
		if cfg.Driver != DriverPostgres || time.Since(start) > readyTimeout {
			logger.Error(ctx, "db", "db.connect",
				slog.String("driver", cfg.Driver),
				slog.String("host", cfg.Host),
				slog.String("db", cfg.Name),
				slog.Duration("duration", logger.RoundMS(time.Since(start))),
				slog.String("err", lastErr.Error()),
			)
			return nil, fmt.Errorf("db connect: %w", lastErr)
		}
		logger.Warn(ctx, "db", "db.wait",
			slog.String("driver", cfg.Driver),
			slog.String("err", lastErr.Error()),
		)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("db connect: %w", ctx.Err())
		case <-time.After(readyInterval):
		}
	}
	took := time.Since(start)

	pool := cfg.MaxConnections
	if cfg.Driver == DriverSQLite {
		// sqlite serialises writers; a single connection avoids SQLITE_BUSY under load
		pool = 1
	}
	if pool > 0 {
		db.SetMaxOpenConns(pool)
		db.SetMaxIdleConns(pool)
	}
	logger.Debug(ctx, "db", "db.pool",
		slog.Int("pool_open", pool),
	)

	logger.Info(ctx, "db", "db.connect",
		slog.String("driver", cfg.Driver),
		slog.String("host", cfg.Host),
		slog.String("db", cfg.Name),
		slog.Int("pool_open", pool),
		slog.Duration("duration", logger.RoundMS(took)),
	)

	return db, nil
}

// DataSource builds the driver-specific connection string for cfg.
func DataSource(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	switch cfg.Driver {
	case DriverPostgres:
		sslmode := cfg.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		return fmt.Sprintf(
			"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, sslmode,
		), nil
	case DriverSQLite:
		if cfg.Path == "" {
			return "", fmt.Errorf("db: sqlite3 requires path")
		}
		return cfg.Path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", nil
	default:
		return "", fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}
}
