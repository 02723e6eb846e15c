package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/topupbot/core/config"
	coredatabase "github.com/m3rciful/topupbot/core/database"
	"github.com/m3rciful/topupbot/core/logger"
)

// Options control the generic bootstrap pipeline shared between bots.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config

	LoggerInit func(*coreconfig.Config) error
	// Open connects and migrates; defaults to a bare Connect.
	Open func(ctx context.Context, cfg coredatabase.Config) (*sqlx.DB, error)
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
// DB is nil when the database driver is "memory".
type Result struct {
	DB *sqlx.DB
}

// Run initializes the logger and, for SQL drivers, opens the database.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	if !opts.Database.SQL() {
		logger.Warn(ctx, "db", "storage.memory",
			slog.String("driver", opts.Database.Driver),
			slog.String("reason", "state is lost on restart"),
		)
		return &Result{}, nil
	}

	open := opts.Open
	if open == nil {
		open = coredatabase.Connect
	}
	db, err := open(ctx, opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}
	return &Result{DB: db}, nil
}
