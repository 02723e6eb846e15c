// Package store persists proof reservations and pending requests in SQL.
package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	coredatabase "github.com/m3rciful/topupbot/core/database"
	"github.com/m3rciful/topupbot/migrations"
)

// Open connects to the bot state database and applies migrations.
func Open(ctx context.Context, cfg coredatabase.Config) (*sqlx.DB, error) {
	db, err := coredatabase.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := coredatabase.Migrate(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: %w", err)
	}
	return db, nil
}
