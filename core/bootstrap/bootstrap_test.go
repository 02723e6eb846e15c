package bootstrap

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/topupbot/core/config"
	coredatabase "github.com/m3rciful/topupbot/core/database"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunRequiresConfig(t *testing.T) {
	_, err := Run(context.Background(), Options{LoggerInit: noLogger})
	require.Error(t, err)
}

func TestRunLoggerFailure(t *testing.T) {
	_, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		LoggerInit: func(*coreconfig.Config) error { return errors.New("boom") },
	})
	require.ErrorContains(t, err, "logger init failed")
}

func TestRunMemorySkipsDatabase(t *testing.T) {
	opened := false
	res, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Driver: coredatabase.DriverMemory},
		LoggerInit: noLogger,
		Open: func(context.Context, coredatabase.Config) (*sqlx.DB, error) {
			opened = true
			return nil, nil
		},
	})
	require.NoError(t, err)
	assert.Nil(t, res.DB)
	assert.False(t, opened)
}

func TestRunOpensSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	res, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Driver: coredatabase.DriverSQLite, Path: path},
		LoggerInit: noLogger,
	})
	require.NoError(t, err)
	require.NotNil(t, res.DB)
	defer res.DB.Close()
	require.NoError(t, res.DB.Ping())
}

func TestRunOpenFailure(t *testing.T) {
	_, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Driver: coredatabase.DriverPostgres},
		LoggerInit: noLogger,
		Open: func(context.Context, coredatabase.Config) (*sqlx.DB, error) {
			return nil, errors.New("refused")
		},
	})
	require.ErrorContains(t, err, "database initialization failed")
}
