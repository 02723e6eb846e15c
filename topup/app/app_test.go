package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	coredatabase "github.com/m3rciful/topupbot/core/database"
	"github.com/m3rciful/topupbot/topup/store"
)

func TestNewMemory(t *testing.T) {
	cfg := validConfig()
	cfg.Ledger.Seed = map[string]int64{"a@b.c": 10}
	cfg.Database.Driver = coredatabase.DriverMemory
	require.NoError(t, Normalize(cfg))

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.NoError(t, a.Health(context.Background()))
	require.NoError(t, a.Close())
}

func TestTelegramRunOptions(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimit.IntervalMS = 500
	require.NoError(t, Normalize(cfg))
	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)

	opts, err := a.TelegramRunOptions()
	require.NoError(t, err)
	assert.Same(t, &cfg.Config, opts.Config)
	require.NotNil(t, opts.OnStart)
	require.NotNil(t, opts.OnStop)

	endpoints := map[any]bool{}
	for _, r := range opts.Routes {
		endpoints[r.Endpoint] = true
	}
	for _, ep := range []any{"/start", "/cancel", "/accept", "/yes", "/Yes", "/reject", "/no", "/No", "/pending",
		tele.OnCallback, tele.OnText, tele.OnPhoto, tele.OnDocument, tele.OnSticker} {
		assert.True(t, endpoints[ep], "missing route %v", ep)
	}

	var names []string
	for _, mw := range opts.Middlewares {
		names = append(names, mw.Name)
	}
	assert.Equal(t, []string{"recover", "metrics", "rate_limit", "logger", "state"}, names)
}

func TestNewSQL(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	stateDB, err := store.Open(ctx, coredatabase.Config{Driver: coredatabase.DriverSQLite, Path: filepath.Join(dir, "state.db")})
	require.NoError(t, err)

	ledgerPath := filepath.Join(dir, "ledger.db")
	ledgerDB, err := coredatabase.Connect(ctx, coredatabase.Config{Driver: coredatabase.DriverSQLite, Path: ledgerPath})
	require.NoError(t, err)
	_, err = ledgerDB.Exec(`CREATE TABLE accounts (mail TEXT PRIMARY KEY, credit INTEGER NOT NULL)`)
	require.NoError(t, err)
	require.NoError(t, ledgerDB.Close())

	cfg := validConfig()
	cfg.Ledger = LedgerConfig{
		Driver:        coredatabase.DriverSQLite,
		DSN:           ledgerPath,
		Table:         "accounts",
		EmailColumn:   "mail",
		BalanceColumn: "credit",
	}
	require.NoError(t, Normalize(cfg))

	a, err := New(ctx, cfg, stateDB)
	require.NoError(t, err)
	require.NoError(t, a.Health(ctx))
	require.NoError(t, a.Close())
	assert.Error(t, a.Health(ctx), "closed handles fail the health check")
}

func TestNewLedgerUnreachable(t *testing.T) {
	cfg := validConfig()
	cfg.Ledger = LedgerConfig{Driver: coredatabase.DriverSQLite, DSN: filepath.Join(t.TempDir(), "missing", "ledger.db")}
	require.NoError(t, Normalize(cfg))

	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}
