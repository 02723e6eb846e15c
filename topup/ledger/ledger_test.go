package ledger

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openLedgerDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE users (email TEXT PRIMARY KEY, balance INTEGER NOT NULL DEFAULT 0)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO users (email, balance) VALUES ('a@x.io', 500)`)
	require.NoError(t, err)
	return db
}

func TestSQLBridge(t *testing.T) {
	ctx := context.Background()
	b, err := NewSQLBridge(openLedgerDB(t), Schema{})
	require.NoError(t, err)

	acc, err := b.GetAccount(ctx, "a@x.io")
	require.NoError(t, err)
	assert.EqualValues(t, 500, acc.Balance)

	acc, err = b.ApplyCredit(ctx, "a@x.io", 1500)
	require.NoError(t, err)
	assert.EqualValues(t, 2000, acc.Balance)

	_, err = b.GetAccount(ctx, "nobody@x.io")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = b.ApplyCredit(ctx, "nobody@x.io", 1)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestSchemaValidate(t *testing.T) {
	assert.NoError(t, DefaultSchema.Validate())
	assert.NoError(t, Schema{Table: "public.users", EmailColumn: "email", BalanceColumn: "balance"}.Validate())
	assert.Error(t, Schema{Table: "users; DROP TABLE users", EmailColumn: "email", BalanceColumn: "balance"}.Validate())
}

func TestMemoryBridge(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBridge(map[string]int64{"a@x.io": 0})

	acc, err := b.ApplyCredit(ctx, "a@x.io", 1000)
	require.NoError(t, err)
	assert.EqualValues(t, 1000, acc.Balance)

	_, err = b.GetAccount(ctx, "b@x.io")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	b.Put("b@x.io", 5)
	acc, err = b.GetAccount(ctx, "b@x.io")
	require.NoError(t, err)
	assert.EqualValues(t, 5, acc.Balance)
}
