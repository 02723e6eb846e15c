package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/jmoiron/sqlx"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Schema names the ledger table and its columns.
type Schema struct {
	Table         string
	EmailColumn   string
	BalanceColumn string
}

// DefaultSchema matches the users(email, balance) table.
var DefaultSchema = Schema{Table: "users", EmailColumn: "email", BalanceColumn: "balance"}

// WithDefaults fills empty identifiers from DefaultSchema.
func (s Schema) WithDefaults() Schema {
	if s.Table == "" {
		s.Table = DefaultSchema.Table
	}
	if s.EmailColumn == "" {
		s.EmailColumn = DefaultSchema.EmailColumn
	}
	if s.BalanceColumn == "" {
		s.BalanceColumn = DefaultSchema.BalanceColumn
	}
	return s
}

// Validate rejects identifiers that cannot be safely interpolated.
func (s Schema) Validate() error {
	for _, id := range []string{s.Table, s.EmailColumn, s.BalanceColumn} {
		if !identRe.MatchString(id) {
			return fmt.Errorf("ledger: invalid identifier %q", id)
		}
	}
	return nil
}

// SQLBridge reads and credits balances in a SQL table.
type SQLBridge struct {
	db        *sqlx.DB
	selectSQL string
	creditSQL string
}

// NewSQLBridge builds a bridge over db using schema.
func NewSQLBridge(db *sqlx.DB, schema Schema) (*SQLBridge, error) {
	schema = schema.WithDefaults()
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	sel := fmt.Sprintf("SELECT %[2]s AS email, %[3]s AS balance FROM %[1]s WHERE %[2]s = ?",
		schema.Table, schema.EmailColumn, schema.BalanceColumn)
	upd := fmt.Sprintf("UPDATE %[1]s SET %[3]s = %[3]s + ? WHERE %[2]s = ? RETURNING %[2]s AS email, %[3]s AS balance",
		schema.Table, schema.EmailColumn, schema.BalanceColumn)
	return &SQLBridge{
		db:        db,
		selectSQL: db.Rebind(sel),
		creditSQL: db.Rebind(upd),
	}, nil
}

type accountRow struct {
	Email   string `db:"email"`
	Balance int64  `db:"balance"`
}

// GetAccount implements Bridge.
func (b *SQLBridge) GetAccount(ctx context.Context, email string) (Account, error) {
	var row accountRow
	if err := b.db.GetContext(ctx, &row, b.selectSQL, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, fmt.Errorf("get %q: %w", email, ErrAccountNotFound)
		}
		return Account{}, fmt.Errorf("get %q: %w", email, err)
	}
	return Account{Email: row.Email, Balance: row.Balance}, nil
}

// ApplyCredit implements Bridge.
func (b *SQLBridge) ApplyCredit(ctx context.Context, email string, delta int64) (Account, error) {
	var row accountRow
	if err := b.db.GetContext(ctx, &row, b.creditSQL, delta, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, fmt.Errorf("credit %q: %w", email, ErrAccountNotFound)
		}
		return Account{}, fmt.Errorf("credit %q: %w", email, err)
	}
	return Account{Email: row.Email, Balance: row.Balance}, nil
}
