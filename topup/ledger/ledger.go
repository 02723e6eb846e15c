// Package ledger bridges the bot to the external account balance store.
package ledger

import (
	"context"
	"errors"
)

// ErrAccountNotFound is returned when no account matches the email.
var ErrAccountNotFound = errors.New("ledger: account not found")

// Account is a ledger row keyed by email.
type Account struct {
	Email   string
	Balance int64
}

// Bridge reads and credits ledger accounts.
type Bridge interface {
	GetAccount(ctx context.Context, email string) (Account, error)
	// ApplyCredit adds delta to the balance and returns the updated account.
	ApplyCredit(ctx context.Context, email string, delta int64) (Account, error)
}
