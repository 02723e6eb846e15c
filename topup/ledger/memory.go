package ledger

import (
	"context"
	"fmt"
	"sync"
)

// MemoryBridge is an in-process ledger used for development and tests.
type MemoryBridge struct {
	mu       sync.Mutex
	accounts map[string]int64
}

// NewMemoryBridge returns a bridge seeded with the given balances.
func NewMemoryBridge(seed map[string]int64) *MemoryBridge {
	accounts := make(map[string]int64, len(seed))
	for email, bal := range seed {
		accounts[email] = bal
	}
	return &MemoryBridge{accounts: accounts}
}

// GetAccount implements Bridge.
func (b *MemoryBridge) GetAccount(_ context.Context, email string) (Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bal, ok := b.accounts[email]
	if !ok {
		return Account{}, fmt.Errorf("get %q: %w", email, ErrAccountNotFound)
	}
	return Account{Email: email, Balance: bal}, nil
}

// ApplyCredit implements Bridge.
func (b *MemoryBridge) ApplyCredit(_ context.Context, email string, delta int64) (Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bal, ok := b.accounts[email]
	if !ok {
		return Account{}, fmt.Errorf("credit %q: %w", email, ErrAccountNotFound)
	}
	bal += delta
	b.accounts[email] = bal
	return Account{Email: email, Balance: bal}, nil
}

// Put sets an account balance, creating the account if needed.
func (b *MemoryBridge) Put(email string, balance int64) {
	b.mu.Lock()
	b.accounts[email] = balance
	b.mu.Unlock()
}
