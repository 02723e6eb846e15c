// Package dedup remembers which proof-of-payment artifacts have already been used.
package dedup

import (
	"context"
	"sync"
	"time"
)

// Registry is an append-only set of proof references.
type Registry interface {
	// Reserve atomically inserts ref. It reports false when ref was already
	// present; the reservation is irrevocable.
	Reserve(ctx context.Context, ref string, userID int64) (bool, error)
	// Contains reports whether ref has been reserved.
	Contains(ctx context.Context, ref string) (bool, error)
}

type reservation struct {
	userID int64
	at     time.Time
}

// MemoryRegistry keeps reservations in process memory.
type MemoryRegistry struct {
	mu   sync.Mutex
	refs map[string]reservation
	now  func() time.Time
}

// NewMemoryRegistry constructs an empty MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{refs: make(map[string]reservation), now: time.Now}
}

// Reserve implements Registry.
func (r *MemoryRegistry) Reserve(_ context.Context, ref string, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.refs[ref]; ok {
		return false, nil
	}
	r.refs[ref] = reservation{userID: userID, at: r.now()}
	return true, nil
}

// Contains implements Registry.
func (r *MemoryRegistry) Contains(_ context.Context, ref string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.refs[ref]
	return ok, nil
}

// Len returns the number of reserved references.
func (r *MemoryRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.refs)
}
