package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// DedupRegistry implements dedup.Registry on the proof_refs table.
type DedupRegistry struct {
	db          *sqlx.DB
	reserveSQL  string
	containsSQL string
	now         func() time.Time
}

// NewDedupRegistry returns a registry backed by db.
func NewDedupRegistry(db *sqlx.DB) *DedupRegistry {
	return &DedupRegistry{
		db:          db,
		reserveSQL:  db.Rebind(`INSERT INTO proof_refs (ref, user_id, reserved_at) VALUES (?, ?, ?) ON CONFLICT (ref) DO NOTHING`),
		containsSQL: db.Rebind(`SELECT COUNT(1) FROM proof_refs WHERE ref = ?`),
		now:         time.Now,
	}
}

// Reserve inserts ref unless it already exists; the row count decides the winner.
func (r *DedupRegistry) Reserve(ctx context.Context, ref string, userID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.reserveSQL, ref, userID, r.now().UTC())
	if err != nil {
		return false, fmt.Errorf("reserve proof: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reserve proof: %w", err)
	}
	return n == 1, nil
}

// Contains reports whether ref was reserved.
func (r *DedupRegistry) Contains(ctx context.Context, ref string) (bool, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, r.containsSQL, ref); err != nil {
		return false, fmt.Errorf("lookup proof: %w", err)
	}
	return n > 0, nil
}
