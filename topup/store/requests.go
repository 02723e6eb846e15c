package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/topupbot/topup/reconcile"
	"github.com/m3rciful/topupbot/topup/session"
)

const requestColumns = `id, email, amount, proof_ref, proof_file_id, user_id, username, submitted_at,
	status, operator_chat_id, operator_message_id, decided_by, decided_at, retry_claimed`

type requestRow struct {
	ID                int64         `db:"id"`
	Email             string        `db:"email"`
	Amount            int64         `db:"amount"`
	ProofRef          string        `db:"proof_ref"`
	ProofFileID       string        `db:"proof_file_id"`
	UserID            int64         `db:"user_id"`
	Username          string        `db:"username"`
	SubmittedAt       time.Time     `db:"submitted_at"`
	Status            string        `db:"status"`
	OperatorChatID    sql.NullInt64 `db:"operator_chat_id"`
	OperatorMessageID sql.NullInt64 `db:"operator_message_id"`
	DecidedBy         string        `db:"decided_by"`
	DecidedAt         sql.NullTime  `db:"decided_at"`
	RetryClaimed      bool          `db:"retry_claimed"`
}

func (r requestRow) toDomain() reconcile.PendingRequest {
	req := reconcile.PendingRequest{
		ID:           r.ID,
		Email:        r.Email,
		Amount:       r.Amount,
		Proof:        session.Proof{Ref: r.ProofRef, FileID: r.ProofFileID},
		UserID:       r.UserID,
		Username:     r.Username,
		SubmittedAt:  r.SubmittedAt,
		Status:       reconcile.Status(r.Status),
		DecidedBy:    r.DecidedBy,
		RetryClaimed: r.RetryClaimed,
	}
	if r.OperatorChatID.Valid && r.OperatorMessageID.Valid {
		req.OperatorRef = reconcile.MessageRef{
			ChatID:    r.OperatorChatID.Int64,
			MessageID: int(r.OperatorMessageID.Int64),
		}
	}
	if r.DecidedAt.Valid {
		req.DecidedAt = r.DecidedAt.Time
	}
	return req
}

// RequestIndex implements reconcile.Index on the pending_requests table.
type RequestIndex struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewRequestIndex returns an index backed by db.
func NewRequestIndex(db *sqlx.DB) *RequestIndex {
	return &RequestIndex{db: db, now: time.Now}
}

// Create implements reconcile.Index.
func (x *RequestIndex) Create(ctx context.Context, req reconcile.PendingRequest) (reconcile.PendingRequest, error) {
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = x.now()
	}
	req.SubmittedAt = req.SubmittedAt.UTC()
	q := x.db.Rebind(`INSERT INTO pending_requests
		(email, amount, proof_ref, proof_file_id, user_id, username, submitted_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	var id int64
	err := x.db.GetContext(ctx, &id, q,
		req.Email, req.Amount, req.Proof.Ref, req.Proof.FileID,
		req.UserID, req.Username, req.SubmittedAt, string(reconcile.StatusPending))
	if err != nil {
		return reconcile.PendingRequest{}, fmt.Errorf("create request: %w", err)
	}
	req.ID = id
	req.Status = reconcile.StatusPending
	req.OperatorRef = reconcile.MessageRef{}
	return req, nil
}

// Bind implements reconcile.Index.
func (x *RequestIndex) Bind(ctx context.Context, id int64, ref reconcile.MessageRef) error {
	q := x.db.Rebind(`UPDATE pending_requests SET operator_chat_id = ?, operator_message_id = ? WHERE id = ?`)
	res, err := x.db.ExecContext(ctx, q, ref.ChatID, int64(ref.MessageID), id)
	if err != nil {
		return fmt.Errorf("bind request %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("bind request %d: %w", id, reconcile.ErrNotFound)
	}
	return nil
}

// Consume implements reconcile.Index. The status guard in the WHERE clause
// makes concurrent decisions race on a single row update.
func (x *RequestIndex) Consume(ctx context.Context, ref reconcile.MessageRef, d reconcile.Decision, operator string, at time.Time) (reconcile.PendingRequest, error) {
	q := x.db.Rebind(`UPDATE pending_requests
		SET status = ?, decided_by = ?, decided_at = ?
		WHERE operator_chat_id = ? AND operator_message_id = ? AND status = ?
		RETURNING id`)
	var id int64
	err := x.db.GetContext(ctx, &id, q,
		string(d.Status()), operator, at.UTC(),
		ref.ChatID, int64(ref.MessageID), string(reconcile.StatusPending))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return reconcile.PendingRequest{}, reconcile.ErrNotFound
		}
		return reconcile.PendingRequest{}, fmt.Errorf("consume request: %w", err)
	}
	return x.Get(ctx, id)
}

// Reopen implements reconcile.Index.
func (x *RequestIndex) Reopen(ctx context.Context, ref reconcile.MessageRef) error {
	q := x.db.Rebind(`UPDATE pending_requests
		SET status = ?, decided_by = '', decided_at = NULL
		WHERE operator_chat_id = ? AND operator_message_id = ?`)
	res, err := x.db.ExecContext(ctx, q, string(reconcile.StatusPending), ref.ChatID, int64(ref.MessageID))
	if err != nil {
		return fmt.Errorf("reopen request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return reconcile.ErrNotFound
	}
	return nil
}

// ClaimRetry implements reconcile.Index.
func (x *RequestIndex) ClaimRetry(ctx context.Context, id, userID int64) (reconcile.PendingRequest, error) {
	q := x.db.Rebind(`UPDATE pending_requests
		SET retry_claimed = ?
		WHERE id = ? AND user_id = ? AND status = ? AND retry_claimed = ?
		RETURNING id`)
	var claimed int64
	err := x.db.GetContext(ctx, &claimed, q, true, id, userID, string(reconcile.StatusRejected), false)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return reconcile.PendingRequest{}, reconcile.ErrNotRetryable
		}
		return reconcile.PendingRequest{}, fmt.Errorf("claim retry: %w", err)
	}
	return x.Get(ctx, claimed)
}

// Get implements reconcile.Index.
func (x *RequestIndex) Get(ctx context.Context, id int64) (reconcile.PendingRequest, error) {
	q := x.db.Rebind(`SELECT ` + requestColumns + ` FROM pending_requests WHERE id = ?`)
	var row requestRow
	if err := x.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return reconcile.PendingRequest{}, reconcile.ErrNotFound
		}
		return reconcile.PendingRequest{}, fmt.Errorf("get request: %w", err)
	}
	return row.toDomain(), nil
}

// Pending implements reconcile.Index.
func (x *RequestIndex) Pending(ctx context.Context, limit int) ([]reconcile.PendingRequest, error) {
	if limit <= 0 {
		limit = 1000
	}
	q := x.db.Rebind(`SELECT ` + requestColumns + ` FROM pending_requests
		WHERE status = ? ORDER BY submitted_at, id LIMIT ?`)
	var rows []requestRow
	if err := x.db.SelectContext(ctx, &rows, q, string(reconcile.StatusPending), limit); err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	out := make([]reconcile.PendingRequest, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}
