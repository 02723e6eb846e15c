// Package reconcile correlates operator decisions with submitted requests
// and applies them to the ledger.
package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/m3rciful/topupbot/topup/notify"
	"github.com/m3rciful/topupbot/topup/session"
)

var (
	// ErrNotFound is returned when no pending request is bound to a message.
	ErrNotFound = errors.New("reconcile: request not found")
	// ErrNotRetryable is returned when a request cannot be resubmitted by the caller.
	ErrNotRetryable = errors.New("reconcile: request not retryable")
)

// MessageRef identifies the operator-chat message a request is bound to.
type MessageRef = notify.MessageRef

// Status is the lifecycle of a pending request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Decision is an operator verdict.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// Status returns the request status a decision leads to.
func (d Decision) Status() Status {
	if d == DecisionAccept {
		return StatusAccepted
	}
	return StatusRejected
}

// PendingRequest is a submitted top-up awaiting or past an operator decision.
type PendingRequest struct {
	ID          int64
	Email       string
	Amount      int64
	Proof       session.Proof
	UserID      int64
	Username    string
	SubmittedAt time.Time

	Status       Status
	OperatorRef  MessageRef
	DecidedBy    string
	DecidedAt    time.Time
	RetryClaimed bool
}

// Summary converts the request for listing.
func (r PendingRequest) Summary() notify.Summary {
	return notify.Summary{
		ID:          r.ID,
		Email:       r.Email,
		Amount:      r.Amount,
		Username:    r.Username,
		SubmittedAt: r.SubmittedAt,
	}
}

// Index stores pending requests and their operator-message binding.
type Index interface {
	// Create assigns an id and stores req as pending.
	Create(ctx context.Context, req PendingRequest) (PendingRequest, error)
	// Bind attaches the operator decision message to request id.
	Bind(ctx context.Context, id int64, ref MessageRef) error
	// Consume atomically marks the request bound to ref as decided. A
	// missing or already decided entry yields ErrNotFound.
	Consume(ctx context.Context, ref MessageRef, d Decision, operator string, at time.Time) (PendingRequest, error)
	// Reopen returns a consumed request to pending.
	Reopen(ctx context.Context, ref MessageRef) error
	// ClaimRetry marks a rejected request of userID as resubmitted, once.
	ClaimRetry(ctx context.Context, id, userID int64) (PendingRequest, error)
	Get(ctx context.Context, id int64) (PendingRequest, error)
	// Pending lists undecided requests, oldest first.
	Pending(ctx context.Context, limit int) ([]PendingRequest, error)
}
