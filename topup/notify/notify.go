// Package notify describes outbound messages to users and to the operator chat.
package notify

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrRecipientUnknown is returned when the transport cannot resolve the chat.
	ErrRecipientUnknown = errors.New("notify: recipient unknown")
	// ErrRecipientUnreachable is returned when the user blocked the bot or left.
	ErrRecipientUnreachable = errors.New("notify: recipient unreachable")
)

// MessageRef identifies a message in a chat.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Zero reports whether the reference is unset.
func (r MessageRef) Zero() bool { return r.ChatID == 0 && r.MessageID == 0 }

// Kind names a prompt template.
type Kind string

// User-facing prompts.
const (
	KindWelcome             Kind = "welcome"
	KindAskAmount           Kind = "ask_amount"
	KindAmountInvalid       Kind = "amount_invalid"
	KindAmountTooLow        Kind = "amount_too_low"
	KindPaymentInstructions Kind = "payment_instructions"
	KindAskProof            Kind = "ask_proof"
	KindProofReused         Kind = "proof_reused"
	KindProofExpected       Kind = "proof_expected"
	KindProofUnexpected     Kind = "proof_unexpected"
	KindAskEmail            Kind = "ask_email"
	KindEmailInvalid        Kind = "email_invalid"
	KindSubmitted           Kind = "submitted"
	KindCancelled           Kind = "cancelled"
	KindTemporaryFailure    Kind = "temporary_failure"
	KindStaleAction         Kind = "stale_action"
	KindIdleHint            Kind = "idle_hint"
	KindCredited            Kind = "credited"
	KindRejected            Kind = "rejected"
)

// Operator-chat prompts.
const (
	KindDecisionRequest Kind = "decision_request"
	KindAuditAccepted   Kind = "audit_accepted"
	KindAuditRejected   Kind = "audit_rejected"
	KindAccountNotFound Kind = "account_not_found"
	KindAlreadyResolved Kind = "already_resolved"
	KindUserUnknown     Kind = "user_unknown"
	KindUserUnreachable Kind = "user_unreachable"
	KindLedgerFailed    Kind = "ledger_failed"
	KindReplyRequired   Kind = "reply_required"
	KindPendingList     Kind = "pending_list"
)

// Summary is a compact view of an outstanding request.
type Summary struct {
	ID          int64
	Email       string
	Amount      int64
	Username    string
	SubmittedAt time.Time
}

// Prompt is a transport-neutral message. Only the fields relevant to Kind are set.
type Prompt struct {
	Kind Kind

	Amount    int64
	MinAmount int64
	Balance   int64
	Email     string
	RequestID int64

	// ProofFileID is attached as a photo when set.
	ProofFileID string
	Username    string
	Operator    string
	// Detail carries a free-form reason for failures.
	Detail string
	// Retryable marks a ledger failure after which the operator may resend the decision.
	Retryable bool

	Pending []Summary
}

//go:generate mockgen -destination=mocks/mock_notifier.go -package=mocks github.com/m3rciful/topupbot/topup/notify Notifier

// Notifier delivers prompts.
type Notifier interface {
	NotifyUser(ctx context.Context, userID int64, p Prompt) error
	// NotifyOperator posts to the operator chat and returns the sent message.
	NotifyOperator(ctx context.Context, p Prompt) (MessageRef, error)
}
