// Package session keeps per-user conversation state for the top-up flow.
package session

import (
	"errors"
	"fmt"
)

// State identifies a step of the top-up conversation.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
	// StateAwaitingAmount waits for the credit amount as free text.
	StateAwaitingAmount State = "awaiting_amount"
	// StateAwaitingProof waits for a payment screenshot.
	StateAwaitingProof State = "awaiting_proof"
	// StateAwaitingEmail waits for the ledger account email.
	StateAwaitingEmail State = "awaiting_email"
)

// ErrInvariant is returned when a mutation would leave a session inconsistent.
var ErrInvariant = errors.New("session: invariant violated")

// Proof references an uploaded proof-of-payment artifact.
// Ref is the deduplication key; FileID is what the transport can re-send.
type Proof struct {
	Ref    string
	FileID string
}

// Empty reports whether no proof is recorded.
func (p Proof) Empty() bool { return p.Ref == "" }

// Session stores conversation state and pending request data for a user.
type Session struct {
	State         State
	PendingAmount int64
	PendingProof  Proof
	PendingEmail  string
}

// Reset returns the session to idle with every pending field cleared.
func (s *Session) Reset() {
	*s = Session{State: StateIdle}
}

// Validate checks that pending fields are set exactly when the state needs them.
func (s Session) Validate() error {
	switch s.State {
	case StateIdle:
		if s.PendingAmount != 0 || !s.PendingProof.Empty() || s.PendingEmail != "" {
			return fmt.Errorf("%w: idle session carries pending data", ErrInvariant)
		}
	case StateAwaitingAmount:
		if s.PendingAmount != 0 || !s.PendingProof.Empty() {
			return fmt.Errorf("%w: %s carries data from later steps", ErrInvariant, s.State)
		}
	case StateAwaitingProof:
		if s.PendingAmount <= 0 {
			return fmt.Errorf("%w: %s requires amount", ErrInvariant, s.State)
		}
		if !s.PendingProof.Empty() {
			return fmt.Errorf("%w: %s carries proof", ErrInvariant, s.State)
		}
	case StateAwaitingEmail:
		if s.PendingAmount <= 0 || s.PendingProof.Empty() {
			return fmt.Errorf("%w: %s requires amount and proof", ErrInvariant, s.State)
		}
	default:
		return fmt.Errorf("%w: unknown state %q", ErrInvariant, s.State)
	}
	return nil
}
