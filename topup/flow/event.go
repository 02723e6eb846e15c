// Package flow drives the per-user top-up conversation.
package flow

import "github.com/m3rciful/topupbot/topup/session"

// EventKind classifies inbound user input.
type EventKind string

const (
	EventStart       EventKind = "start"
	EventTopUp       EventKind = "topup"
	EventUploadProof EventKind = "uploadProof"
	EventText        EventKind = "text"
	EventProof       EventKind = "proof"
	// EventOther is any message that is neither text nor an image.
	EventOther      EventKind = "other"
	EventCancel     EventKind = "cancel"
	EventRestart    EventKind = "restart"
	EventRetryEmail EventKind = "retryEmail"
)

// Event is one user action.
type Event struct {
	Kind EventKind
	// Text is set for EventText.
	Text string
	// Proof is set for EventProof.
	Proof session.Proof
	// RequestID is set for EventRetryEmail.
	RequestID int64
	// Username is the sender's Telegram username, if any.
	Username string
}
