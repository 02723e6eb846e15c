// Package notifytest provides an in-memory Notifier for tests.
package notifytest

import (
	"context"
	"sync"

	"github.com/m3rciful/topupbot/topup/notify"
)

// Sent is one recorded delivery. UserID is zero for operator messages.
type Sent struct {
	UserID   int64
	Operator bool
	Prompt   notify.Prompt
	Ref      notify.MessageRef
}

// Recorder records every prompt. Operator messages get sequential ids in
// OperatorChatID. Per-user errors can be injected with FailUser.
type Recorder struct {
	OperatorChatID int64

	mu       sync.Mutex
	sent     []Sent
	nextID   int
	userErrs map[int64]error
	opErr    error
}

// New returns a Recorder posting operator messages to chat -100.
func New() *Recorder {
	return &Recorder{OperatorChatID: -100, userErrs: make(map[int64]error)}
}

// FailUser makes every delivery to userID return err.
func (r *Recorder) FailUser(userID int64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userErrs[userID] = err
}

// FailOperator makes operator deliveries return err; nil restores them.
func (r *Recorder) FailOperator(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opErr = err
}

// NotifyUser implements notify.Notifier.
func (r *Recorder) NotifyUser(_ context.Context, userID int64, p notify.Prompt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.userErrs[userID]; err != nil {
		return err
	}
	r.sent = append(r.sent, Sent{UserID: userID, Prompt: p})
	return nil
}

// NotifyOperator implements notify.Notifier.
func (r *Recorder) NotifyOperator(_ context.Context, p notify.Prompt) (notify.MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.opErr != nil {
		return notify.MessageRef{}, r.opErr
	}
	r.nextID++
	ref := notify.MessageRef{ChatID: r.OperatorChatID, MessageID: r.nextID}
	r.sent = append(r.sent, Sent{Operator: true, Prompt: p, Ref: ref})
	return ref, nil
}

// All returns every recorded delivery in order.
func (r *Recorder) All() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sent, len(r.sent))
	copy(out, r.sent)
	return out
}

// User returns the prompts delivered to userID.
func (r *Recorder) User(userID int64) []notify.Prompt {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Prompt
	for _, s := range r.sent {
		if !s.Operator && s.UserID == userID {
			out = append(out, s.Prompt)
		}
	}
	return out
}

// UserKinds returns the kinds delivered to userID.
func (r *Recorder) UserKinds(userID int64) []notify.Kind {
	var kinds []notify.Kind
	for _, p := range r.User(userID) {
		kinds = append(kinds, p.Kind)
	}
	return kinds
}

// Operator returns the operator-chat deliveries.
func (r *Recorder) Operator() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Sent
	for _, s := range r.sent {
		if s.Operator {
			out = append(out, s)
		}
	}
	return out
}

// LastOperator returns the most recent operator delivery.
func (r *Recorder) LastOperator() (Sent, bool) {
	ops := r.Operator()
	if len(ops) == 0 {
		return Sent{}, false
	}
	return ops[len(ops)-1], true
}

// Reset forgets recorded deliveries.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}
