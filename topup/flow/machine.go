package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/topupbot/core/logger"
	"github.com/m3rciful/topupbot/topup/dedup"
	"github.com/m3rciful/topupbot/topup/notify"
	"github.com/m3rciful/topupbot/topup/reconcile"
	"github.com/m3rciful/topupbot/topup/session"
)

const component = "flow"

// DefaultMinAmount is the smallest accepted credit amount.
const DefaultMinAmount = 1000

// Config tunes amount validation.
type Config struct {
	MinAmount int64
}

// Machine applies events to sessions and emits prompts.
type Machine struct {
	sessions *session.Store
	registry dedup.Registry
	index    reconcile.Index
	notifier notify.Notifier
	cfg      Config
	now      func() time.Time
}

// New wires a Machine.
func New(sessions *session.Store, registry dedup.Registry, index reconcile.Index, notifier notify.Notifier, cfg Config) *Machine {
	if cfg.MinAmount <= 0 {
		cfg.MinAmount = DefaultMinAmount
	}
	return &Machine{
		sessions: sessions,
		registry: registry,
		index:    index,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Sessions exposes the session store.
func (m *Machine) Sessions() *session.Store { return m.sessions }

// step collects the effects of one event while the user's session is locked.
type step struct {
	prompts   []notify.Prompt
	submitted *reconcile.PendingRequest
	err       error
}

func (s *step) say(p notify.Prompt) { s.prompts = append(s.prompts, p) }

// Handle applies ev for userID. Invalid input is answered with a prompt and
// is not an error; a non-nil error means a dependency failed.
func (m *Machine) Handle(ctx context.Context, userID int64, ev Event) error {
	var (
		st   step
		from session.State
		to   session.State
	)
	err := m.sessions.Update(userID, func(s *session.Session) error {
		from = s.State
		m.apply(ctx, userID, ev, s, &st)
		to = s.State
		return nil
	})
	if err != nil {
		logger.Error(ctx, component, "session.update_failed",
			slog.Int64("user_id", userID),
			slog.String("kind", string(ev.Kind)),
			slog.String("err", err.Error()),
		)
		m.reply(ctx, userID, notify.Prompt{Kind: notify.KindTemporaryFailure})
		return fmt.Errorf("flow: %w", err)
	}

	if from != to {
		transitions.WithLabelValues(string(from), string(to)).Inc()
		logger.Debug(ctx, component, "transition",
			slog.Int64("user_id", userID),
			slog.String("kind", string(ev.Kind)),
			slog.String("from", string(from)),
			slog.String("state", string(to)),
		)
	}

	for _, p := range st.prompts {
		m.reply(ctx, userID, p)
	}

	if st.submitted != nil {
		submissions.Inc()
		logger.Info(ctx, component, "request.submitted",
			slog.Int64("request_id", st.submitted.ID),
			slog.Int64("user_id", userID),
			slog.String("email", st.submitted.Email),
			slog.Int64("amount", st.submitted.Amount),
		)
		if err := m.PostDecision(ctx, *st.submitted); err != nil {
			return err
		}
	}
	return st.err
}

func (m *Machine) apply(ctx context.Context, userID int64, ev Event, s *session.Session, st *step) {
	switch ev.Kind {
	case EventStart, EventRestart:
		s.Reset()
		st.say(notify.Prompt{Kind: notify.KindWelcome})

	case EventCancel:
		s.Reset()
		st.say(notify.Prompt{Kind: notify.KindCancelled})
		st.say(notify.Prompt{Kind: notify.KindWelcome})

	case EventTopUp:
		s.Reset()
		s.State = session.StateAwaitingAmount
		st.say(notify.Prompt{Kind: notify.KindAskAmount, MinAmount: m.cfg.MinAmount})

	case EventUploadProof:
		if s.State == session.StateAwaitingProof {
			st.say(notify.Prompt{Kind: notify.KindAskProof})
			return
		}
		st.say(notify.Prompt{Kind: notify.KindStaleAction})

	case EventText:
		m.onText(ctx, userID, ev, s, st)

	case EventProof:
		m.onProof(ctx, userID, ev.Proof, s, st)

	case EventOther:
		switch s.State {
		case session.StateAwaitingProof:
			proofRejects.WithLabelValues("expected").Inc()
			st.say(notify.Prompt{Kind: notify.KindProofExpected})
		case session.StateAwaitingAmount:
			st.say(notify.Prompt{Kind: notify.KindAmountInvalid, MinAmount: m.cfg.MinAmount})
		case session.StateAwaitingEmail:
			st.say(notify.Prompt{Kind: notify.KindEmailInvalid})
		default:
			st.say(notify.Prompt{Kind: notify.KindIdleHint})
		}

	case EventRetryEmail:
		m.onRetry(ctx, userID, ev.RequestID, s, st)

	default:
		st.say(notify.Prompt{Kind: notify.KindStaleAction})
	}
}

func (m *Machine) onText(ctx context.Context, userID int64, ev Event, s *session.Session, st *step) {
	switch s.State {
	case session.StateAwaitingAmount:
		amount, err := strconv.ParseInt(strings.TrimSpace(ev.Text), 10, 64)
		if err != nil || amount <= 0 {
			st.say(notify.Prompt{Kind: notify.KindAmountInvalid, MinAmount: m.cfg.MinAmount})
			return
		}
		if amount < m.cfg.MinAmount {
			st.say(notify.Prompt{Kind: notify.KindAmountTooLow, Amount: amount, MinAmount: m.cfg.MinAmount})
			return
		}
		s.PendingAmount = amount
		s.State = session.StateAwaitingProof
		st.say(notify.Prompt{Kind: notify.KindPaymentInstructions, Amount: amount})

	case session.StateAwaitingProof:
		proofRejects.WithLabelValues("expected").Inc()
		st.say(notify.Prompt{Kind: notify.KindProofExpected})

	case session.StateAwaitingEmail:
		email := strings.TrimSpace(ev.Text)
		if !strings.Contains(email, "@") {
			st.say(notify.Prompt{Kind: notify.KindEmailInvalid})
			return
		}
		req, err := m.index.Create(ctx, reconcile.PendingRequest{
			Email:       email,
			Amount:      s.PendingAmount,
			Proof:       s.PendingProof,
			UserID:      userID,
			Username:    ev.Username,
			SubmittedAt: m.now(),
		})
		if err != nil {
			logger.Error(ctx, component, "request.create_failed",
				slog.Int64("user_id", userID),
				slog.String("err", err.Error()),
			)
			st.say(notify.Prompt{Kind: notify.KindTemporaryFailure})
			st.err = fmt.Errorf("flow: create request: %w", err)
			return
		}
		s.Reset()
		st.submitted = &req
		st.say(notify.Prompt{Kind: notify.KindSubmitted, Email: email, Amount: req.Amount, RequestID: req.ID})

	default:
		st.say(notify.Prompt{Kind: notify.KindIdleHint})
	}
}

func (m *Machine) onProof(ctx context.Context, userID int64, proof session.Proof, s *session.Session, st *step) {
	if s.State != session.StateAwaitingProof {
		proofRejects.WithLabelValues("unexpected").Inc()
		st.say(notify.Prompt{Kind: notify.KindProofUnexpected})
		return
	}
	if proof.Empty() {
		proofRejects.WithLabelValues("expected").Inc()
		st.say(notify.Prompt{Kind: notify.KindProofExpected})
		return
	}
	ok, err := m.registry.Reserve(ctx, proof.Ref, userID)
	if err != nil {
		logger.Error(ctx, component, "proof.reserve_failed",
			slog.Int64("user_id", userID),
			slog.String("proof_ref", proof.Ref),
			slog.String("err", err.Error()),
		)
		st.say(notify.Prompt{Kind: notify.KindTemporaryFailure})
		st.err = fmt.Errorf("flow: reserve proof: %w", err)
		return
	}
	if !ok {
		proofRejects.WithLabelValues("reused").Inc()
		logger.Info(ctx, component, "proof.reused",
			slog.Int64("user_id", userID),
			slog.String("proof_ref", proof.Ref),
		)
		st.say(notify.Prompt{Kind: notify.KindProofReused})
		return
	}
	s.PendingProof = proof
	s.State = session.StateAwaitingEmail
	st.say(notify.Prompt{Kind: notify.KindAskEmail})
}

func (m *Machine) onRetry(ctx context.Context, userID, requestID int64, s *session.Session, st *step) {
	req, err := m.index.ClaimRetry(ctx, requestID, userID)
	if err != nil {
		if errors.Is(err, reconcile.ErrNotRetryable) {
			st.say(notify.Prompt{Kind: notify.KindStaleAction})
			return
		}
		logger.Error(ctx, component, "retry.claim_failed",
			slog.Int64("user_id", userID),
			slog.Int64("request_id", requestID),
			slog.String("err", err.Error()),
		)
		st.say(notify.Prompt{Kind: notify.KindTemporaryFailure})
		st.err = fmt.Errorf("flow: claim retry: %w", err)
		return
	}
	*s = session.Session{
		State:         session.StateAwaitingEmail,
		PendingAmount: req.Amount,
		PendingProof:  req.Proof,
	}
	st.say(notify.Prompt{Kind: notify.KindAskEmail})
}

// PostDecision sends the decision request for req to the operator chat and
// binds the resulting message to it.
func (m *Machine) PostDecision(ctx context.Context, req reconcile.PendingRequest) error {
	ref, err := m.notifier.NotifyOperator(ctx, notify.Prompt{
		Kind:        notify.KindDecisionRequest,
		Amount:      req.Amount,
		Email:       req.Email,
		RequestID:   req.ID,
		ProofFileID: req.Proof.FileID,
		Username:    req.Username,
	})
	if err != nil {
		replyFailures.WithLabelValues("operator").Inc()
		logger.Error(ctx, component, "decision.post_failed",
			slog.Int64("request_id", req.ID),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("flow: post decision request %d: %w", req.ID, err)
	}
	if err := m.index.Bind(ctx, req.ID, ref); err != nil {
		logger.Error(ctx, component, "decision.bind_failed",
			slog.Int64("request_id", req.ID),
			slog.Int("message_id", ref.MessageID),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("flow: bind request %d: %w", req.ID, err)
	}
	return nil
}

func (m *Machine) reply(ctx context.Context, userID int64, p notify.Prompt) {
	if err := m.notifier.NotifyUser(ctx, userID, p); err != nil {
		replyFailures.WithLabelValues("user").Inc()
		logger.Warn(ctx, component, "reply.failed",
			slog.Int64("user_id", userID),
			slog.String("kind", string(p.Kind)),
			slog.String("err", err.Error()),
		)
	}
}
