package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/m3rciful/topupbot/core/logger"
	"github.com/m3rciful/topupbot/topup/keylock"
	"github.com/m3rciful/topupbot/topup/ledger"
	"github.com/m3rciful/topupbot/topup/notify"
)

const component = "reconcile"

// Outcome classifies how a decision was resolved.
type Outcome string

const (
	OutcomeCredited          Outcome = "credited"
	OutcomeRejected          Outcome = "rejected"
	OutcomeNotFound          Outcome = "not_found"
	OutcomeAccountNotFound   Outcome = "account_not_found"
	OutcomeLedgerUnavailable Outcome = "ledger_unavailable"
	OutcomeFailed            Outcome = "failed"
)

// Resolution reports the result of Resolve.
type Resolution struct {
	Outcome Outcome
	Request PendingRequest
	// Balance is the account balance after a credit.
	Balance int64
}

// Handler applies operator decisions.
type Handler struct {
	index    Index
	ledger   ledger.Bridge
	notifier notify.Notifier
	locks    *keylock.Map
	now      func() time.Time
}

// NewHandler wires a Handler. Credits to one email are serialised through locks.
func NewHandler(index Index, bridge ledger.Bridge, notifier notify.Notifier, locks *keylock.Map) *Handler {
	if locks == nil {
		locks = keylock.New()
	}
	return &Handler{
		index:    index,
		ledger:   bridge,
		notifier: notifier,
		locks:    locks,
		now:      time.Now,
	}
}

// Resolve consumes the request bound to ref and applies decision d.
// Failures are reported to the operator chat and logged; they are not returned.
func (h *Handler) Resolve(ctx context.Context, ref MessageRef, d Decision, operator string) Resolution {
	res := h.resolve(ctx, ref, d, operator)
	resolutions.WithLabelValues(string(res.Outcome)).Inc()
	return res
}

func (h *Handler) resolve(ctx context.Context, ref MessageRef, d Decision, operator string) Resolution {
	req, err := h.index.Consume(ctx, ref, d, operator, h.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			logger.Info(ctx, component, "decision.not_found",
				slog.Int64("chat_id", ref.ChatID),
				slog.Int("message_id", ref.MessageID),
				slog.String("decision", string(d)),
				slog.String("operator", operator),
			)
			h.toOperator(ctx, notify.Prompt{Kind: notify.KindAlreadyResolved})
			return Resolution{Outcome: OutcomeNotFound}
		}
		logger.Error(ctx, component, "decision.consume_failed",
			slog.Int("message_id", ref.MessageID),
			slog.String("err", err.Error()),
		)
		h.toOperator(ctx, notify.Prompt{Kind: notify.KindLedgerFailed, Detail: "request index unavailable", Retryable: true})
		return Resolution{Outcome: OutcomeFailed}
	}

	if d == DecisionAccept {
		return h.accept(ctx, ref, req, operator)
	}
	return h.reject(ctx, req, operator)
}

func (h *Handler) accept(ctx context.Context, ref MessageRef, req PendingRequest, operator string) Resolution {
	unlock := h.locks.Lock(req.Email)
	defer unlock()

	attrs := []slog.Attr{
		slog.Int64("request_id", req.ID),
		slog.String("email", req.Email),
		slog.Int64("amount", req.Amount),
		slog.String("operator", operator),
	}

	if _, err := h.ledger.GetAccount(ctx, req.Email); err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			logger.Warn(ctx, component, "decision.account_not_found", attrs...)
			h.toOperator(ctx, notify.Prompt{Kind: notify.KindAccountNotFound, Email: req.Email, RequestID: req.ID})
			return Resolution{Outcome: OutcomeAccountNotFound, Request: req}
		}
		logger.Error(ctx, component, "decision.ledger_read_failed", append(attrs, slog.String("err", err.Error()))...)
		retryable := true
		if rerr := h.index.Reopen(ctx, ref); rerr != nil {
			retryable = false
			logger.Error(ctx, component, "decision.reopen_failed", append(attrs, slog.String("err", rerr.Error()))...)
		}
		h.toOperator(ctx, notify.Prompt{
			Kind:      notify.KindLedgerFailed,
			Email:     req.Email,
			Amount:    req.Amount,
			RequestID: req.ID,
			Detail:    err.Error(),
			Retryable: retryable,
		})
		return Resolution{Outcome: OutcomeLedgerUnavailable, Request: req}
	}

	acc, err := h.ledger.ApplyCredit(ctx, req.Email, req.Amount)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			logger.Warn(ctx, component, "decision.account_not_found", attrs...)
			h.toOperator(ctx, notify.Prompt{Kind: notify.KindAccountNotFound, Email: req.Email, RequestID: req.ID})
			return Resolution{Outcome: OutcomeAccountNotFound, Request: req}
		}
		// The write may have landed; leave the request consumed.
		logger.Error(ctx, component, "decision.credit_failed", append(attrs, slog.String("err", err.Error()))...)
		h.toOperator(ctx, notify.Prompt{
			Kind:      notify.KindLedgerFailed,
			Email:     req.Email,
			Amount:    req.Amount,
			RequestID: req.ID,
			Detail:    err.Error(),
		})
		return Resolution{Outcome: OutcomeLedgerUnavailable, Request: req}
	}
	creditedAmount.Add(float64(req.Amount))

	logger.Info(ctx, component, "decision.accepted", append(attrs, slog.Int64("balance", acc.Balance))...)
	h.toOperator(ctx, notify.Prompt{
		Kind:      notify.KindAuditAccepted,
		Operator:  operator,
		Amount:    req.Amount,
		Email:     req.Email,
		RequestID: req.ID,
	})
	h.toUser(ctx, req, notify.Prompt{
		Kind:      notify.KindCredited,
		Amount:    req.Amount,
		Balance:   acc.Balance,
		RequestID: req.ID,
	})
	return Resolution{Outcome: OutcomeCredited, Request: req, Balance: acc.Balance}
}

func (h *Handler) reject(ctx context.Context, req PendingRequest, operator string) Resolution {
	logger.Info(ctx, component, "decision.rejected",
		slog.Int64("request_id", req.ID),
		slog.String("email", req.Email),
		slog.String("operator", operator),
	)
	h.toOperator(ctx, notify.Prompt{
		Kind:      notify.KindAuditRejected,
		Operator:  operator,
		Email:     req.Email,
		RequestID: req.ID,
	})
	h.toUser(ctx, req, notify.Prompt{
		Kind:      notify.KindRejected,
		Email:     req.Email,
		RequestID: req.ID,
	})
	return Resolution{Outcome: OutcomeRejected, Request: req}
}

// toUser delivers p to the request originator. Delivery problems are surfaced
// to the operator; the decision itself stands.
func (h *Handler) toUser(ctx context.Context, req PendingRequest, p notify.Prompt) {
	if req.UserID == 0 {
		notifyFailures.WithLabelValues("user", "unknown").Inc()
		logger.Warn(ctx, component, "notify.user_unknown", slog.Int64("request_id", req.ID))
		h.toOperator(ctx, notify.Prompt{Kind: notify.KindUserUnknown, Email: req.Email, RequestID: req.ID})
		return
	}
	err := h.notifier.NotifyUser(ctx, req.UserID, p)
	if err == nil {
		return
	}

	attrs := []slog.Attr{
		slog.Int64("request_id", req.ID),
		slog.Int64("user_id", req.UserID),
		slog.String("err", err.Error()),
	}
	switch {
	case errors.Is(err, notify.ErrRecipientUnknown):
		notifyFailures.WithLabelValues("user", "unknown").Inc()
		logger.Warn(ctx, component, "notify.user_unknown", attrs...)
		h.toOperator(ctx, notify.Prompt{Kind: notify.KindUserUnknown, Email: req.Email, RequestID: req.ID})
	default:
		reason := "unreachable"
		if !errors.Is(err, notify.ErrRecipientUnreachable) {
			reason = "error"
		}
		notifyFailures.WithLabelValues("user", reason).Inc()
		logger.Warn(ctx, component, "notify.user_unreachable", attrs...)
		h.toOperator(ctx, notify.Prompt{
			Kind:      notify.KindUserUnreachable,
			Email:     req.Email,
			RequestID: req.ID,
			Detail:    err.Error(),
		})
	}
}

func (h *Handler) toOperator(ctx context.Context, p notify.Prompt) {
	if _, err := h.notifier.NotifyOperator(ctx, p); err != nil {
		notifyFailures.WithLabelValues("operator", string(p.Kind)).Inc()
		logger.Error(ctx, component, "notify.operator_failed",
			slog.String("kind", string(p.Kind)),
			slog.Int64("request_id", p.RequestID),
			slog.String("err", err.Error()),
		)
	}
}
