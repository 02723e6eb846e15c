// Package bot binds the top-up flow and the operator decisions to Telegram.
package bot

import (
	"context"
	"log/slog"

	"github.com/m3rciful/topupbot/core/logger"
	tg "github.com/m3rciful/topupbot/core/telegram"
	"github.com/m3rciful/topupbot/core/telegram/callbacks"
	"github.com/m3rciful/topupbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/topupbot/core/telegram/helpers"
	"github.com/m3rciful/topupbot/core/telegram/middleware"
	"github.com/m3rciful/topupbot/topup/flow"
	"github.com/m3rciful/topupbot/topup/notify"
	"github.com/m3rciful/topupbot/topup/reconcile"
	"github.com/m3rciful/topupbot/topup/session"

	tele "gopkg.in/telebot.v4"
)

const (
	component        = "bot"
	pendingListLimit = 20
)

// Bot holds the Telegram handlers.
type Bot struct {
	machine  *flow.Machine
	resolver *reconcile.Handler
	index    reconcile.Index
	notifier notify.Notifier
}

// New wires handlers over the flow machine and the reconcile handler.
func New(machine *flow.Machine, resolver *reconcile.Handler, index reconcile.Index, notifier notify.Notifier) *Bot {
	return &Bot{
		machine:  machine,
		resolver: resolver,
		index:    index,
		notifier: notifier,
	}
}

// Register adds commands and callbacks to reg.
func (b *Bot) Register(reg *tg.Registry) error {
	cmds := map[string]commands.Command{
		"/start": {
			Handler:     middleware.PrivateOnlyMiddleware(b.event(flow.EventStart)),
			Description: "Start a top-up",
		},
		"/cancel": {
			Handler:     middleware.PrivateOnlyMiddleware(b.event(flow.EventCancel)),
			Description: "Cancel the current top-up",
		},
		"/accept": {
			Handler:      b.decide(reconcile.DecisionAccept),
			Description:  "Accept the replied request",
			OperatorOnly: true,
			Aliases:      []string{"/yes", "/Yes"},
		},
		"/reject": {
			Handler:      b.decide(reconcile.DecisionReject),
			Description:  "Reject the replied request",
			OperatorOnly: true,
			Aliases:      []string{"/no", "/No"},
		},
		"/pending": {
			Handler:      b.pending,
			Description:  "List requests waiting for a decision",
			OperatorOnly: true,
		},
	}
	for name, cmd := range cmds {
		if err := reg.RegisterCommand(name, cmd); err != nil {
			return err
		}
	}

	cbs := map[string]tele.HandlerFunc{
		CallbackTopUp:       b.event(flow.EventTopUp),
		CallbackUploadProof: b.event(flow.EventUploadProof),
		CallbackCancel:      b.event(flow.EventCancel),
		CallbackRestart:     b.event(flow.EventRestart),
		CallbackRetryEmail:  b.retryEmail,
	}
	for key, h := range cbs {
		if err := reg.RegisterCallback(key, h); err != nil {
			return err
		}
	}
	reg.SetCallbackNotFound(b.unknownCallback)
	return nil
}

// InProgress reports whether the user is mid-flow.
func (b *Bot) InProgress(userID int64) bool {
	return b.machine.Sessions().InProgress(userID)
}

// State returns the user's conversation state for logging.
func (b *Bot) State(userID int64) string {
	return string(b.machine.Sessions().GetState(userID))
}

// HandleText feeds private text messages to the flow.
func (b *Bot) HandleText(c tele.Context) error {
	if !private(c) {
		return nil
	}
	return b.dispatch(c, flow.Event{Kind: flow.EventText, Text: c.Text()})
}

// HandleMedia feeds private non-text messages to the flow; photos are proofs.
func (b *Bot) HandleMedia(c tele.Context) error {
	if !private(c) {
		return nil
	}
	ev := flow.Event{Kind: flow.EventOther}
	if msg := c.Message(); msg != nil && msg.Photo != nil {
		ev = flow.Event{Kind: flow.EventProof, Proof: proofOf(msg.Photo)}
	}
	return b.dispatch(c, ev)
}

// OnRateLimited tells a throttled user to slow down.
func (b *Bot) OnRateLimited(c tele.Context) error {
	const text = "⏳ Too many requests. Please slow down."
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: text})
	}
	if !private(c) {
		return nil
	}
	return tghelpers.SendText(c, text)
}

func (b *Bot) event(kind flow.EventKind) tele.HandlerFunc {
	return func(c tele.Context) error {
		return b.dispatch(c, flow.Event{Kind: kind})
	}
}

func (b *Bot) retryEmail(c tele.Context) error {
	// A malformed payload yields id 0, which no request can claim.
	id, _ := callbacks.PayloadID(c)
	return b.dispatch(c, flow.Event{Kind: flow.EventRetryEmail, RequestID: id})
}

func (b *Bot) unknownCallback(c tele.Context) error {
	user := c.Sender()
	if user == nil {
		return nil
	}
	return b.notifier.NotifyUser(tghelpers.BuildContext(c), user.ID, notify.Prompt{Kind: notify.KindStaleAction})
}

func (b *Bot) dispatch(c tele.Context, ev flow.Event) error {
	user := c.Sender()
	if user == nil {
		return nil
	}
	ev.Username = user.Username
	return b.machine.Handle(tghelpers.BuildContext(c), user.ID, ev)
}

func (b *Bot) decide(d reconcile.Decision) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		msg := c.Message()
		if msg == nil || msg.ReplyTo == nil {
			_, err := b.notifier.NotifyOperator(ctx, notify.Prompt{Kind: notify.KindReplyRequired})
			return err
		}
		ref := notify.MessageRef{ChatID: c.Chat().ID, MessageID: msg.ReplyTo.ID}
		res := b.resolver.Resolve(ctx, ref, d, operatorName(c.Sender()))
		logger.Debug(ctx, component, "decision.handled",
			slog.String("decision", string(d)),
			slog.String("result", string(res.Outcome)),
			slog.Int64("request_id", res.Request.ID),
		)
		return nil
	}
}

// pending lists outstanding requests and reposts those whose decision
// message was never delivered.
func (b *Bot) pending(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	reqs, err := b.index.Pending(ctx, pendingListLimit)
	if err != nil {
		_, _ = b.notifier.NotifyOperator(ctx, notify.Prompt{Kind: notify.KindLedgerFailed, Detail: "request index unavailable", Retryable: true})
		return err
	}
	summaries := make([]notify.Summary, 0, len(reqs))
	for _, req := range reqs {
		summaries = append(summaries, req.Summary())
	}
	if _, err := b.notifier.NotifyOperator(ctx, notify.Prompt{Kind: notify.KindPendingList, Pending: summaries}); err != nil {
		return err
	}
	b.repostUnbound(ctx, reqs)
	return nil
}

func (b *Bot) repostUnbound(ctx context.Context, reqs []reconcile.PendingRequest) {
	for _, req := range reqs {
		if !req.OperatorRef.Zero() {
			continue
		}
		if err := b.machine.PostDecision(ctx, req); err != nil {
			logger.Warn(ctx, component, "decision.repost_failed",
				slog.Int64("request_id", req.ID),
				slog.String("err", err.Error()),
			)
		}
	}
}

func private(c tele.Context) bool {
	chat := c.Chat()
	return chat != nil && chat.Type == tele.ChatPrivate
}

// proofOf keys the proof on the largest photo size's unique id.
func proofOf(p *tele.Photo) session.Proof {
	ref := p.UniqueID
	if ref == "" {
		ref = p.FileID
	}
	return session.Proof{Ref: ref, FileID: p.FileID}
}

func operatorName(u *tele.User) string {
	if u == nil {
		return "unknown"
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return "unknown"
}
