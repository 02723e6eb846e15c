package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/m3rciful/topupbot/core/logger"
	"github.com/m3rciful/topupbot/core/metrics"
	"github.com/m3rciful/topupbot/topup/notify"

	tele "gopkg.in/telebot.v4"
)

// ErrSenderNotReady is returned before the bot is started.
var ErrSenderNotReady = errors.New("bot: sender not ready")

// Sender is the subset of *tele.Bot used for delivery.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Retrier repeats a send on transient failures; *sender.Dispatcher
// satisfies it.
type Retrier interface {
	Do(ctx context.Context, action string, fn func() error) error
}

// Notifier delivers prompts over Telegram.
type Notifier struct {
	render         *Renderer
	operatorChatID int64

	mu      sync.RWMutex
	sender  Sender
	retrier Retrier
}

var _ notify.Notifier = (*Notifier)(nil)

// NewNotifier returns a notifier posting operator prompts to operatorChatID.
func NewNotifier(render *Renderer, operatorChatID int64) *Notifier {
	return &Notifier{render: render, operatorChatID: operatorChatID}
}

// SetSender attaches the live bot once it exists.
func (n *Notifier) SetSender(s Sender) {
	n.mu.Lock()
	n.sender = s
	n.mu.Unlock()
}

// SetRetrier routes sends through r. Without one each prompt is tried once.
func (n *Notifier) SetRetrier(r Retrier) {
	n.mu.Lock()
	n.retrier = r
	n.mu.Unlock()
}

// NotifyUser implements notify.Notifier.
func (n *Notifier) NotifyUser(ctx context.Context, userID int64, p notify.Prompt) error {
	_, err := n.deliver(ctx, userID, "user", p)
	return err
}

// NotifyOperator implements notify.Notifier.
func (n *Notifier) NotifyOperator(ctx context.Context, p notify.Prompt) (notify.MessageRef, error) {
	if n.operatorChatID == 0 {
		return notify.MessageRef{}, fmt.Errorf("bot: operator chat not configured")
	}
	msg, err := n.deliver(ctx, n.operatorChatID, "operator", p)
	if err != nil {
		return notify.MessageRef{}, err
	}
	ref := notify.MessageRef{ChatID: n.operatorChatID, MessageID: msg.ID}
	if msg.Chat != nil {
		ref.ChatID = msg.Chat.ID
	}
	return ref, nil
}

func (n *Notifier) deliver(ctx context.Context, chatID int64, audience string, p notify.Prompt) (*tele.Message, error) {
	n.mu.RLock()
	s, r := n.sender, n.retrier
	n.mu.RUnlock()
	if s == nil {
		return nil, ErrSenderNotReady
	}

	m := n.render.Render(p)
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown, ReplyMarkup: m.Markup}
	var what interface{} = m.Text
	if m.PhotoID != "" {
		what = &tele.Photo{File: tele.File{FileID: m.PhotoID}, Caption: m.Text}
	}

	var msg *tele.Message
	send := func() error {
		var err error
		msg, err = s.Send(tele.ChatID(chatID), what, opts)
		return err
	}
	var err error
	if r != nil {
		err = r.Do(ctx, "notify."+audience, send)
	} else {
		err = send()
	}
	if err != nil {
		err = classifyError(err)
		logger.Warn(ctx, "tg.notify", "send.failed",
			slog.Int64("chat_id", chatID),
			slog.String("kind", string(p.Kind)),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return nil, err
	}
	if msg == nil {
		msg = &tele.Message{}
	}
	metrics.Messages.WithLabelValues(string(p.Kind), audience).Inc()
	logger.Debug(ctx, "tg.notify", "send.ok",
		slog.Int64("chat_id", chatID),
		slog.String("kind", string(p.Kind)),
		slog.Int("message_id", msg.ID),
	)
	return msg, nil
}

// classifyError maps Telegram API failures onto the notify sentinels.
func classifyError(err error) error {
	var apiErr *tele.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	desc := strings.ToLower(apiErr.Description)
	switch {
	case apiErr.Code == 403:
		return fmt.Errorf("%w: %s", notify.ErrRecipientUnreachable, apiErr.Description)
	case apiErr.Code == 400 && strings.Contains(desc, "chat not found"):
		return fmt.Errorf("%w: %s", notify.ErrRecipientUnknown, apiErr.Description)
	}
	return err
}
