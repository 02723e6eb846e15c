package middleware

import (
	"log/slog"

	"github.com/m3rciful/topupbot/core/logger"
	tghelpers "github.com/m3rciful/topupbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// OperatorOptions defines which chat may run operator commands.
type OperatorOptions struct {
	// ChatID is the operator group; zero accepts any group chat.
	ChatID   int64
	OnReject tele.HandlerFunc
}

// IsOperatorChat reports whether chat is the configured operator group.
func IsOperatorChat(chat *tele.Chat, chatID int64) bool {
	if chat == nil {
		return false
	}
	if chat.Type != tele.ChatGroup && chat.Type != tele.ChatSuperGroup {
		return false
	}
	return chatID == 0 || chat.ID == chatID
}

// OperatorOnlyMiddleware drops updates that do not come from the operator group.
func OperatorOnlyMiddleware(opts OperatorOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if !IsOperatorChat(c.Chat(), opts.ChatID) {
				var chatID int64
				if chat := c.Chat(); chat != nil {
					chatID = chat.ID
				}
				logger.Debug(tghelpers.BuildContext(c), "tg", "access.denied",
					slog.Int64("chat_id", chatID),
					slog.String("reason", "not_operator_chat"),
				)
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}

// PrivateOnlyMiddleware ignores updates that do not come from a private chat.
func PrivateOnlyMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if chat := c.Chat(); chat == nil || chat.Type != tele.ChatPrivate {
			return nil
		}
		return next(c)
	}
}
