package middleware

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/topupbot/core/logger"
	"github.com/m3rciful/topupbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/topupbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// recent remembers update ids for a short while so an update that passes
// through the chain twice is logged once.
var (
	recentMu sync.Mutex
	recent   = make(map[int]time.Time)
	keepFor  = 10 * time.Second
)

func alreadyLogged(updateID int) bool {
	now := time.Now()
	recentMu.Lock()
	defer recentMu.Unlock()
	for id, ts := range recent {
		if now.Sub(ts) > keepFor {
			delete(recent, id)
		}
	}
	if _, ok := recent[updateID]; ok {
		return true
	}
	recent[updateID] = now
	return false
}

// LoggerMiddleware sets the update rid and context and writes one sampled
// debug line per update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		updateID, chatID, userID := tghelpers.UpdateIDs(c)
		rid := logger.BuildRID(updateID, chatID, userID)
		c.Set("rid", rid)
		c.Set("update_start", time.Now())
		ctx := tghelpers.BuildContext(c)

		if logger.ShouldSampleDebug() && !alreadyLogged(updateID) {
			attrs := []slog.Attr{slog.String("status", "ok")}
			if chat := c.Chat(); chat != nil {
				attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
			}
			if user := c.Sender(); user != nil && user.Username != "" {
				attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
			}
			attrs = append(attrs, updateKind(c.Update())...)
			logger.Debug(ctx, "tg", "update.received", attrs...)
		}
		return next(c)
	}
}

// updateKind describes the update without copying user text into logs.
// Free text may carry an email, so only commands are logged verbatim.
func updateKind(upd tele.Update) []slog.Attr {
	kind := UpdateKind(upd)
	attrs := []slog.Attr{slog.String("kind", kind)}
	switch kind {
	case KindCallback:
		key, payload := callbacks.ParseCallbackData(upd.Callback)
		attrs = append(attrs,
			slog.String("cb_key", logger.SanitizeLimit(key, 128)),
			slog.String("payload", logger.SanitizeLimit(payload, 64)),
		)
	case KindCommand:
		cmd, _, _ := strings.Cut(upd.Message.Text, " ")
		attrs = append(attrs, slog.String("command", logger.SanitizeLimit(cmd, 64)))
	case KindText:
		attrs = append(attrs, slog.Int("text_len", len([]rune(upd.Message.Text))))
	case KindOther:
		return nil
	}
	return attrs
}
