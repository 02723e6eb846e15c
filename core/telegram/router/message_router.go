package router

import (
	"time"

	tg "github.com/m3rciful/topupbot/core/telegram"
	"github.com/m3rciful/topupbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Conversation receives free-form updates that are not commands or callbacks.
type Conversation interface {
	InProgress(userID int64) bool
	HandleText(c tele.Context) error
	HandleMedia(c tele.Context) error
}

// TextOptions controls routing of text and media updates.
type TextOptions struct {
	// OperatorChatID guards OperatorOnly commands reached through text lookup.
	OperatorChatID int64
}

// mediaEndpoints lists the non-text updates forwarded to the conversation.
var mediaEndpoints = []string{
	tele.OnPhoto,
	tele.OnDocument,
	tele.OnSticker,
	tele.OnVideo,
	tele.OnVideoNote,
	tele.OnVoice,
	tele.OnAudio,
	tele.OnAnimation,
	tele.OnContact,
	tele.OnLocation,
}

// TextRoutes builds handlers for text and media routing.
// Commands that telebot did not match exactly (case variants, unknown
// @suffixes) are resolved through the registry before the conversation.
func TextRoutes(conv Conversation, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()
		if reg != nil && len(text) > 1 && text[0] == '/' {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				h := cmd.Handler
				if cmd.OperatorOnly {
					h = middleware.OperatorOnlyMiddleware(middleware.OperatorOptions{ChatID: opts.OperatorChatID})(h)
				}
				return handleWithSummary(c, normalizeHandlerName(key), start, func() error {
					return h(c)
				})
			}
		}
		if conv != nil {
			name := "text"
			if sender := c.Sender(); sender != nil && conv.InProgress(sender.ID) {
				name = "fsm"
			}
			return handleWithSummary(c, name, start, func() error {
				return conv.HandleText(c)
			})
		}
		logSkipped(c, "unknown_text", start)
		return nil
	}

	mediaHandler := func(c tele.Context) error {
		start := time.Now()
		if conv != nil {
			name := "media"
			if sender := c.Sender(); sender != nil && conv.InProgress(sender.ID) {
				name = "fsm_media"
			}
			return handleWithSummary(c, name, start, func() error {
				return conv.HandleMedia(c)
			})
		}
		logSkipped(c, "unexpected_media", start)
		return nil
	}

	routes := []tg.Route{{
		Endpoint: tele.OnText,
		Handler:  handler,
	}}
	for _, ep := range mediaEndpoints {
		routes = append(routes, tg.Route{Endpoint: ep, Handler: mediaHandler})
	}
	return routes
}
