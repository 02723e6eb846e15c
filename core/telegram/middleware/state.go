package middleware

import (
	"log/slog"

	"github.com/m3rciful/topupbot/core/logger"
	tghelpers "github.com/m3rciful/topupbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const stateKey = "fsm_state"

// StateFunc returns the conversation state of a user.
type StateFunc func(userID int64) string

// TrackState records the sender's conversation state before the handler runs,
// so handler summaries and debug logs show where the update landed.
func TrackState(get StateFunc) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if get == nil || user == nil {
				return next(c)
			}
			current := get(user.ID)
			c.Set(stateKey, current)
			logger.Debug(tghelpers.BuildContext(c), "tg", "fsm.state",
				slog.Int64("user_id", user.ID),
				slog.String("state", current),
			)
			return next(c)
		}
	}
}

// StateFrom returns the state captured by TrackState.
func StateFrom(c tele.Context) string {
	if v, ok := c.Get(stateKey).(string); ok {
		return v
	}
	return ""
}
