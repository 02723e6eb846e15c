package helpers

import (
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/topupbot/core/logger"
	"github.com/m3rciful/topupbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher sets the dispatcher SendText queues on; nil sends inline.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

// SendText queues a plain text reply to the current chat. It falls back to
// an inline send when no dispatcher is set or the queue rejects the job.
func SendText(c tele.Context, text string) error {
	send := func() error { return c.Send(text) }
	disp := globalDispatcher.Load()
	if disp == nil {
		return send()
	}
	ctx := BuildContext(c)
	if err := disp.Enqueue(ctx, "send.text", send); err != nil {
		logger.Warn(ctx, "tg.sender", "queue.fallback", slog.String("err", err.Error()))
		return send()
	}
	return nil
}
