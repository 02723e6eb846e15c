package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/topupbot/core/logger"
	"github.com/m3rciful/topupbot/core/metrics"
	tghelpers "github.com/m3rciful/topupbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures RateLimitMiddleware.
type RateLimitOptions struct {
	Interval time.Duration
	// Exclude holds update classes that bypass the limit:
	// callback, message or inline_query.
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
	// Now is overridable in tests.
	Now func() time.Time
}

type lastSeen struct {
	mu     sync.Mutex
	byUser map[int64]time.Time
	swept  time.Time
}

// allow records an update from userID at now and reports whether it is
// outside the interval. Entries older than the interval are swept at most
// once per minute.
func (l *lastSeen) allow(userID int64, now time.Time, interval time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.swept) > time.Minute {
		for id, ts := range l.byUser {
			if now.Sub(ts) >= interval {
				delete(l.byUser, id)
			}
		}
		l.swept = now
	}
	if last, ok := l.byUser[userID]; ok && now.Sub(last) < interval {
		return false
	}
	l.byUser[userID] = now
	return true
}

// RateLimitMiddleware drops updates that arrive from the same user faster
// than opts.Interval.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	seen := &lastSeen{byUser: make(map[int64]time.Time)}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind := UpdateKind(c.Update())
			if _, skip := opts.Exclude[limitClass(kind)]; skip {
				return next(c)
			}
			if seen.allow(user.ID, now(), opts.Interval) {
				return next(c)
			}

			metrics.RateLimited.WithLabelValues(kind).Inc()
			logger.Warn(tghelpers.BuildContext(c), "tg", "rate_limit",
				slog.String("kind", kind),
				slog.Duration("interval", opts.Interval),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
