package middleware

import (
	"github.com/m3rciful/topupbot/core/metrics"

	tele "gopkg.in/telebot.v4"
)

// InboundMetricsMiddleware counts every update by kind before routing.
func InboundMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		kind := UpdateKind(c.Update())
		metrics.Inbound.WithLabelValues(kind).Inc()
		c.Set("update_kind", kind)
		return next(c)
	}
}
