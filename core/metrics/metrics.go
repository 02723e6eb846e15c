// Package metrics exposes Prometheus counters and the ops HTTP listener.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/m3rciful/topupbot/core/logger"
)

// Namespace prefixes every metric name.
const Namespace = "topupbot"

var (
	// Updates counts handled Telegram updates by handler and status.
	Updates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "updates_total",
		Help:      "Telegram updates handled",
	}, []string{"handler", "status"})

	// HandlerLatency observes handler duration.
	HandlerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "handler_duration_seconds",
		Help:      "Handler latency",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"handler"})

	// Inbound counts received updates by kind before routing.
	Inbound = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "inbound_updates_total",
		Help:      "Telegram updates received",
	}, []string{"kind"})

	// RateLimited counts updates dropped by the per-user rate limit.
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "rate_limited_total",
		Help:      "Updates dropped by the rate limiter",
	}, []string{"kind"})

	// Panics counts handler panics caught by the recover middleware.
	Panics = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "handler_panics_total",
		Help:      "Handler panics recovered",
	})

	// Messages counts prompts delivered by kind and audience.
	Messages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "messages_sent_total",
		Help:      "Prompts delivered to users and operators",
	}, []string{"kind", "audience"})

	// SendRetries counts repeated Telegram API calls by failure kind.
	SendRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "send_retries_total",
		Help:      "Telegram calls retried after a transient failure",
	}, []string{"kind"})

	// SendFailures counts Telegram API calls that failed for good.
	SendFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "send_failures_total",
		Help:      "Telegram calls that failed after retries",
	}, []string{"action", "kind"})

	// LogQueueStalls mirrors logger.QueueStalls.
	LogQueueStalls = promauto.NewCounterFunc(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "log_queue_stalls_total",
		Help:      "Log writes that blocked on a full queue",
	}, func() float64 { return float64(logger.QueueStalls()) })
)
