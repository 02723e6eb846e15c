package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/m3rciful/topupbot/core/metrics"
)

var (
	resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Name:      "resolutions_total",
		Help:      "Operator decisions by outcome",
	}, []string{"outcome"})

	creditedAmount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Name:      "credited_amount_total",
		Help:      "Sum of amounts credited to ledger accounts",
	})

	notifyFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Name:      "decision_notify_failures_total",
		Help:      "Failed deliveries while reporting a decision",
	}, []string{"target", "reason"})
)
