package flow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/m3rciful/topupbot/core/metrics"
)

var (
	submissions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Name:      "requests_submitted_total",
		Help:      "Top-up requests submitted for operator review",
	})

	proofRejects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Name:      "proof_rejects_total",
		Help:      "Proof uploads that did not advance the conversation",
	}, []string{"reason"})

	transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Name:      "state_transitions_total",
		Help:      "Session state transitions",
	}, []string{"from", "to"})

	replyFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Name:      "reply_failures_total",
		Help:      "Failed deliveries of conversation prompts",
	}, []string{"target"})
)
