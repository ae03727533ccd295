package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "newsgpt"

var (
	LLMRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_requests_total",
		Help:      "Chat completion calls by position in the turn (initial, followup).",
	}, []string{"call"})

	ToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tool_calls_total",
		Help:      "Tool invocations requested by the model.",
	}, []string{"tool", "outcome"})

	NewsAPIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "newsapi_requests_total",
		Help:      "Outbound news search requests.",
	}, []string{"outcome"})

	Exports = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "exports_total",
		Help:      "Markdown exports by kind.",
	}, []string{"kind", "outcome"})

	Emails = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "emails_total",
		Help:      "Notification sends by outcome.",
	}, []string{"outcome"})

	TurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "turn_duration_seconds",
		Help:      "Wall time of a full conversation turn.",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
	})
)
