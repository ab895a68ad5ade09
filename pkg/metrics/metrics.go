// Package metrics holds the prometheus collectors shared by the assistant
// pipeline. Collectors register on the default registry at init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GuardrailBlocked = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "finbot",
		Subsystem: "guardrail",
		Name:      "blocked_total",
		Help:      "Messages rejected by the prompt-injection blocklist",
	})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "finbot",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Response cache lookups by result",
	}, []string{"result"})

	RouteDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "finbot",
		Subsystem: "router",
		Name:      "decisions_total",
		Help:      "Model tier chosen per message",
	}, []string{"tier"})

	PromptVariants = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "finbot",
		Subsystem: "prompt",
		Name:      "variant_total",
		Help:      "Shadow prompt variant selections",
	}, []string{"variant"})

	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "finbot",
		Subsystem: "completion",
		Name:      "breaker_state",
		Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
	}, []string{"name"})

	CompletionFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "finbot",
		Subsystem: "completion",
		Name:      "fallbacks_total",
		Help:      "Completion calls answered with the fallback result",
	}, []string{"reason"})

	CompletionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "finbot",
		Subsystem: "completion",
		Name:      "latency_seconds",
		Help:      "Provider chat completion latency",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 45},
	}, []string{"model"})

	Interpretations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "finbot",
		Subsystem: "interpreter",
		Name:      "classifications_total",
		Help:      "Model output classifications",
	}, []string{"kind"})

	TransactionsPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "finbot",
		Subsystem: "transactions",
		Name:      "persisted_total",
		Help:      "Transactions saved by status",
	}, []string{"status"})

	HITLOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "finbot",
		Subsystem: "hitl",
		Name:      "outcomes_total",
		Help:      "Human-in-the-loop resolutions",
	}, []string{"outcome"})

	ToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "finbot",
		Subsystem: "tools",
		Name:      "calls_total",
		Help:      "Tool executions by name and result",
	}, []string{"tool", "result"})
)
