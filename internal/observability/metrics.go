package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hr_assistant"

// Conversation outcomes
const (
	OutcomeAnswered   = "answered"
	OutcomeFallback   = "fallback"
	OutcomeIncomplete = "incomplete"
	OutcomeError      = "error"
)

// Retrieval outcomes
const (
	RetrievalContext = "context"
	RetrievalEmpty   = "empty"
	RetrievalFailed  = "failed"
)

// Metrics holds the prometheus collectors of the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	conversations    *prometheus.CounterVec
	rounds           prometheus.Histogram
	toolCalls        *prometheus.CounterVec
	modelDuration    *prometheus.HistogramVec
	retrievals       *prometheus.CounterVec
	retrievalLatency prometheus.Histogram
}

// NewMetrics registers all collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		conversations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversations_total",
			Help:      "Conversations completed, by outcome.",
		}, []string{"outcome"}),
		rounds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversation_tool_rounds",
			Help:      "Tool dispatch rounds per conversation.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 8, 13},
		}),
		toolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool dispatches, by tool and result.",
		}, []string{"tool", "result"}),
		modelDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_request_duration_seconds",
			Help:      "Latency of model gateway calls.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"result"}),
		retrievals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrievals_total",
			Help:      "Policy retrievals, by outcome.",
		}, []string{"outcome"}),
		retrievalLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Latency of policy retrievals.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// ObserveConversation records the end of one conversation
func (m *Metrics) ObserveConversation(rounds int, outcome string) {
	if m == nil {
		return
	}
	m.conversations.WithLabelValues(outcome).Inc()
	m.rounds.Observe(float64(rounds))
}

// ObserveToolCall records one dispatch
func (m *Metrics) ObserveToolCall(tool string, isError bool) {
	if m == nil {
		return
	}
	result := "ok"
	if isError {
		result = "error"
	}
	m.toolCalls.WithLabelValues(tool, result).Inc()
}

// ObserveModelCall records one model gateway call
func (m *Metrics) ObserveModelCall(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.modelDuration.WithLabelValues(result).Observe(d.Seconds())
}

// ObserveRetrieval records one retrieval
func (m *Metrics) ObserveRetrieval(d time.Duration, outcome string) {
	if m == nil {
		return
	}
	m.retrievals.WithLabelValues(outcome).Inc()
	m.retrievalLatency.Observe(d.Seconds())
}
