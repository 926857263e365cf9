package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TransformMetrics records what the sum worker did with each message.
type TransformMetrics struct {
	outcomes        *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	publishFailures *prometheus.CounterVec
}

// NewTransformMetrics registers the transform metrics on the provided registerer.
func NewTransformMetrics(reg prometheus.Registerer) *TransformMetrics {
	if reg == nil {
		return &TransformMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "getsum_messages_total",
		Help: "Messages handled by the sum node, by outcome and relation.",
	}, []string{"outcome", "relation"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "getsum_message_duration_seconds",
		Help:    "Time spent handling one message including publish.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	publishFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "getsum_publish_failures_total",
		Help: "Messages that could not be published to their relation topic.",
	}, []string{"relation"})
	reg.MustRegister(outcomes, duration, publishFailures)
	return &TransformMetrics{
		outcomes:        outcomes,
		duration:        duration,
		publishFailures: publishFailures,
	}
}

// IncOutcome counts a handled message.
func (m *TransformMetrics) IncOutcome(outcome, relation string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(outcome), normalizeLabel(relation)).Inc()
}

// ObserveDuration records the handling time for the outcome.
func (m *TransformMetrics) ObserveDuration(outcome string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// IncPublishFailure counts a failed publish on the relation topic.
func (m *TransformMetrics) IncPublishFailure(relation string) {
	if m == nil || m.publishFailures == nil {
		return
	}
	m.publishFailures.WithLabelValues(normalizeLabel(relation)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
