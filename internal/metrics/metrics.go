// Package metrics provides Prometheus metrics for the support agent
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"support-agent/internal/domain"
)

// Metrics owns its registry so tests and multiple binaries never collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	// Upstream completion attempts
	CompletionAttemptsTotal   *prometheus.CounterVec
	CompletionAttemptDuration *prometheus.HistogramVec

	// Chat replies by path (model, failure, transfer, error)
	RepliesTotal *prometheus.CounterVec

	// Human handoffs
	HandoffsTotal *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CompletionAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "support_agent_completion_attempts_total",
				Help: "Total number of completion attempts by outcome",
			},
			[]string{"outcome"},
		),
		CompletionAttemptDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "support_agent_completion_attempt_duration_seconds",
				Help:    "Duration of completion attempts in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"outcome"},
		),
		RepliesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "support_agent_replies_total",
				Help: "Total number of chat replies by path",
			},
			[]string{"path"},
		),
		HandoffsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "support_agent_handoffs_total",
				Help: "Total number of conversations handed to a human",
			},
			[]string{"category", "urgency"},
		),
	}
}

func (m *Metrics) ObserveAttempt(outcome string, d time.Duration) {
	m.CompletionAttemptsTotal.WithLabelValues(outcome).Inc()
	m.CompletionAttemptDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) ObserveReply(path string) {
	m.RepliesTotal.WithLabelValues(path).Inc()
}

func (m *Metrics) ObserveHandoff(category domain.Category, urgency domain.Urgency) {
	m.HandoffsTotal.WithLabelValues(string(category), string(urgency)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
