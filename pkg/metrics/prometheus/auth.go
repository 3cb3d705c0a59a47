// Package prometheus implements the metrics interfaces with
// client_golang. Importing it for side effects links the implementation
// into metrics.NewAuthMetrics and metrics.NewSessionMetrics.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/labgate/pkg/metrics"
)

func init() {
	metrics.RegisterConstructors(
		func() metrics.AuthMetrics { return NewAuthMetrics(metrics.GetRegistry()) },
		func() metrics.SessionMetrics { return NewSessionMetrics(metrics.GetRegistry()) },
	)
}

// latency buckets in seconds, from a local SQL lookup to a slow directory
var latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

type authMetrics struct {
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
	logins   *prometheus.CounterVec
}

// NewAuthMetrics registers the authentication collectors on reg.
func NewAuthMetrics(reg prometheus.Registerer) metrics.AuthMetrics {
	f := promauto.With(reg)
	return &authMetrics{
		attempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labgate_auth_attempts_total",
				Help: "Authentication strategy attempts by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "labgate_auth_duration_seconds",
				Help:    "Duration of authentication strategy attempts",
				Buckets: latencyBuckets,
			},
			[]string{"strategy"},
		),
		logins: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labgate_logins_total",
				Help: "Login results after all strategies were tried",
			},
			[]string{"outcome"},
		),
	}
}

func (m *authMetrics) ObserveAttempt(strategy, outcome string, d time.Duration) {
	m.attempts.WithLabelValues(strategy, outcome).Inc()
	m.duration.WithLabelValues(strategy).Observe(d.Seconds())
}

func (m *authMetrics) ObserveLogin(outcome string) {
	m.logins.WithLabelValues(outcome).Inc()
}

type sessionMetrics struct {
	steps    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewSessionMetrics registers the provisioning collectors on reg.
func NewSessionMetrics(reg prometheus.Registerer) metrics.SessionMetrics {
	f := promauto.With(reg)
	return &sessionMetrics{
		steps: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labgate_session_steps_total",
				Help: "Provisioning step executions by step and outcome",
			},
			[]string{"step", "outcome"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "labgate_session_step_duration_seconds",
				Help:    "Duration of provisioning steps",
				Buckets: latencyBuckets,
			},
			[]string{"step"},
		),
	}
}

func (m *sessionMetrics) ObserveStep(step, outcome string, d time.Duration) {
	m.steps.WithLabelValues(step, outcome).Inc()
	m.duration.WithLabelValues(step).Observe(d.Seconds())
}
