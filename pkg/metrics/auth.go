package metrics

import "time"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// AuthMetrics records authentication strategy attempts.
type AuthMetrics interface {
	// ObserveAttempt records one strategy attempt and its outcome.
	ObserveAttempt(strategy, outcome string, duration time.Duration)

	// ObserveLogin records the final result of a login.
	ObserveLogin(outcome string)
}

// SessionMetrics records provisioning step executions.
type SessionMetrics interface {
	ObserveStep(step, outcome string, duration time.Duration)
}

var (
	newAuthMetrics    func() AuthMetrics
	newSessionMetrics func() SessionMetrics
)

// RegisterConstructors is called by the Prometheus implementation during
// package initialization.
func RegisterConstructors(auth func() AuthMetrics, session func() SessionMetrics) {
	newAuthMetrics = auth
	newSessionMetrics = session
}

// NewAuthMetrics returns nil unless metrics are enabled and an
// implementation has been linked in.
func NewAuthMetrics() AuthMetrics {
	if !IsEnabled() || newAuthMetrics == nil {
		return nil
	}
	return newAuthMetrics()
}

// NewSessionMetrics returns nil unless metrics are enabled and an
// implementation has been linked in.
func NewSessionMetrics() SessionMetrics {
	if !IsEnabled() || newSessionMetrics == nil {
		return nil
	}
	return newSessionMetrics()
}

// ObserveAttempt is a nil-safe wrapper around AuthMetrics.ObserveAttempt.
func ObserveAttempt(m AuthMetrics, strategy, outcome string, d time.Duration) {
	if m != nil {
		m.ObserveAttempt(strategy, outcome, d)
	}
}

// ObserveLogin is a nil-safe wrapper around AuthMetrics.ObserveLogin.
func ObserveLogin(m AuthMetrics, outcome string) {
	if m != nil {
		m.ObserveLogin(outcome)
	}
}

// ObserveStep is a nil-safe wrapper around SessionMetrics.ObserveStep.
func ObserveStep(m SessionMetrics, step, outcome string, d time.Duration) {
	if m != nil {
		m.ObserveStep(step, outcome, d)
	}
}
