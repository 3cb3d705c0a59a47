package session

import (
	"context"
	"strings"
	"time"

	"github.com/marmos91/labgate/internal/logger"
	"github.com/marmos91/labgate/internal/telemetry"
	"github.com/marmos91/labgate/pkg/auth"
	"github.com/marmos91/labgate/pkg/metrics"
)

// StepReport is the outcome of one step.
type StepReport struct {
	Name     string
	Outcome  string
	Err      error
	Duration time.Duration
}

// Report summarises a provisioning run.
type Report struct {
	Steps []StepReport
}

// Failed returns the names of the steps that did not complete.
func (r *Report) Failed() []string {
	var out []string
	for _, s := range r.Steps {
		if s.Err != nil {
			out = append(out, s.Name)
		}
	}
	return out
}

// OK reports whether every step completed.
func (r *Report) OK() bool {
	return len(r.Failed()) == 0
}

// Runner runs named steps in the configured order.
type Runner struct {
	steps   map[string]Step
	metrics metrics.SessionMetrics
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMetrics records step executions in m. A nil m disables metrics.
func WithMetrics(m metrics.SessionMetrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// NewRunner registers steps under their names. Registering two steps with
// the same name is a configuration error.
func NewRunner(steps []Step, opts ...RunnerOption) (*Runner, error) {
	r := &Runner{steps: make(map[string]Step, len(steps))}
	for _, s := range steps {
		key := strings.ToLower(s.Name())
		if _, dup := r.steps[key]; dup {
			return nil, auth.Configuration("session step %s registered twice", s.Name())
		}
		r.steps[key] = s
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Validate checks that every name refers to a registered step.
func (r *Runner) Validate(names []string) error {
	for _, n := range names {
		if _, ok := r.steps[strings.ToLower(n)]; !ok {
			return auth.Configuration("unknown session step %q", n)
		}
	}
	return nil
}

// Run executes the named steps for res in order.
//
// Every step's strategy requirement is checked before anything runs; a
// violation is a configuration error and nothing is provisioned. A step
// that fails is logged and recorded in the report and the remaining steps
// still run. The returned error is nil unless the run could not start.
func (r *Runner) Run(ctx context.Context, res *auth.Result, names []string) (*Report, error) {
	if res == nil || !res.Success || res.Info == nil {
		return nil, auth.Configuration("session provisioning requires a successful login")
	}
	if err := r.Validate(names); err != nil {
		return nil, err
	}

	plan := make([]Step, 0, len(names))
	for _, n := range names {
		s := r.steps[strings.ToLower(n)]
		if err := checkPrecondition(s.Name(), res.Type); err != nil {
			return nil, err
		}
		plan = append(plan, s)
	}

	report := &Report{Steps: make([]StepReport, 0, len(plan))}
	for _, s := range plan {
		report.Steps = append(report.Steps, r.runStep(ctx, s, res))
	}
	return report, nil
}

func (r *Runner) runStep(ctx context.Context, s Step, res *auth.Result) StepReport {
	ctx, span := telemetry.StartStepSpan(ctx, s.Name())
	defer span.End()

	start := time.Now()
	err := s.Setup(ctx, res)
	elapsed := time.Since(start)

	rep := StepReport{Name: s.Name(), Outcome: metrics.OutcomeSuccess, Duration: elapsed}
	if err != nil {
		rep.Outcome = metrics.OutcomeError
		rep.Err = stepError(s.Name(), err)
		telemetry.RecordError(ctx, err)
		logger.ErrorCtx(ctx, "Session step failed",
			logger.Step(s.Name()),
			logger.Username(res.Info.Username()),
			logger.DurationMs(float64(elapsed.Microseconds())/1000),
			logger.Err(err))
	} else {
		logger.DebugCtx(ctx, "Session step completed",
			logger.Step(s.Name()),
			logger.Username(res.Info.Username()),
			logger.DurationMs(float64(elapsed.Microseconds())/1000))
	}
	metrics.ObserveStep(r.metrics, s.Name(), rep.Outcome, elapsed)
	return rep
}
