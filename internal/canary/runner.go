// Package canary runs a probe as a named, timed step and reports on it.
package canary

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hazz-dev/urlcanary/internal/probe"
)

// DefaultStep is the step name used when none is configured.
const DefaultStep = "check_lambda_function_url"

// Prober executes a single probe.
type Prober interface {
	Execute(ctx context.Context, r probe.Request) probe.Outcome
}

// Observer receives every step result, e.g. a metrics collector.
type Observer interface {
	Observe(step string, o probe.Outcome, elapsed time.Duration)
}

// Report is the result of one step.
type Report struct {
	Step      string
	Target    string
	Outcome   probe.Outcome
	StartedAt time.Time
	Elapsed   time.Duration
}

// Passed reports whether the step's probe succeeded.
func (r Report) Passed() bool {
	return r.Outcome.OK()
}

// Err returns the probe failure, or nil when the step passed.
func (r Report) Err() error {
	return r.Outcome.Err()
}

// Runner wraps a Prober in a step.
type Runner struct {
	prober    Prober
	step      string
	logger    *zap.Logger
	observers []Observer
}

// Option configures a Runner.
type Option func(*Runner)

// WithStep sets the step name.
func WithStep(name string) Option {
	return func(r *Runner) {
		if name != "" {
			r.step = name
		}
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithObserver adds an observer notified after every step.
func WithObserver(o Observer) Option {
	return func(r *Runner) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

// New returns a Runner for p.
func New(p Prober, opts ...Option) *Runner {
	r := &Runner{
		prober: p,
		step:   DefaultStep,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Step returns the runner's step name.
func (r *Runner) Step() string {
	return r.step
}

// Run executes one probe of req and returns its report. Run is safe for
// concurrent use if the Prober and observers are.
func (r *Runner) Run(ctx context.Context, req probe.Request) Report {
	log := r.logger.With(zap.String("step", r.step))
	log.Info("checking target",
		zap.String("url", req.URL),
		zap.ByteString("payload", req.Body),
	)

	start := time.Now()
	out := r.prober.Execute(ctx, req)
	elapsed := time.Since(start)

	if out.StatusCode != 0 {
		log.Info("received status code", zap.Int("status_code", out.StatusCode))
	}
	if out.OK() {
		log.Info("step passed")
	} else {
		log.Warn("step failed",
			zap.String("kind", string(out.Kind)),
			zap.String("message", out.Message),
		)
	}
	log.Info("check completed",
		zap.Int64("elapsed_ms", elapsed.Milliseconds()),
		zap.Duration("elapsed", elapsed),
	)

	for _, o := range r.observers {
		o.Observe(r.step, out, elapsed)
	}

	return Report{
		Step:      r.step,
		Target:    req.URL,
		Outcome:   out,
		StartedAt: start,
		Elapsed:   elapsed,
	}
}
