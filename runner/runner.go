package runner

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cairn-forensics/cairn/collector"
	"github.com/cairn-forensics/cairn/identity"
)

// State is a step's position in its lifecycle.
type State int

const (
	// Pending means the step has not been invoked yet.
	Pending State = iota

	// Running means an invocation is in flight.
	Running

	// Completed means the step finished cleanly and will not run again.
	Completed

	// CompletedWithSkips means the step finished but some of its records or
	// invocations were dropped.
	CompletedWithSkips

	// Quiesced means an incremental step stopped because no new input
	// appeared.
	Quiesced
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case CompletedWithSkips:
		return "completed-with-skips"
	case Quiesced:
		return "quiesced"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StepReport summarizes one step after the run.
type StepReport struct {
	Name        string
	State       State
	Invocations int
	Merged      int
	Skipped     int
}

// Report summarizes a run.
type Report struct {
	// Incomplete is set when the run stopped on cancellation before every
	// step settled.
	Incomplete bool

	// Passes counts scheduling passes, including the final empty one.
	Passes int

	Merged  int
	Skipped int

	Steps []StepReport
}

// Step looks up a step report by collector name.
func (r *Report) Step(name string) (StepReport, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepReport{}, false
}

// Runner drives collector schedules. A Runner is immutable after New and
// safe to share across sessions.
type Runner struct {
	log         *slog.Logger
	tracer      trace.Tracer
	concurrency int
	hint        collector.Hint

	merged  metric.Int64Counter
	skipped metric.Int64Counter
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger. The default discards nothing but logs at the
// default slog level.
func WithLogger(log *slog.Logger) Option {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// WithTracer enables a span per collector invocation.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) { r.tracer = t }
}

// WithMeter enables merged/skipped record counters.
func WithMeter(m metric.Meter) Option {
	return func(r *Runner) {
		if m == nil {
			return
		}
		var err error
		r.merged, err = m.Int64Counter("collect.records.merged",
			metric.WithDescription("Entity component records merged into the store"),
			metric.WithUnit("1"))
		if err != nil {
			r.log.Warn("merged counter unavailable", "error", err)
		}
		r.skipped, err = m.Int64Counter("collect.records.skipped",
			metric.WithDescription("Collector records dropped by defensive handling"),
			metric.WithUnit("1"))
		if err != nil {
			r.log.Warn("skipped counter unavailable", "error", err)
		}
	}
}

// WithConcurrency bounds how many same-rank steps run at once. Values below
// one mean unbounded.
func WithConcurrency(n int) Option {
	return func(r *Runner) { r.concurrency = n }
}

// WithHint passes a collection hint to every invoked collector.
func WithHint(h collector.Hint) Option {
	return func(r *Runner) { r.hint = h }
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{log: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// conflictResolver wraps the session resolver for one invocation. The first
// alias conflict latches and aborts the invocation before any further
// record merges; the rest of the run continues, with the step marked as
// having skipped work.
type conflictResolver struct {
	inner    collector.Resolver
	conflict error
}

func (c *conflictResolver) Identify(key identity.Key) (*identity.Identity, error) {
	return c.inner.Identify(key)
}

func (c *conflictResolver) Alias(id *identity.Identity, key identity.Key) error {
	err := c.inner.Alias(id, key)
	if err != nil && c.conflict == nil {
		c.conflict = err
	}
	return err
}
