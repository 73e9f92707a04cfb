package cairn

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cairn-forensics/cairn/collector"
	"github.com/cairn-forensics/cairn/component"
	"github.com/cairn-forensics/cairn/entity"
)

// Option configures the Engine.
type Option func(*engineConfig)

// engineConfig holds configuration for the Engine instance.
type engineConfig struct {
	logger         *slog.Logger
	tracer         trace.Tracer
	meter          metric.Meter
	components     *component.Registry
	componentFiles []string
	collectors     []collector.Collector
	policy         entity.MergePolicy
	concurrency    int
}

// WithLogger sets a custom logger for the engine.
// If not provided, a default JSON logger is created.
func WithLogger(logger *slog.Logger) Option {
	return func(c *engineConfig) {
		c.logger = logger
	}
}

// WithTracer sets an OpenTelemetry tracer. Each collector invocation then
// runs inside its own span.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *engineConfig) {
		c.tracer = tracer
	}
}

// WithMeter sets an OpenTelemetry meter for merged/skipped record counters.
func WithMeter(meter metric.Meter) Option {
	return func(c *engineConfig) {
		c.meter = meter
	}
}

// WithComponentRegistry replaces the standard component registry. Use this
// when the built-in component definitions should not be available.
func WithComponentRegistry(reg *component.Registry) Option {
	return func(c *engineConfig) {
		c.components = reg
	}
}

// WithComponentFile loads additional component definitions from a YAML file
// on top of the registry's built-ins.
func WithComponentFile(path string) Option {
	return func(c *engineConfig) {
		c.componentFiles = append(c.componentFiles, path)
	}
}

// WithCollectors registers collectors at construction time. Collectors can
// also be registered later through Engine.Register.
func WithCollectors(cs ...collector.Collector) Option {
	return func(c *engineConfig) {
		c.collectors = append(c.collectors, cs...)
	}
}

// WithMergePolicy sets how sessions resolve disagreeing field values.
// The default is entity.LastWriteWins.
func WithMergePolicy(policy entity.MergePolicy) Option {
	return func(c *engineConfig) {
		c.policy = policy
	}
}

// WithConcurrency bounds how many collectors of the same scheduling rank
// run at once. Values below one mean unbounded.
func WithConcurrency(n int) Option {
	return func(c *engineConfig) {
		c.concurrency = n
	}
}
