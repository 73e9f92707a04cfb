package cairn

import (
	"log/slog"
	"os"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cairn-forensics/cairn/collector"
	"github.com/cairn-forensics/cairn/component"
	"github.com/cairn-forensics/cairn/entity"
	"github.com/cairn-forensics/cairn/identity"
)

// Engine holds the component definitions and collectors shared by every
// session. An Engine is immutable configuration plus registries; the mutable
// run state lives in sessions.
//
// Example:
//
//	engine, err := cairn.New(
//	    cairn.WithLogger(logger),
//	    cairn.WithCollectors(processes, handles, sockets),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	session := engine.NewSession()
//	defer session.Close()
type Engine struct {
	log         *slog.Logger
	tracer      trace.Tracer
	meter       metric.Meter
	components  *component.Registry
	collectors  *collector.Registry
	policy      entity.MergePolicy
	concurrency int
}

// New creates an Engine. The standard component definitions are available
// unless WithComponentRegistry replaces them.
func New(opts ...Option) (*Engine, error) {
	cfg := &engineConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	if cfg.components == nil {
		cfg.components = component.NewStandardRegistry()
	}

	for _, path := range cfg.componentFiles {
		defs, err := component.LoadDefinitions(path)
		if err != nil {
			return nil, NewConfigurationError("New", err)
		}
		for _, def := range defs {
			if err := cfg.components.Register(def); err != nil {
				return nil, NewConfigurationError("New", err)
			}
		}
	}

	e := &Engine{
		log:         cfg.logger,
		tracer:      cfg.tracer,
		meter:       cfg.meter,
		components:  cfg.components,
		collectors:  collector.NewRegistry(),
		policy:      cfg.policy,
		concurrency: cfg.concurrency,
	}
	for _, c := range cfg.collectors {
		if err := e.Register(c); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Register adds a collector to the engine. The collector's output and input
// component types must exist in the component registry.
func (e *Engine) Register(c collector.Collector) error {
	desc := c.Descriptor()
	if err := desc.Validate(); err != nil {
		return NewValidationError("Engine.Register", err)
	}
	for _, out := range desc.ParsedOutputs() {
		if !e.components.Has(out.Component) {
			return NewValidationError("Engine.Register",
				component.ErrNotRegistered).WithContext(map[string]any{
				"collector": desc.Name,
				"component": out.Component,
			})
		}
	}
	if err := e.collectors.Register(c); err != nil {
		return NewValidationError("Engine.Register", err)
	}
	return nil
}

// Components returns the engine's component registry.
func (e *Engine) Components() *component.Registry { return e.components }

// Collectors returns the engine's collector registry.
func (e *Engine) Collectors() *collector.Registry { return e.collectors }

// NewSession creates an empty session with fresh identity and entity
// stores.
func (e *Engine) NewSession() *Session {
	id := uuid.NewString()
	return &Session{
		id:       id,
		engine:   e,
		log:      e.log.With("session", id),
		ids:      identity.NewStore(),
		entities: entity.NewStore(e.policy),
	}
}
