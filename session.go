package cairn

import (
	"context"
	"iter"
	"log/slog"
	"sync"

	"github.com/cairn-forensics/cairn/collector"
	"github.com/cairn-forensics/cairn/component"
	"github.com/cairn-forensics/cairn/entity"
	"github.com/cairn-forensics/cairn/identity"
	"github.com/cairn-forensics/cairn/plan"
	"github.com/cairn-forensics/cairn/query"
	"github.com/cairn-forensics/cairn/runner"
	"github.com/cairn-forensics/cairn/snapshot"
)

// Session is one analysis run: an identity store, an entity store, and the
// collection state built up against a single memory image. Entities only
// accumulate; nothing is removed from a session until it is closed.
type Session struct {
	id     string
	engine *Engine
	log    *slog.Logger

	ids      *identity.Store
	entities *entity.Store

	mu     sync.Mutex
	closed bool
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// Identify resolves a canonical key to the session's identity for it,
// minting one on first sight. The same key always yields the same identity
// within a session.
func (s *Session) Identify(key identity.Key) (*identity.Identity, error) {
	if err := s.open(); err != nil {
		return nil, err
	}
	return s.ids.Identify(key)
}

// Alias binds an additional canonical key to an existing identity.
func (s *Session) Alias(id *identity.Identity, key identity.Key) error {
	if err := s.open(); err != nil {
		return err
	}
	return s.ids.Alias(id, key)
}

// Merge attaches a component instance to the identified entity directly,
// outside any collector run.
func (s *Session) Merge(id *identity.Identity, inst *component.Instance) error {
	if err := s.open(); err != nil {
		return err
	}
	return s.entities.Merge(id, inst)
}

// Result is what a Collect call produced.
type Result struct {
	// Entities are the collected entities carrying at least one of the
	// requested component types, in discovery order.
	Entities []*entity.Entity

	// Incomplete is set when the run was cancelled before all collectors
	// settled. Entities is empty in that case.
	Incomplete bool

	// Report details what every scheduled collector did.
	Report runner.Report
}

// Collect plans and runs the collectors needed to produce the requested
// component types, then returns the entities that carry them. Asking for
// several types returns the union, deduplicated by identity.
//
// Cancellation stops the run between collector invocations and yields an
// incomplete result rather than an error.
func (s *Session) Collect(ctx context.Context, types ...string) (*Result, error) {
	if err := s.open(); err != nil {
		return nil, err
	}
	if len(types) == 0 {
		return nil, NewValidationError("Session.Collect", nil).WithContext(map[string]any{
			"reason": "no component types requested",
		})
	}

	p, err := plan.Build(s.engine.collectors, types)
	if err != nil {
		return nil, NewPlanningError("Session.Collect", err)
	}
	s.log.Debug("collection planned", "requested", types, "steps", len(p.Steps))

	run := runner.New(
		runner.WithLogger(s.log),
		runner.WithTracer(s.engine.tracer),
		runner.WithMeter(s.engine.meter),
		runner.WithConcurrency(s.engine.concurrency),
		runner.WithHint(collector.Hint{Components: types}),
	)
	report := run.Run(ctx, p, s.ids, s.entities)

	res := &Result{Incomplete: report.Incomplete, Report: report}
	if report.Incomplete {
		s.log.Warn("collection incomplete", "requested", types)
		return res, nil
	}

	for e := range s.entities.All() {
		for _, t := range types {
			if e.Has(t) {
				res.Entities = append(res.Entities, e)
				break
			}
		}
	}
	s.log.Info("collection done",
		"requested", types,
		"entities", len(res.Entities),
		"merged", report.Merged,
		"skipped", report.Skipped)
	return res, nil
}

// Select returns the session's entities matching the query, lazily. The
// sequence reflects the store at each iteration, so it can be re-walked
// after further collection.
func (s *Session) Select(src string) (iter.Seq[*entity.Entity], error) {
	if err := s.open(); err != nil {
		return nil, err
	}
	seq, err := query.Select(s.entities, src)
	if err != nil {
		return nil, NewQueryError("Session.Select", err)
	}
	return seq, nil
}

// Entities returns every entity in the session, in discovery order.
func (s *Session) Entities() iter.Seq[*entity.Entity] {
	return s.entities.All()
}

// Entity returns the entity behind an identity, if it has any components.
func (s *Session) Entity(id *identity.Identity) (*entity.Entity, bool) {
	return s.entities.Get(id)
}

// Len returns the number of entities in the session.
func (s *Session) Len() int { return s.entities.Len() }

// Snapshot captures the session's entity graph for archival.
func (s *Session) Snapshot() *snapshot.Snapshot {
	return snapshot.Take(s.id, s.entities)
}

// Restore merges an archived entity graph into the session.
func (s *Session) Restore(snap *snapshot.Snapshot) error {
	if err := s.open(); err != nil {
		return err
	}
	if err := snapshot.Restore(snap, s.engine.components, s.ids, s.entities); err != nil {
		return NewSessionError("Session.Restore", err)
	}
	return nil
}

// Close marks the session finished. Further mutating calls fail with
// ErrSessionClosed; the collected entities stay readable.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Session) open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return NewSessionError("Session", ErrSessionClosed)
	}
	return nil
}
