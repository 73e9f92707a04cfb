package runner

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/cairn-forensics/cairn/collector"
	"github.com/cairn-forensics/cairn/entity"
	"github.com/cairn-forensics/cairn/identity"
	"github.com/cairn-forensics/cairn/objmodel"
	"github.com/cairn-forensics/cairn/plan"
)

type stepState struct {
	step  *plan.Step
	state State

	invocations int
	merged      int
	skipped     int

	ran  bool
	seen map[string]map[string]bool // arg name -> delivered identity tokens
}

// Run executes the plan against the session stores and reports what
// happened. Cancellation stops the run between invocations; the report is
// then marked Incomplete. Run itself never returns an error: collector
// failures are defensive skips, visible in the report counts.
func (r *Runner) Run(ctx context.Context, p *plan.Plan, ids *identity.Store, store *entity.Store) Report {
	states := make([]*stepState, 0, len(p.Steps))
	for _, step := range p.Steps {
		st := &stepState{step: step, seen: make(map[string]map[string]bool)}
		for arg := range step.Args {
			st.seen[arg] = make(map[string]bool)
		}
		states = append(states, st)
	}

	report := Report{}
	for {
		if ctx.Err() != nil {
			report.Incomplete = true
			break
		}
		report.Passes++

		ran, err := r.pass(ctx, states, ids, store, false)
		if err != nil {
			r.log.Error("address space unavailable, run aborted", "error", err)
			report.Incomplete = true
			break
		}
		if ctx.Err() != nil {
			report.Incomplete = true
			break
		}
		if ran {
			continue
		}

		// Everything else settled; fixed-point steps get their one shot.
		ran, err = r.pass(ctx, states, ids, store, true)
		if err != nil {
			r.log.Error("address space unavailable, run aborted", "error", err)
			report.Incomplete = true
			break
		}
		if !ran {
			break
		}
	}

	for _, st := range states {
		st.finalize(report.Incomplete)
		report.Merged += st.merged
		report.Skipped += st.skipped
		report.Steps = append(report.Steps, StepReport{
			Name:        st.step.Name(),
			State:       st.state,
			Invocations: st.invocations,
			Merged:      st.merged,
			Skipped:     st.skipped,
		})
	}
	return report
}

// pass walks the schedule rank by rank, invoking every runnable step. Steps
// sharing a rank run concurrently. Returns whether anything ran; an
// unreadable address space surfaces as the error and stops the run.
func (r *Runner) pass(ctx context.Context, states []*stepState, ids *identity.Store, store *entity.Store, fixedPoint bool) (bool, error) {
	ran := false
	for i := 0; i < len(states); {
		j := i
		for j < len(states) && states[j].step.Rank == states[i].step.Rank {
			j++
		}

		var group []*stepState
		inputs := make(map[*stepState]map[string][]*entity.Entity)
		for _, st := range states[i:j] {
			if ctx.Err() != nil {
				return ran, nil
			}
			in, runnable := st.next(store, fixedPoint)
			if runnable {
				group = append(group, st)
				inputs[st] = in
			}
		}

		if len(group) > 0 {
			ran = true
			g, gctx := errgroup.WithContext(ctx)
			if r.concurrency > 0 {
				g.SetLimit(r.concurrency)
			}
			for _, st := range group {
				g.Go(func() error {
					return r.invoke(gctx, st, inputs[st], ids, store)
				})
			}
			if err := g.Wait(); err != nil {
				return ran, err
			}
		}
		i = j
	}
	return ran, nil
}

// next decides whether the step should run now and, if so, with which
// entities. Incremental steps see only entities not delivered before; the
// delivered set advances here, before the invocation.
func (st *stepState) next(store *entity.Store, fixedPoint bool) (map[string][]*entity.Entity, bool) {
	desc := st.step.Collector.Descriptor()

	if fixedPoint != (desc.Trigger == collector.FixedPoint) {
		return nil, false
	}

	switch desc.Trigger {
	case collector.Incremental:
		if len(st.step.Args) == 0 {
			if st.ran {
				return nil, false
			}
			st.ran = true
			st.state = Running
			return nil, true
		}
		in := st.deltas(store)
		fresh := false
		for _, ents := range in {
			if len(ents) > 0 {
				fresh = true
				break
			}
		}
		if !fresh {
			return nil, false
		}
		st.ran = true
		st.state = Running
		return in, true

	default: // Once, FixedPoint
		if st.ran {
			return nil, false
		}
		st.ran = true
		st.state = Running
		return st.deltas(store), true
	}
}

func (st *stepState) deltas(store *entity.Store) map[string][]*entity.Entity {
	in := make(map[string][]*entity.Entity, len(st.step.Args))
	for arg, a := range st.step.Args {
		var ents []*entity.Entity
		for e := range a.Query.Select(store) {
			token := e.Identity().Token()
			if st.seen[arg][token] {
				continue
			}
			st.seen[arg][token] = true
			ents = append(ents, e)
		}
		in[arg] = ents
	}
	return in
}

func (st *stepState) finalize(incomplete bool) {
	switch {
	case st.state == Running && st.skipped > 0:
		st.state = CompletedWithSkips
	case st.state == Running:
		if st.step.Collector.Descriptor().Trigger == collector.Incremental {
			st.state = Quiesced
		} else {
			st.state = Completed
		}
	case st.state == Pending && !incomplete:
		// Never became runnable: an incremental step with no input ever.
		st.state = Quiesced
	}
}

// invoke runs one collector invocation and folds its records into the
// store. A record-level error or merge failure skips that record; a panic
// or identity conflict aborts the rest of the invocation. The run survives
// all three. An unreadable address space is the one fatal case: no
// collector can make progress without memory, so it is returned to stop
// the whole run.
func (r *Runner) invoke(ctx context.Context, st *stepState, inputs map[string][]*entity.Entity, ids *identity.Store, store *entity.Store) (fatal error) {
	name := st.step.Name()
	st.invocations++

	var end func(err error)
	if r.tracer != nil {
		sctx, s := r.tracer.Start(ctx, "collect."+name)
		ctx = sctx
		end = func(err error) {
			s.SetAttributes(
				attribute.Int("collect.merged", st.merged),
				attribute.Int("collect.skipped", st.skipped),
			)
			if err != nil {
				s.RecordError(err)
				s.SetStatus(codes.Error, err.Error())
			}
			s.End()
		}
	} else {
		end = func(error) {}
	}

	var invokeErr error
	defer func() {
		if rec := recover(); rec != nil {
			invokeErr = fmt.Errorf("collector %s panicked: %v", name, rec)
			st.skipped++
			r.count(ctx, r.skipped, 1)
			r.log.Error("collector panicked", "collector", name, "panic", rec)
		}
		end(invokeErr)
	}()

	res := &conflictResolver{inner: ids}
	for rec, err := range st.step.Collector.Collect(ctx, res, r.hint, inputs) {
		if err != nil {
			st.skipped++
			r.count(ctx, r.skipped, 1)
			if errors.Is(err, objmodel.ErrUnavailable) {
				invokeErr = err
				fatal = err
				return
			}
			r.log.Warn("record dropped", "collector", name, "error", err)
			continue
		}
		if res.conflict != nil {
			invokeErr = res.conflict
			st.skipped++
			r.count(ctx, r.skipped, 1)
			r.log.Error("identity conflict, invocation aborted",
				"collector", name, "error", res.conflict)
			return
		}
		if r.merge(ctx, name, rec, res, store) {
			st.merged++
			r.count(ctx, r.merged, 1)
		} else {
			st.skipped++
			r.count(ctx, r.skipped, 1)
		}
	}
	if res.conflict != nil {
		invokeErr = res.conflict
		st.skipped++
		r.count(ctx, r.skipped, 1)
		r.log.Error("identity conflict", "collector", name, "error", res.conflict)
	}
	r.log.Debug("collector invocation done",
		"collector", name, "merged", st.merged, "skipped", st.skipped)
	return nil
}

func (r *Runner) merge(ctx context.Context, name string, rec collector.Record, res collector.Resolver, store *entity.Store) bool {
	id := rec.Identity
	if id == nil {
		var err error
		id, err = res.Identify(rec.Key)
		if err != nil {
			r.log.Warn("record identity unresolved", "collector", name, "error", err)
			return false
		}
	}
	ok := true
	for _, inst := range rec.Components {
		if err := store.Merge(id, inst); err != nil {
			r.log.Warn("component merge failed",
				"collector", name, "entity", id.Token(), "error", err)
			ok = false
		}
	}
	return ok
}

func (r *Runner) count(ctx context.Context, c metric.Int64Counter, n int64) {
	if c != nil {
		c.Add(ctx, n)
	}
}
