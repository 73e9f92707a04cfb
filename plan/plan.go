package plan

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cairn-forensics/cairn/collector"
	"github.com/cairn-forensics/cairn/query"
)

// ErrUnsatisfiable indicates a requested component type that no registered
// collector can produce.
var ErrUnsatisfiable = errors.New("plan: no collector produces requested type")

// Arg is one scheduled input of a step: the compiled selection query plus
// the names of the included collectors that feed it. Suppliers only drive
// ordering; at run time the query selects from the whole store.
type Arg struct {
	Query     *query.Query
	Suppliers []string
}

// Step is one scheduled collector.
type Step struct {
	Collector collector.Collector

	// Rank is the step's depth in the dependency order. All suppliers of a
	// step have a strictly smaller rank, except suppliers reached through a
	// broken cycle.
	Rank int

	// Args holds the step's inputs keyed by collect arg name.
	Args map[string]Arg

	// Deferred lists suppliers whose edge was cut to break a cycle. Their
	// output reaches this step only if it re-runs incrementally.
	Deferred []string
}

// Name returns the step's collector name.
func (s *Step) Name() string { return s.Collector.Descriptor().Name }

// Plan is an ordered collector schedule for one set of requested types.
type Plan struct {
	// Requested holds the component types the plan was built for.
	Requested []string

	// Steps is the schedule in execution order: ascending rank, then
	// ascending cost and name within a rank.
	Steps []*Step
}

// String renders the schedule one step per line, for logs.
func (p *Plan) String() string {
	var b strings.Builder
	for _, s := range p.Steps {
		fmt.Fprintf(&b, "[%d] %s (%s, %s)\n",
			s.Rank, s.Name(), s.Collector.Descriptor().Cost, s.Collector.Descriptor().Trigger)
	}
	return b.String()
}

// Build computes the schedule satisfying the requested component types.
// Every requested type must have at least one producer; a missing producer
// for a transitive input is not an error, the consumer just starts with
// whatever the store already holds for that arg.
func Build(reg *collector.Registry, requested []string) (*Plan, error) {
	steps := make(map[string]*Step)
	var demands []query.Requirement

	for _, typ := range requested {
		req := query.Requirement{Component: typ}
		producers := reg.Producers(req)
		if len(producers) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnsatisfiable, typ)
		}
		demands = append(demands, req)
	}

	// Demand-driven closure over producers.
	for len(demands) > 0 {
		req := demands[0]
		demands = demands[1:]
		for _, c := range reg.Producers(req) {
			name := c.Descriptor().Name
			if _, ok := steps[name]; ok {
				continue
			}
			step, reqs, err := newStep(c)
			if err != nil {
				return nil, err
			}
			steps[name] = step
			demands = append(demands, reqs...)
		}
	}

	wireSuppliers(steps)
	order(steps)

	plan := &Plan{Requested: append([]string(nil), requested...)}
	for _, s := range steps {
		plan.Steps = append(plan.Steps, s)
	}
	sort.Slice(plan.Steps, func(i, j int) bool {
		a, b := plan.Steps[i], plan.Steps[j]
		if a.Rank != b.Rank {
			return a.Rank < b.Rank
		}
		da, db := a.Collector.Descriptor(), b.Collector.Descriptor()
		if da.Cost != db.Cost {
			return da.Cost < db.Cost
		}
		return da.Name < db.Name
	})
	return plan, nil
}

func newStep(c collector.Collector) (*Step, []query.Requirement, error) {
	desc := c.Descriptor()
	step := &Step{Collector: c, Args: make(map[string]Arg, len(desc.CollectArgs))}
	var all []query.Requirement
	for arg, src := range desc.CollectArgs {
		q, err := query.Compile(src)
		if err != nil {
			return nil, nil, fmt.Errorf("plan: collector %q, arg %q: %w", desc.Name, arg, err)
		}
		reqs, err := query.Requirements(src)
		if err != nil {
			return nil, nil, fmt.Errorf("plan: collector %q, arg %q: %w", desc.Name, arg, err)
		}
		step.Args[arg] = Arg{Query: q}
		all = append(all, reqs...)
	}
	return step, all, nil
}

// wireSuppliers fills each step's per-arg supplier lists from the included
// steps whose outputs satisfy the arg's demands.
func wireSuppliers(steps map[string]*Step) {
	for _, consumer := range steps {
		desc := consumer.Collector.Descriptor()
		for arg, src := range desc.CollectArgs {
			reqs, err := query.Requirements(src)
			if err != nil {
				continue
			}
			a := consumer.Args[arg]
			for name, supplier := range steps {
				if name == desc.Name {
					continue
				}
				if supplies(supplier, reqs) {
					a.Suppliers = append(a.Suppliers, name)
				}
			}
			sort.Strings(a.Suppliers)
			consumer.Args[arg] = a
		}
	}
}

func supplies(s *Step, reqs []query.Requirement) bool {
	for _, out := range s.Collector.Descriptor().ParsedOutputs() {
		for _, req := range reqs {
			if out.Satisfies(req) {
				return true
			}
		}
	}
	return false
}

// order assigns ranks by Kahn's algorithm over the supplier edges. When no
// step is free the remaining steps form cycles; one is released early,
// preferring incremental collectors and then the cheapest name-first, and
// its not-yet-ranked suppliers are recorded as deferred.
func order(steps map[string]*Step) {
	ranked := make(map[string]bool, len(steps))

	pendingSuppliers := func(s *Step) []string {
		var out []string
		seen := make(map[string]bool)
		for _, a := range s.Args {
			for _, sup := range a.Suppliers {
				if !ranked[sup] && !seen[sup] && sup != s.Name() {
					seen[sup] = true
					out = append(out, sup)
				}
			}
		}
		sort.Strings(out)
		return out
	}

	rankOf := func(s *Step) int {
		r := 0
		for _, a := range s.Args {
			for _, sup := range a.Suppliers {
				if ranked[sup] && steps[sup].Rank >= r {
					r = steps[sup].Rank + 1
				}
			}
		}
		return r
	}

	for len(ranked) < len(steps) {
		var free []*Step
		for name, s := range steps {
			if !ranked[name] && len(pendingSuppliers(s)) == 0 {
				free = append(free, s)
			}
		}

		if len(free) == 0 {
			// Every remaining step waits on another remaining step.
			var candidates []*Step
			for name, s := range steps {
				if !ranked[name] {
					candidates = append(candidates, s)
				}
			}
			sort.Slice(candidates, func(i, j int) bool {
				di, dj := candidates[i].Collector.Descriptor(), candidates[j].Collector.Descriptor()
				ii := di.Trigger == collector.Incremental
				ij := dj.Trigger == collector.Incremental
				if ii != ij {
					return ii
				}
				if di.Cost != dj.Cost {
					return di.Cost < dj.Cost
				}
				return di.Name < dj.Name
			})
			release := candidates[0]
			release.Deferred = pendingSuppliers(release)
			free = append(free, release)
		}

		for _, s := range free {
			s.Rank = rankOf(s)
			ranked[s.Name()] = true
		}
	}
}
