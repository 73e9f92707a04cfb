package runner

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cairn-forensics/cairn/collector"
	"github.com/cairn-forensics/cairn/component"
	"github.com/cairn-forensics/cairn/entity"
	"github.com/cairn-forensics/cairn/identity"
	"github.com/cairn-forensics/cairn/objmodel"
	"github.com/cairn-forensics/cairn/plan"
)

var defs = component.NewStandardRegistry()

func mustDef(t *testing.T, name string) component.Definition {
	t.Helper()
	def, err := defs.Lookup(name)
	require.NoError(t, err)
	return def
}

func record(t *testing.T, key identity.Key, comp string, fields map[string]any) collector.Record {
	t.Helper()
	inst := component.New(mustDef(t, comp))
	for f, v := range fields {
		inst.Set(f, v)
	}
	require.NoError(t, inst.Err())
	return collector.Record{Key: key, Components: []*component.Instance{inst}}
}

func yieldAll(records []collector.Record) iter.Seq2[collector.Record, error] {
	return func(yield func(collector.Record, error) bool) {
		for _, r := range records {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func buildPlan(t *testing.T, reg *collector.Registry, requested ...string) *plan.Plan {
	t.Helper()
	p, err := plan.Build(reg, requested)
	require.NoError(t, err)
	return p
}

func TestRunOncePipeline(t *testing.T) {
	reg := collector.NewRegistry()

	require.NoError(t, reg.Register(collector.New(collector.Descriptor{
		Name:    "processes",
		Outputs: []string{"Process"},
	}, func(ctx context.Context, r collector.Resolver, hint collector.Hint, inputs map[string][]*entity.Entity) iter.Seq2[collector.Record, error] {
		return yieldAll([]collector.Record{
			record(t, identity.Key{"Process/pid": 1}, "Process", map[string]any{"pid": 1, "command": "launchd"}),
			record(t, identity.Key{"Process/pid": 2}, "Process", map[string]any{"pid": 2, "command": "mds"}),
		})
	})))

	var gotInputs int
	require.NoError(t, reg.Register(collector.New(collector.Descriptor{
		Name:        "users",
		Outputs:     []string{"User"},
		CollectArgs: map[string]string{"procs": "has component Process"},
	}, func(ctx context.Context, r collector.Resolver, hint collector.Hint, inputs map[string][]*entity.Entity) iter.Seq2[collector.Record, error] {
		gotInputs = len(inputs["procs"])
		return yieldAll([]collector.Record{
			record(t, identity.Key{"User/uid": 0}, "User", map[string]any{"uid": 0, "username": "root"}),
		})
	})))

	ids := identity.NewStore()
	store := entity.NewStore("")
	rep := New().Run(context.Background(), buildPlan(t, reg, "User"), ids, store)

	assert.False(t, rep.Incomplete)
	assert.Equal(t, 3, rep.Merged)
	assert.Equal(t, 0, rep.Skipped)
	assert.Equal(t, 2, gotInputs, "consumer saw both upstream entities")
	assert.Equal(t, 3, store.Len())

	procs, ok := rep.Step("processes")
	require.True(t, ok)
	assert.Equal(t, Completed, procs.State)
	assert.Equal(t, 1, procs.Invocations)
}

func TestRunIncrementalDeltas(t *testing.T) {
	reg := collector.NewRegistry()

	// First wave of processes, then a second wave triggered by the first.
	require.NoError(t, reg.Register(collector.New(collector.Descriptor{
		Name:    "seed",
		Outputs: []string{"Process"},
	}, func(ctx context.Context, r collector.Resolver, hint collector.Hint, inputs map[string][]*entity.Entity) iter.Seq2[collector.Record, error] {
		return yieldAll([]collector.Record{
			record(t, identity.Key{"Process/pid": 1}, "Process", map[string]any{"pid": 1}),
		})
	})))

	var waves [][]int
	require.NoError(t, reg.Register(collector.New(collector.Descriptor{
		Name:        "children",
		Outputs:     []string{"Process"},
		CollectArgs: map[string]string{"parents": "has component Process"},
		Trigger:     collector.Incremental,
	}, func(ctx context.Context, r collector.Resolver, hint collector.Hint, inputs map[string][]*entity.Entity) iter.Seq2[collector.Record, error] {
		var pids []int
		var out []collector.Record
		for _, e := range inputs["parents"] {
			pid, _ := e.Attr("Process/pid")
			p := int(pid.(int64))
			pids = append(pids, p)
			if p < 4 {
				out = append(out, record(t, identity.Key{"Process/pid": p + 1}, "Process", map[string]any{"pid": p + 1}))
			}
		}
		waves = append(waves, pids)
		return yieldAll(out)
	})))

	ids := identity.NewStore()
	store := entity.NewStore("")
	rep := New().Run(context.Background(), buildPlan(t, reg, "Process"), ids, store)

	assert.False(t, rep.Incomplete)
	assert.Equal(t, 4, store.Len(), "pids 1 through 4")

	// Each invocation saw only the newly appeared processes.
	require.Len(t, waves, 4)
	assert.Equal(t, []int{1}, waves[0])
	assert.Equal(t, []int{2}, waves[1])
	assert.Equal(t, []int{3}, waves[2])
	assert.Equal(t, []int{4}, waves[3])

	step, ok := rep.Step("children")
	require.True(t, ok)
	assert.Equal(t, Quiesced, step.State)
	assert.Equal(t, 4, step.Invocations)
}

func TestRunFixedPointSeesCompleteInput(t *testing.T) {
	reg := collector.NewRegistry()

	require.NoError(t, reg.Register(collector.New(collector.Descriptor{
		Name:    "seed",
		Outputs: []string{"Process"},
	}, func(ctx context.Context, r collector.Resolver, hint collector.Hint, inputs map[string][]*entity.Entity) iter.Seq2[collector.Record, error] {
		return yieldAll([]collector.Record{
			record(t, identity.Key{"Process/pid": 1}, "Process", map[string]any{"pid": 1}),
			record(t, identity.Key{"Process/pid": 2}, "Process", map[string]any{"pid": 2}),
		})
	})))

	var seen []int
	var invocations int
	require.NoError(t, reg.Register(collector.New(collector.Descriptor{
		Name:        "events",
		Outputs:     []string{"Event"},
		CollectArgs: map[string]string{"procs": "has component Process"},
		Trigger:     collector.FixedPoint,
	}, func(ctx context.Context, r collector.Resolver, hint collector.Hint, inputs map[string][]*entity.Entity) iter.Seq2[collector.Record, error] {
		invocations++
		for _, e := range inputs["procs"] {
			pid, _ := e.Attr("Process/pid")
			seen = append(seen, int(pid.(int64)))
		}
		return yieldAll(nil)
	})))

	ids := identity.NewStore()
	store := entity.NewStore("")
	rep := New().Run(context.Background(), buildPlan(t, reg, "Event"), ids, store)

	assert.False(t, rep.Incomplete)
	assert.Equal(t, 1, invocations, "complete-input collectors run once")
	assert.Equal(t, []int{1, 2}, seen)

	step, ok := rep.Step("events")
	require.True(t, ok)
	assert.Equal(t, Completed, step.State)
}

func TestRunSkipsBadRecords(t *testing.T) {
	reg := collector.NewRegistry()

	require.NoError(t, reg.Register(collector.New(collector.Descriptor{
		Name:    "flaky",
		Outputs: []string{"Process"},
	}, func(ctx context.Context, r collector.Resolver, hint collector.Hint, inputs map[string][]*entity.Entity) iter.Seq2[collector.Record, error] {
		return func(yield func(collector.Record, error) bool) {
			for pid := 1; pid <= 10; pid++ {
				if pid == 7 {
					if !yield(collector.Record{}, errors.New("torn page")) {
						return
					}
					continue
				}
				if !yield(record(t, identity.Key{"Process/pid": pid}, "Process", map[string]any{"pid": pid}), nil) {
					return
				}
			}
		}
	})))

	ids := identity.NewStore()
	store := entity.NewStore("")
	rep := New().Run(context.Background(), buildPlan(t, reg, "Process"), ids, store)

	assert.False(t, rep.Incomplete)
	assert.Equal(t, 9, rep.Merged)
	assert.Equal(t, 1, rep.Skipped)
	assert.Equal(t, 9, store.Len())

	step, ok := rep.Step("flaky")
	require.True(t, ok)
	assert.Equal(t, CompletedWithSkips, step.State)
}

func TestRunSurvivesPanic(t *testing.T) {
	reg := collector.NewRegistry()

	require.NoError(t, reg.Register(collector.New(collector.Descriptor{
		Name:    "broken",
		Outputs: []string{"Process"},
	}, func(ctx context.Context, r collector.Resolver, hint collector.Hint, inputs map[string][]*entity.Entity) iter.Seq2[collector.Record, error] {
		return func(yield func(collector.Record, error) bool) {
			yield(record(t, identity.Key{"Process/pid": 1}, "Process", map[string]any{"pid": 1}), nil)
			panic("bad pointer chase")
		}
	})))
	require.NoError(t, reg.Register(collector.New(collector.Descriptor{
		Name:    "steady",
		Outputs: []string{"Process"},
	}, func(ctx context.Context, r collector.Resolver, hint collector.Hint, inputs map[string][]*entity.Entity) iter.Seq2[collector.Record, error] {
		return yieldAll([]collector.Record{
			record(t, identity.Key{"Process/pid": 2}, "Process", map[string]any{"pid": 2}),
		})
	})))

	ids := identity.NewStore()
	store := entity.NewStore("")
	rep := New().Run(context.Background(), buildPlan(t, reg, "Process"), ids, store)

	assert.False(t, rep.Incomplete)
	assert.Equal(t, 2, store.Len(), "records before the panic and the healthy collector survive")

	step, ok := rep.Step("broken")
	require.True(t, ok)
	assert.Equal(t, CompletedWithSkips, step.State)
}

func TestRunAbortsOnIdentityConflict(t *testing.T) {
	reg := collector.NewRegistry()

	require.NoError(t, reg.Register(collector.New(collector.Descriptor{
		Name:    "confused",
		Outputs: []string{"Process"},
	}, func(ctx context.Context, r collector.Resolver, hint collector.Hint, inputs map[string][]*entity.Entity) iter.Seq2[collector.Record, error] {
		return func(yield func(collector.Record, error) bool) {
			a, err := r.Identify(identity.Key{"Process/pid": 1})
			if err != nil {
				yield(collector.Record{}, err)
				return
			}
			b, err := r.Identify(identity.Key{"Process/pid": 2})
			if err != nil {
				yield(collector.Record{}, err)
				return
			}
			// Both claims cannot hold; the second alias conflicts.
			_ = r.Alias(a, identity.Key{"Socket/address": "/var/run/mDNSResponder"})
			_ = r.Alias(b, identity.Key{"Socket/address": "/var/run/mDNSResponder"})

			if !yield(record(t, identity.Key{"Process/pid": 3}, "Process", map[string]any{"pid": 3}), nil) {
				return
			}
			yield(record(t, identity.Key{"Process/pid": 4}, "Process", map[string]any{"pid": 4}), nil)
		}
	})))

	ids := identity.NewStore()
	store := entity.NewStore("")
	rep := New().Run(context.Background(), buildPlan(t, reg, "Process"), ids, store)

	assert.False(t, rep.Incomplete)
	assert.Equal(t, 0, store.Len(), "invocation aborted before its records merged")

	step, ok := rep.Step("confused")
	require.True(t, ok)
	assert.Equal(t, CompletedWithSkips, step.State)
	assert.GreaterOrEqual(t, step.Skipped, 1)
}

func TestRunCancellation(t *testing.T) {
	reg := collector.NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, reg.Register(collector.New(collector.Descriptor{
		Name:    "seed",
		Outputs: []string{"Process"},
	}, func(ctx context.Context, r collector.Resolver, hint collector.Hint, inputs map[string][]*entity.Entity) iter.Seq2[collector.Record, error] {
		cancel()
		return yieldAll([]collector.Record{
			record(t, identity.Key{"Process/pid": 1}, "Process", map[string]any{"pid": 1}),
		})
	})))
	require.NoError(t, reg.Register(collector.New(collector.Descriptor{
		Name:        "children",
		Outputs:     []string{"Process"},
		CollectArgs: map[string]string{"parents": "has component Process"},
		Trigger:     collector.Incremental,
	}, func(ctx context.Context, r collector.Resolver, hint collector.Hint, inputs map[string][]*entity.Entity) iter.Seq2[collector.Record, error] {
		return yieldAll(nil)
	})))

	rep := New().Run(ctx, buildPlan(t, reg, "Process"), identity.NewStore(), entity.NewStore(""))
	assert.True(t, rep.Incomplete)
}

func TestRunAbortsWhenSpaceUnavailable(t *testing.T) {
	reg := collector.NewRegistry()
	space := objmodel.NewSpace()
	space.Fail(errors.New("image truncated"))

	var laterRan bool
	require.NoError(t, reg.Register(collector.New(collector.Descriptor{
		Name:    "processes",
		Outputs: []string{"Process"},
		Cost:    collector.Cheap,
	}, func(ctx context.Context, r collector.Resolver, hint collector.Hint, inputs map[string][]*entity.Entity) iter.Seq2[collector.Record, error] {
		return func(yield func(collector.Record, error) bool) {
			if err := space.Available(); err != nil {
				yield(collector.Record{}, err)
				return
			}
			yield(record(t, identity.Key{"Process/pid": 1}, "Process", map[string]any{"pid": 1}), nil)
		}
	})))
	require.NoError(t, reg.Register(collector.New(collector.Descriptor{
		Name:        "children",
		Outputs:     []string{"Process"},
		CollectArgs: map[string]string{"parents": "has component Process"},
		Cost:        collector.High,
	}, func(ctx context.Context, r collector.Resolver, hint collector.Hint, inputs map[string][]*entity.Entity) iter.Seq2[collector.Record, error] {
		laterRan = true
		return yieldAll(nil)
	})))

	rep := New().Run(context.Background(), buildPlan(t, reg, "Process"), identity.NewStore(), entity.NewStore(""))

	assert.True(t, rep.Incomplete, "an unreadable image stops the whole run")
	assert.False(t, laterRan)
}

func TestStateString(t *testing.T) {
	for state, want := range map[State]string{
		Pending:            "pending",
		Running:            "running",
		Completed:          "completed",
		CompletedWithSkips: "completed-with-skips",
		Quiesced:           "quiesced",
		State(99):          "state(99)",
	} {
		assert.Equal(t, want, fmt.Sprint(state))
	}
}
