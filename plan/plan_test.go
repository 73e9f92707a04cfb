package plan

import (
	"context"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cairn-forensics/cairn/collector"
	"github.com/cairn-forensics/cairn/entity"
)

func noop(ctx context.Context, r collector.Resolver, hint collector.Hint, inputs map[string][]*entity.Entity) iter.Seq2[collector.Record, error] {
	return func(yield func(collector.Record, error) bool) {}
}

func register(t *testing.T, reg *collector.Registry, desc collector.Descriptor) {
	t.Helper()
	require.NoError(t, reg.Register(collector.New(desc, noop)))
}

func names(p *Plan) []string {
	var out []string
	for _, s := range p.Steps {
		out = append(out, s.Name())
	}
	return out
}

func TestBuildOrdersSuppliersFirst(t *testing.T) {
	reg := collector.NewRegistry()
	register(t, reg, collector.Descriptor{
		Name:    "handles",
		Outputs: []string{"Handle", "MemoryObject/type=fileproc"},
	})
	register(t, reg, collector.Descriptor{
		Name:    "sockets",
		Outputs: []string{"Connection", "Socket"},
		CollectArgs: map[string]string{
			"fileprocs": "MemoryObject/type is 'fileproc'",
		},
	})

	p, err := Build(reg, []string{"Connection"})
	require.NoError(t, err)
	assert.Equal(t, []string{"handles", "sockets"}, names(p))

	handles, sockets := p.Steps[0], p.Steps[1]
	assert.Less(t, handles.Rank, sockets.Rank)
	assert.Equal(t, []string{"handles"}, sockets.Args["fileprocs"].Suppliers)
}

func TestBuildIsLazy(t *testing.T) {
	reg := collector.NewRegistry()
	register(t, reg, collector.Descriptor{Name: "processes", Outputs: []string{"Process"}})
	register(t, reg, collector.Descriptor{Name: "users", Outputs: []string{"User"}})

	p, err := Build(reg, []string{"Process"})
	require.NoError(t, err)
	assert.Equal(t, []string{"processes"}, names(p), "undemanded collector stays out")
}

func TestBuildCostOrdering(t *testing.T) {
	reg := collector.NewRegistry()
	register(t, reg, collector.Descriptor{Name: "scan-slow", Outputs: []string{"Process"}, Cost: collector.High})
	register(t, reg, collector.Descriptor{Name: "walk-list", Outputs: []string{"Process"}, Cost: collector.Cheap})
	register(t, reg, collector.Descriptor{Name: "walk-tree", Outputs: []string{"Process"}, Cost: collector.Cheap})

	p, err := Build(reg, []string{"Process"})
	require.NoError(t, err)
	assert.Equal(t, []string{"walk-list", "walk-tree", "scan-slow"}, names(p))
}

func TestBuildUnsatisfiable(t *testing.T) {
	reg := collector.NewRegistry()
	register(t, reg, collector.Descriptor{Name: "processes", Outputs: []string{"Process"}})

	_, err := Build(reg, []string{"Socket"})
	assert.ErrorIs(t, err, ErrUnsatisfiable)
}

func TestBuildMissingTransitiveProducerIsNotAnError(t *testing.T) {
	reg := collector.NewRegistry()
	register(t, reg, collector.Descriptor{
		Name:    "handles",
		Outputs: []string{"Handle"},
		CollectArgs: map[string]string{
			"procs": "has component Process",
		},
	})

	p, err := Build(reg, []string{"Handle"})
	require.NoError(t, err)
	require.Len(t, p.Steps, 1)
	assert.Empty(t, p.Steps[0].Args["procs"].Suppliers)
}

func TestBuildBreaksCycles(t *testing.T) {
	reg := collector.NewRegistry()
	register(t, reg, collector.Descriptor{
		Name:        "a",
		Outputs:     []string{"Alpha"},
		CollectArgs: map[string]string{"in": "has component Beta"},
		Trigger:     collector.Incremental,
	})
	register(t, reg, collector.Descriptor{
		Name:        "b",
		Outputs:     []string{"Beta"},
		CollectArgs: map[string]string{"in": "has component Alpha"},
	})

	p, err := Build(reg, []string{"Alpha"})
	require.NoError(t, err)
	require.Len(t, p.Steps, 2)

	// The incremental member is released first and carries the cut edge.
	assert.Equal(t, "a", p.Steps[0].Name())
	assert.Equal(t, []string{"b"}, p.Steps[0].Deferred)
	assert.Empty(t, p.Steps[1].Deferred)
}

func TestBuildSelfSupplyDoesNotCycle(t *testing.T) {
	reg := collector.NewRegistry()
	register(t, reg, collector.Descriptor{
		Name:        "walk",
		Outputs:     []string{"Process"},
		CollectArgs: map[string]string{"parents": "has component Process"},
		Trigger:     collector.Incremental,
	})

	p, err := Build(reg, []string{"Process"})
	require.NoError(t, err)
	require.Len(t, p.Steps, 1)
	assert.Empty(t, p.Steps[0].Deferred)
}
