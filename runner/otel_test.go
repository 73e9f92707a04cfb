package runner

import (
	"context"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/cairn-forensics/cairn/collector"
	"github.com/cairn-forensics/cairn/entity"
	"github.com/cairn-forensics/cairn/identity"
)

func TestRunEmitsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { tp.Shutdown(context.Background()) })

	reg := collector.NewRegistry()
	require.NoError(t, reg.Register(collector.New(collector.Descriptor{
		Name:    "processes",
		Outputs: []string{"Process"},
	}, func(ctx context.Context, r collector.Resolver, hint collector.Hint, inputs map[string][]*entity.Entity) iter.Seq2[collector.Record, error] {
		return yieldAll([]collector.Record{
			record(t, identity.Key{"Process/pid": 1}, "Process", map[string]any{"pid": 1}),
		})
	})))

	runner := New(
		WithTracer(tp.Tracer("test")),
		WithMeter(noop.NewMeterProvider().Meter("test")),
	)
	rep := runner.Run(context.Background(), buildPlan(t, reg, "Process"), identity.NewStore(), entity.NewStore(""))

	assert.False(t, rep.Incomplete)
	assert.Equal(t, 1, rep.Merged)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "collect.processes", spans[0].Name())

	attrs := spans[0].Attributes()
	var sawMerged bool
	for _, kv := range attrs {
		if string(kv.Key) == "collect.merged" {
			sawMerged = true
			assert.Equal(t, int64(1), kv.Value.AsInt64())
		}
	}
	assert.True(t, sawMerged)
}

func TestRunWithoutTracer(t *testing.T) {
	reg := collector.NewRegistry()
	require.NoError(t, reg.Register(collector.New(collector.Descriptor{
		Name:    "processes",
		Outputs: []string{"Process"},
	}, func(ctx context.Context, r collector.Resolver, hint collector.Hint, inputs map[string][]*entity.Entity) iter.Seq2[collector.Record, error] {
		return yieldAll([]collector.Record{
			record(t, identity.Key{"Process/pid": 1}, "Process", map[string]any{"pid": 1}),
		})
	})))

	// No tracer or meter configured; the run must not touch either.
	rep := New().Run(context.Background(), buildPlan(t, reg, "Process"), identity.NewStore(), entity.NewStore(""))
	assert.Equal(t, 1, rep.Merged)
}
