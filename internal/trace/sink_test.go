package trace

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestRun_NilSink(t *testing.T) {
	out := Run(context.Background(), nil, Op{Name: OpSceneStart}, func(context.Context) Outcome {
		return Outcome{OK: true}
	})
	assert.True(t, out.OK)
}

func TestRecorder(t *testing.T) {
	rec := NewRecorder(2)
	for _, name := range []string{OpSceneStart, OpSceneAdvance, OpSceneEnd} {
		Run(context.Background(), rec, Op{Name: name}, func(context.Context) Outcome { return Outcome{OK: true} })
	}
	assert.Equal(t, []string{OpSceneAdvance, OpSceneEnd}, rec.Names())
	for _, r := range rec.Records() {
		assert.GreaterOrEqual(t, r.Outcome.Duration.Nanoseconds(), int64(0))
	}
}

type orderSink struct {
	name string
	log  *[]string
}

func (s orderSink) Before(ctx context.Context, _ Op) context.Context {
	*s.log = append(*s.log, "before:"+s.name)
	return ctx
}

func (s orderSink) After(context.Context, Op, Outcome) {
	*s.log = append(*s.log, "after:"+s.name)
}

func TestMulti_Order(t *testing.T) {
	var log []string
	m := Multi{orderSink{"a", &log}, nil, orderSink{"b", &log}}
	Run(context.Background(), m, Op{Name: OpBuildLine}, func(context.Context) Outcome {
		log = append(log, "run")
		return Outcome{}
	})
	assert.Equal(t, []string{"before:a", "before:b", "run", "after:b", "after:a"}, log)
}

func TestSlog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sink := NewSlog(logger)

	Run(context.Background(), sink, Op{Name: OpSceneAdvance, Attrs: map[string]string{"beat": "intro"}},
		func(context.Context) Outcome { return Outcome{OK: false, Err: errors.New("dangling target")} })

	out := buf.String()
	assert.Contains(t, out, "Operation started")
	assert.Contains(t, out, "Operation failed")
	assert.Contains(t, out, "beat=intro")
	assert.Contains(t, out, "dangling target")
}

func TestOTel_RecordsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	sink := NewOTel(provider)
	Run(context.Background(), sink, Op{Name: OpSceneStart, Attrs: map[string]string{"scene": "tavern"}},
		func(context.Context) Outcome { return Outcome{OK: true} })
	Run(context.Background(), sink, Op{Name: OpSceneAdvance},
		func(context.Context) Outcome { return Outcome{Err: errors.New("boom")} })

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, OpSceneStart, spans[0].Name)
	assert.Equal(t, codes.Error, spans[1].Status.Code)

	var found bool
	for _, a := range spans[0].Attributes {
		if string(a.Key) == "parley.scene" && a.Value.AsString() == "tavern" {
			found = true
		}
	}
	assert.True(t, found, "op attrs become span attributes")
}

func TestSlogExporter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	provider := NewTracerProvider(logger)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	Run(context.Background(), NewOTel(provider), Op{Name: OpSceneEnd, Attrs: map[string]string{"reason": "stopped"}},
		func(context.Context) Outcome { return Outcome{OK: true} })

	out := buf.String()
	assert.Contains(t, out, "Span finished")
	assert.Contains(t, out, "span=scene.end")
	assert.Contains(t, out, "parley.reason=stopped")
	assert.Contains(t, out, "component=span_exporter")
}
