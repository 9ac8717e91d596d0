package trace

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/dotcommander/parley"

// OTel turns each operation into an OpenTelemetry span.
type OTel struct {
	tracer oteltrace.Tracer
}

// NewOTel creates a span sink. A nil provider uses the global one.
func NewOTel(provider oteltrace.TracerProvider) *OTel {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &OTel{tracer: provider.Tracer(instrumentationName)}
}

func (o *OTel) Before(ctx context.Context, op Op) context.Context {
	attrs := make([]attribute.KeyValue, 0, len(op.Attrs))
	for k, v := range op.Attrs {
		attrs = append(attrs, attribute.String("parley."+k, v))
	}
	ctx, _ = o.tracer.Start(ctx, op.Name, oteltrace.WithAttributes(attrs...))
	return ctx
}

func (o *OTel) After(ctx context.Context, _ Op, out Outcome) {
	span := oteltrace.SpanFromContext(ctx)
	span.SetAttributes(attribute.Bool("parley.ok", out.OK))
	if out.Detail != "" {
		span.SetAttributes(attribute.String("parley.detail", out.Detail))
	}
	if out.Err != nil {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Err.Error())
	}
	span.End()
}

// SlogExporter writes finished spans to a logger. It lets span output be
// inspected without a collector.
type SlogExporter struct {
	logger *slog.Logger
}

// NewSlogExporter creates an exporter logging at debug level.
func NewSlogExporter(logger *slog.Logger) *SlogExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogExporter{logger: logger.With("component", "span_exporter")}
}

func (e *SlogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		args := []any{
			"span", s.Name(),
			"trace_id", s.SpanContext().TraceID().String(),
			"duration", s.EndTime().Sub(s.StartTime()),
			"status", s.Status().Code.String(),
		}
		for _, kv := range s.Attributes() {
			args = append(args, string(kv.Key), kv.Value.Emit())
		}
		e.logger.DebugContext(ctx, "Span finished", args...)
	}
	return nil
}

func (e *SlogExporter) Shutdown(context.Context) error { return nil }

// NewTracerProvider returns a provider that exports synchronously to logger.
// Callers shut it down when done.
func NewTracerProvider(logger *slog.Logger) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(sdktrace.WithSyncer(NewSlogExporter(logger)))
}
