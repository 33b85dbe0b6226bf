package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name used by the service's own spans.
const TracerName = "github.com/kart-io/sentinel-faq"

// StartSpan starts a span on the global tracer provider. When tracing is
// disabled the returned span is non-recording and costs almost nothing.
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError records err on span and marks the span as failed.
// A nil error is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil || span == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceIDFromContext extracts the trace ID from the context.
// Returns an empty string if no trace is active.
func TraceIDFromContext(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// Detach returns a context that carries the span of ctx but is never
// cancelled, for work that outlives the request (e.g. query logging).
func Detach(ctx context.Context) context.Context {
	return trace.ContextWithSpan(context.WithoutCancel(ctx), trace.SpanFromContext(ctx))
}
