package exporter

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerWrapper provides nil-safe span creation. With no TracerProvider it
// falls back to a noop provider, so callers never check for a nil span.
type TracerWrapper struct {
	tracer trace.Tracer
}

// NewTracerWrapper creates a wrapper using tp, or a noop provider when tp is nil.
//
// Example:
//
//	tracing := NewTracerWrapper(tp, "statsd-coralogix/remote-write")
//	ctx, span := tracing.StartSpan(ctx, "remote_write.send", trace.SpanKindClient)
//	defer span.End()
func NewTracerWrapper(tp trace.TracerProvider, name string) *TracerWrapper {
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	return &TracerWrapper{tracer: tp.Tracer(name)}
}

// StartSpan starts a span of the given kind with optional initial attributes.
// The returned span is never nil.
func (w *TracerWrapper) StartSpan(ctx context.Context, operation string, kind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	opts := []trace.SpanStartOption{trace.WithSpanKind(kind)}
	if len(attrs) > 0 {
		opts = append(opts, trace.WithAttributes(attrs...))
	}
	return w.tracer.Start(ctx, operation, opts...)
}
