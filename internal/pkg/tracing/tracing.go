// Package tracing wraps the OpenTelemetry tracer used around coordinator reactions.
// Without a configured TracerProvider the global no-op provider is used.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultName = "fulfillment"

type Tracer struct {
	t trace.Tracer
}

func New(name string) Tracer {
	if name == "" {
		name = defaultName
	}
	return Tracer{t: otel.Tracer(name)}
}

func (t Tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if t.t == nil {
		t.t = otel.Tracer(defaultName)
	}
	return t.t.Start(ctx, name, trace.WithAttributes(attrs...))
}

// End records err on the span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
