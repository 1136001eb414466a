package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Instrumentation scope names.
const (
	StoreScope     = "github.com/nimburion/docstream/pkg/docstore"
	TransportScope = "github.com/nimburion/docstream/pkg/transport"
)

// StartStoreSpan starts an internal span for a document store operation.
func StartStoreSpan(ctx context.Context, operation, collection string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(StoreScope).Start(ctx, fmt.Sprintf("docstore.%s", operation),
		trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(
		attribute.String("docstore.operation", operation),
		attribute.String("docstore.collection", collection),
	)
	span.SetAttributes(attrs...)
	return ctx, span
}

// StartTransportSpan starts a client span for a call to the message log.
func StartTransportSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(TransportScope).Start(ctx, fmt.Sprintf("transport.%s", operation),
		trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(attribute.String("transport.operation", operation))
	span.SetAttributes(attrs...)
	return ctx, span
}

// End records err on the span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
