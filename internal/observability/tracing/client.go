package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartProviderSpan opens a client span around an outbound provider call.
// The returned func ends it and records err when non-nil.
func StartProviderSpan(ctx context.Context, provider, operation string) (context.Context, func(err error)) {
	ctx, span := otel.Tracer("giftpool/providers").Start(ctx, provider+"."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("provider.operation", operation),
		),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, operation+" failed")
		}
		span.End()
	}
}
