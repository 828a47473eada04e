package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "projectron"

// StartStageSpan starts a span for one plan pipeline stage.
func StartStageSpan(ctx context.Context, stage string, step int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "plan.stage",
		trace.WithAttributes(
			attribute.String("stage.name", stage),
			attribute.Int("stage.step", step),
		),
	)
}

// StartGenerationSpan starts a span for a single generator call.
func StartGenerationSpan(ctx context.Context, model string, attempt int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "llm.generate",
		trace.WithAttributes(
			attribute.String("llm.model", model),
			attribute.Int("llm.attempt", attempt),
		),
	)
}

// StartRendererSpan starts a span for a renderer operation.
func StartRendererSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "renderer."+op)
}

// End records err on the span (if any) and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
