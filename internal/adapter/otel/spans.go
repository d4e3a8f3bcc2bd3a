package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "clipforge"

// StartStageSpan starts a span for one pipeline stage of a feedback item.
func StartStageSpan(ctx context.Context, stage, itemID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "feedback."+stage,
		trace.WithAttributes(
			attribute.String("feedback.id", itemID),
			attribute.String("feedback.stage", stage),
		),
	)
}

// StartRefinementSpan starts a span for one scene refinement call.
func StartRefinementSpan(ctx context.Context, itemID, sceneID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "feedback.refinement",
		trace.WithAttributes(
			attribute.String("feedback.id", itemID),
			attribute.String("scene.id", sceneID),
		),
	)
}
