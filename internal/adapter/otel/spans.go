package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "relaymesh.coordinator"

// StartDispatchSpan starts a span covering one request's handling inside a
// Project actor, from frame parse to response.
func StartDispatchSpan(ctx context.Context, projectID, reqType string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "dispatch",
		trace.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.String("request.type", reqType),
		),
	)
}

// StartLeaseSpan starts a span for a file-lease operation.
func StartLeaseSpan(ctx context.Context, projectID, path, op string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "lease."+op,
		trace.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.String("lease.path", path),
		),
	)
}

// StartElectionSpan starts a span for an orchestrator election attempt.
func StartElectionSpan(ctx context.Context, projectID, agentID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "election",
		trace.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.String("agent.id", agentID),
		),
	)
}
