package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/labgate/internal/logger"
)

// Span attribute keys.
const (
	AttrUsername  = "user.name"
	AttrNamespace = "user.namespace"
	AttrStrategy  = "auth.strategy"
	AttrOutcome   = "auth.outcome"
	AttrStep      = "session.step"
	AttrClientIP  = "client.ip"
)

// StartLoginSpan starts the root span of a login attempt and copies its
// trace identifiers into the LogContext carried by ctx, if any.
func StartLoginSpan(ctx context.Context, namespace, username string) (context.Context, trace.Span) {
	ctx, span := StartSpan(ctx, "labgate.login",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String(AttrNamespace, namespace),
			attribute.String(AttrUsername, username),
		),
	)
	if lc := logger.FromContext(ctx); lc != nil {
		ctx = logger.WithContext(ctx, lc.WithTrace(TraceID(ctx), SpanID(ctx)))
	}
	return ctx, span
}

// StartAuthSpan starts a span around one strategy attempt.
func StartAuthSpan(ctx context.Context, strategy, username string) (context.Context, trace.Span) {
	return StartSpan(ctx, "auth."+strategy,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(AttrStrategy, strategy),
			attribute.String(AttrUsername, username),
		),
	)
}

// StartStepSpan starts a span around one provisioning step.
func StartStepSpan(ctx context.Context, step string) (context.Context, trace.Span) {
	return StartSpan(ctx, "session."+step,
		trace.WithAttributes(attribute.String(AttrStep, step)),
	)
}
