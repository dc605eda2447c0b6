// Package tracing wraps the process-wide otel TracerProvider and the
// span-naming conventions the Planner and Event Pipeline emit spans under,
// grounded on the teacher's internal/domain/agent/react tracing helpers.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const (
	ScopePlanner = "surf-core.planner"
	ScopeEvents  = "surf-core.eventpipeline"

	SpanPlannerStep  = "surf-core.planner.step"
	SpanPlannerRun   = "surf-core.planner.run"
	SpanEventFlush   = "surf-core.eventpipeline.flush"

	AttrSessionID = "surf_core.session_id"
	AttrStepIndex = "surf_core.step_index"
	AttrStatus    = "surf_core.status"
)

// Init installs a process-wide TracerProvider. With no exporter registered,
// spans are created and dropped rather than shipped anywhere — there is no
// OTLP/Jaeger collector dependency in this module's stack, so this is a
// local no-op sink rather than a stub for a missing exporter.
func Init() (shutdown func(context.Context) error) {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}

// StartSpan begins a span under scope, attaching sessionID when non-empty.
func StartSpan(ctx context.Context, scope, spanName, sessionID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	spanAttrs := make([]attribute.KeyValue, 0, len(attrs)+1)
	if sessionID != "" {
		spanAttrs = append(spanAttrs, attribute.String(AttrSessionID, sessionID))
	}
	spanAttrs = append(spanAttrs, attrs...)
	return otel.Tracer(scope).Start(ctx, spanName, trace.WithAttributes(spanAttrs...))
}

// End records err (if any) onto span and closes it.
func End(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(AttrStatus, "error"))
	} else {
		span.SetStatus(codes.Ok, "")
		span.SetAttributes(attribute.String(AttrStatus, "ok"))
	}
	span.End()
}
