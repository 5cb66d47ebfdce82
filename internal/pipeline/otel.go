package pipeline

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "amts.pipeline"

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// startCycleSpan opens a span covering one watcher run cycle
func startCycleSpan(ctx context.Context, runID, trigger string, changed int) (context.Context, trace.Span) {
	return tracer().Start(ctx, "pipeline.cycle",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("cycle.run_id", runID),
			attribute.String("cycle.trigger", trigger),
			attribute.Int("cycle.changed_slices", changed),
		),
	)
}

// startSliceSpan opens a span covering one slice's processing pass
func startSliceSpan(ctx context.Context, key SliceKey) (context.Context, trace.Span) {
	return tracer().Start(ctx, "pipeline.slice",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("slice.key", string(key))),
	)
}

func endSliceSpan(span trace.Span, res SliceResult, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(
			attribute.String("slice.state", string(res.State)),
			attribute.Int("slice.cleaned", res.Cleaned),
			attribute.Int("slice.rejected", res.Rejected),
		)
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
