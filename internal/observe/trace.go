package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrWong99/livecaptions"

// Span names used by the captioning loop.
const (
	SpanFinalize = "segment.finalize"
	SpanInterim  = "segment.interim"
)

// Tracer returns the livecaptions tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span on [Tracer]. The caller must end it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// StartUtterance starts a span covering the transcription of one utterance.
// reason is one of the Reason* constants for final passes and empty for
// interim passes.
func StartUtterance(ctx context.Context, name, reason string, audioSeconds float64) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.Float64("audio_seconds", audioSeconds)}
	if reason != "" {
		attrs = append(attrs, attribute.String("reason", reason))
	}
	return StartSpan(ctx, name, trace.WithAttributes(attrs...))
}

// FailSpan records err on span and marks it failed with msg.
func FailSpan(span trace.Span, err error, msg string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
}

// TraceID returns the hex trace ID of the span in ctx, or "" without one.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// Logger returns l with trace_id and span_id attached when ctx carries a
// recording span. A nil l means slog.Default.
func Logger(ctx context.Context, l *slog.Logger) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return l
	}
	return l.With("trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
}
