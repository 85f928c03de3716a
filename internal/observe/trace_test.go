package observe

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// useRecorder installs an in-memory tracer provider as the global provider
// for the duration of the test.
func useRecorder(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

func spanAttrs(s tracetest.SpanStub) map[string]string {
	m := make(map[string]string, len(s.Attributes))
	for _, kv := range s.Attributes {
		m[string(kv.Key)] = kv.Value.Emit()
	}
	return m
}

func TestStartUtterance_FinalAttributes(t *testing.T) {
	exp := useRecorder(t)

	_, span := StartUtterance(context.Background(), SpanFinalize, ReasonMaxDuration, 15)
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if spans[0].Name != SpanFinalize {
		t.Errorf("name = %q, want %q", spans[0].Name, SpanFinalize)
	}
	attrs := spanAttrs(spans[0])
	if attrs["reason"] != ReasonMaxDuration {
		t.Errorf("reason = %q, want %q", attrs["reason"], ReasonMaxDuration)
	}
	if attrs["audio_seconds"] != "15" {
		t.Errorf("audio_seconds = %q, want 15", attrs["audio_seconds"])
	}
}

func TestStartUtterance_InterimHasNoReason(t *testing.T) {
	exp := useRecorder(t)

	_, span := StartUtterance(context.Background(), SpanInterim, "", 0.5)
	span.End()

	attrs := spanAttrs(exp.GetSpans()[0])
	if _, ok := attrs["reason"]; ok {
		t.Errorf("interim span carries reason %q", attrs["reason"])
	}
}

func TestFailSpan(t *testing.T) {
	exp := useRecorder(t)

	_, span := StartSpan(context.Background(), "op")
	FailSpan(span, errors.New("boom"), "transcription failed")
	span.End()

	s := exp.GetSpans()[0]
	if s.Status.Code != codes.Error {
		t.Errorf("status = %v, want Error", s.Status.Code)
	}
	if s.Status.Description != "transcription failed" {
		t.Errorf("description = %q", s.Status.Description)
	}
	if len(s.Events) == 0 || s.Events[0].Name != "exception" {
		t.Errorf("events = %+v, want recorded exception", s.Events)
	}
}

func TestTraceID(t *testing.T) {
	if got := TraceID(context.Background()); got != "" {
		t.Errorf("TraceID(background) = %q, want empty", got)
	}

	useRecorder(t)
	ctx, span := StartSpan(context.Background(), "op")
	defer span.End()
	id := TraceID(ctx)
	if len(id) != 32 {
		t.Fatalf("TraceID length = %d, want 32", len(id))
	}
	if strings.Trim(id, "0123456789abcdef") != "" {
		t.Errorf("TraceID %q is not lowercase hex", id)
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	Logger(context.Background(), base).Info("plain")
	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("logger without span added trace_id: %s", buf.String())
	}
	buf.Reset()

	useRecorder(t)
	ctx, span := StartSpan(context.Background(), "op")
	defer span.End()
	Logger(ctx, base).Info("traced")
	out := buf.String()
	if !strings.Contains(out, "trace_id="+TraceID(ctx)) || !strings.Contains(out, "span_id=") {
		t.Errorf("log line missing span context: %s", out)
	}
}

func TestLogger_NilUsesDefault(t *testing.T) {
	if Logger(context.Background(), nil) != slog.Default() {
		t.Error("Logger(nil) did not return slog.Default()")
	}
}
