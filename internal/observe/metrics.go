// Package observe provides application-wide observability primitives for
// livecaptions: OpenTelemetry metrics, distributed tracing, structured
// logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all livecaptions metrics.
const meterName = "github.com/MrWong99/livecaptions"

// Finalize reasons recorded on [Metrics.Utterances].
const (
	ReasonVADEnd      = "vad_end"
	ReasonMaxDuration = "max_duration"
	ReasonSuppressed  = "suppressed"
	ReasonShutdown    = "shutdown"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// FinalizeDuration tracks the transcription latency of final captions.
	FinalizeDuration metric.Float64Histogram

	// InterimDuration tracks the transcription latency of interim refreshes.
	InterimDuration metric.Float64Histogram

	// UtteranceLength tracks the audio length of finalized utterances.
	UtteranceLength metric.Float64Histogram

	// --- Counters ---

	// FramesProcessed counts frames consumed by the segmentation loop.
	FramesProcessed metric.Int64Counter

	// FramesDropped counts frames discarded by suppression drains.
	FramesDropped metric.Int64Counter

	// Utterances counts finalized utterances. Use with attribute:
	//   attribute.String("reason", ...)
	Utterances metric.Int64Counter

	// InterimCaptions counts interim caption refreshes.
	InterimCaptions metric.Int64Counter

	// ProviderRequests counts provider calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// SinkErrors counts failed caption deliveries. Use with attribute:
	//   attribute.String("sink", ...)
	SinkErrors metric.Int64Counter

	// GateErrors counts failed suppression-gate polls.
	GateErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of running captioning loops.
	ActiveSessions metric.Int64UpDownCounter

	// BroadcastClients tracks connected caption websocket clients.
	BroadcastClients metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// transcription latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// utteranceBuckets defines histogram bucket boundaries (in seconds) for
// utterance lengths.
var utteranceBuckets = []float64{
	0.5, 1, 2, 3, 5, 8, 12, 15, 20, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.FinalizeDuration, err = m.Float64Histogram("livecaptions.finalize.duration",
		metric.WithDescription("Latency of final caption transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.InterimDuration, err = m.Float64Histogram("livecaptions.interim.duration",
		metric.WithDescription("Latency of interim caption transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.UtteranceLength, err = m.Float64Histogram("livecaptions.utterance.length",
		metric.WithDescription("Audio length of finalized utterances."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(utteranceBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.FramesProcessed, err = m.Int64Counter("livecaptions.frames.processed",
		metric.WithDescription("Total audio frames consumed by the segmentation loop."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("livecaptions.frames.dropped",
		metric.WithDescription("Total audio frames discarded while suppressed."),
	); err != nil {
		return nil, err
	}
	if met.Utterances, err = m.Int64Counter("livecaptions.utterances",
		metric.WithDescription("Total finalized utterances by reason."),
	); err != nil {
		return nil, err
	}
	if met.InterimCaptions, err = m.Int64Counter("livecaptions.interim.captions",
		metric.WithDescription("Total interim caption refreshes."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("livecaptions.provider.requests",
		metric.WithDescription("Total provider requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("livecaptions.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.SinkErrors, err = m.Int64Counter("livecaptions.sink.errors",
		metric.WithDescription("Total failed caption deliveries by sink."),
	); err != nil {
		return nil, err
	}
	if met.GateErrors, err = m.Int64Counter("livecaptions.gate.errors",
		metric.WithDescription("Total failed suppression-gate polls."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("livecaptions.active_sessions",
		metric.WithDescription("Number of running captioning loops."),
	); err != nil {
		return nil, err
	}
	if met.BroadcastClients, err = m.Int64UpDownCounter("livecaptions.broadcast.clients",
		metric.WithDescription("Number of connected caption websocket clients."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("livecaptions.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordUtterance records a finalized utterance with its reason and audio
// length in seconds.
func (m *Metrics) RecordUtterance(ctx context.Context, reason string, seconds float64) {
	m.Utterances.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	m.UtteranceLength.Record(ctx, seconds)
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordSinkError records a failed caption delivery to the named sink.
func (m *Metrics) RecordSinkError(ctx context.Context, sink string) {
	m.SinkErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", sink)))
}
