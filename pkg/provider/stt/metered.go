package stt

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MrWong99/livecaptions/pkg/provider/stt"

// Usage is a snapshot of cumulative transcriber activity. All fields are
// monotonically non-decreasing over the lifetime of a [Metered].
type Usage struct {
	// Inferences is the number of completed Transcribe calls, including
	// failed ones.
	Inferences int64

	// InferenceTime is the total wall time spent inside Transcribe.
	InferenceTime time.Duration

	// SpeechSeconds is the total audio duration submitted, in seconds.
	SpeechSeconds float64
}

// MeanLatency returns the average inference duration, or 0 when nothing has
// been transcribed.
func (u Usage) MeanLatency() time.Duration {
	if u.Inferences == 0 {
		return 0
	}
	return u.InferenceTime / time.Duration(u.Inferences)
}

// RealtimeFactor returns speech seconds per inference second. It is 0 when no
// inference time has accumulated.
func (u Usage) RealtimeFactor() float64 {
	if u.InferenceTime <= 0 {
		return 0
	}
	return u.SpeechSeconds / u.InferenceTime.Seconds()
}

// MeteredOption configures a [Metered].
type MeteredOption func(*Metered)

// WithMeterProvider sets the OpenTelemetry meter provider used to record the
// livecaptions.stt.duration histogram. Defaults to the global provider.
func WithMeterProvider(mp metric.MeterProvider) MeteredOption {
	return func(m *Metered) { m.mp = mp }
}

// WithWarmup runs one inference over a second of silence during construction
// so that the first real utterance does not pay model load cost. The warm-up
// call is not counted in [Usage].
func WithWarmup(on bool) MeteredOption {
	return func(m *Metered) { m.warmup = on }
}

// WithProviderName sets the provider attribute on recorded metrics.
func WithProviderName(name string) MeteredOption {
	return func(m *Metered) { m.name = name }
}

// Metered wraps a [Transcriber] and accounts every call. It is safe for
// concurrent use.
type Metered struct {
	inner  Transcriber
	mp     metric.MeterProvider
	warmup bool
	name   string

	duration metric.Float64Histogram

	inferences atomic.Int64
	inferNanos atomic.Int64
	// speechMicros holds speech seconds × 1e6 so it can be accumulated
	// atomically.
	speechMicros atomic.Int64
}

// NewMetered wraps inner. When warm-up is enabled its error is returned.
func NewMetered(ctx context.Context, inner Transcriber, opts ...MeteredOption) (*Metered, error) {
	m := &Metered{inner: inner, mp: otel.GetMeterProvider(), name: "unknown"}
	for _, o := range opts {
		o(m)
	}

	h, err := m.mp.Meter(meterName).Float64Histogram("livecaptions.stt.duration",
		metric.WithDescription("Wall time of a single transcription call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("stt: create duration histogram: %w", err)
	}
	m.duration = h

	if m.warmup && inner.SampleRate() > 0 {
		if _, err := inner.Transcribe(ctx, make([]float32, inner.SampleRate())); err != nil {
			return nil, fmt.Errorf("stt: warm-up: %w", err)
		}
	}
	return m, nil
}

// Transcribe implements [Transcriber].
func (m *Metered) Transcribe(ctx context.Context, samples []float32) (string, error) {
	start := time.Now()
	text, err := m.inner.Transcribe(ctx, samples)
	elapsed := time.Since(start)

	m.inferences.Add(1)
	m.inferNanos.Add(int64(elapsed))
	if sr := m.inner.SampleRate(); sr > 0 {
		m.speechMicros.Add(int64(len(samples)) * 1_000_000 / int64(sr))
	}
	m.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(providerAttr(m.name), statusAttr(err)))
	return text, err
}

// SampleRate implements [Transcriber].
func (m *Metered) SampleRate() int { return m.inner.SampleRate() }

// Usage returns a snapshot of the accumulated counters.
func (m *Metered) Usage() Usage {
	return Usage{
		Inferences:    m.inferences.Load(),
		InferenceTime: time.Duration(m.inferNanos.Load()),
		SpeechSeconds: float64(m.speechMicros.Load()) / 1e6,
	}
}

var _ Transcriber = (*Metered)(nil)
