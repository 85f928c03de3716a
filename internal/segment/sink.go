package segment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/livecaptions/internal/observe"
)

// Gate reports whether listening should be suppressed, typically because a
// downstream consumer is speaking the last caption aloud.
type Gate interface {
	IsSuppressed(ctx context.Context) (bool, error)
}

// GateFunc adapts a function to [Gate].
type GateFunc func(ctx context.Context) (bool, error)

// IsSuppressed calls f.
func (f GateFunc) IsSuppressed(ctx context.Context) (bool, error) { return f(ctx) }

// Sink receives captions as the loop produces them. Final captions are
// delivered only when their trimmed text is longer than one character.
type Sink interface {
	OnFinalCaption(ctx context.Context, text string) error
	OnInterimCaption(ctx context.Context, text string) error
}

// Display shows the newest caption to a human.
type Display interface {
	Show(text string) error
}

// Corrector rewrites caption text before it is displayed or delivered.
type Corrector interface {
	Apply(text string) string
}

type namedSink struct {
	name string
	sink Sink
}

// MultiSink fans captions out to several sinks. A failing sink does not stop
// delivery to the others; its error is counted under its name and returned
// joined with the rest.
type MultiSink struct {
	mu      sync.RWMutex
	sinks   []namedSink
	metrics *observe.Metrics
}

var _ Sink = (*MultiSink)(nil)

// NewMultiSink returns an empty [MultiSink]. A nil metrics uses
// [observe.DefaultMetrics].
func NewMultiSink(metrics *observe.Metrics) *MultiSink {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &MultiSink{metrics: metrics}
}

// Add registers s under name.
func (m *MultiSink) Add(name string, s Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, namedSink{name: name, sink: s})
}

// Len returns the number of registered sinks.
func (m *MultiSink) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sinks)
}

// OnFinalCaption delivers text to every sink.
func (m *MultiSink) OnFinalCaption(ctx context.Context, text string) error {
	return m.each(ctx, func(s Sink) error { return s.OnFinalCaption(ctx, text) })
}

// OnInterimCaption delivers text to every sink.
func (m *MultiSink) OnInterimCaption(ctx context.Context, text string) error {
	return m.each(ctx, func(s Sink) error { return s.OnInterimCaption(ctx, text) })
}

func (m *MultiSink) each(ctx context.Context, fn func(Sink) error) error {
	m.mu.RLock()
	sinks := m.sinks
	m.mu.RUnlock()

	var errs []error
	for _, ns := range sinks {
		if err := fn(ns.sink); err != nil {
			m.metrics.RecordSinkError(ctx, ns.name)
			errs = append(errs, fmt.Errorf("%s: %w", ns.name, err))
		}
	}
	return errors.Join(errs...)
}
