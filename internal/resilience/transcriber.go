package resilience

import (
	"context"
	"fmt"

	"github.com/MrWong99/livecaptions/pkg/provider/stt"
)

// TranscriberFallback implements [stt.Transcriber] with failover across several
// backends. Each backend has its own circuit breaker, so a transcription server
// that went away is skipped until its reset timeout elapses.
type TranscriberFallback struct {
	group *FallbackGroup[stt.Transcriber]
}

var _ stt.Transcriber = (*TranscriberFallback)(nil)

// NewTranscriberFallback creates a [TranscriberFallback] with primary as the
// preferred backend.
func NewTranscriberFallback(primary stt.Transcriber, primaryName string, cfg FallbackConfig) *TranscriberFallback {
	return &TranscriberFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional backend. It must accept the same sample
// rate as the primary.
func (f *TranscriberFallback) AddFallback(name string, t stt.Transcriber) error {
	if got, want := t.SampleRate(), f.SampleRate(); got != want {
		return fmt.Errorf("resilience: fallback %q sample rate %d does not match primary %d", name, got, want)
	}
	f.group.AddFallback(name, t)
	return nil
}

// Backends returns the backend names in the order they are tried.
func (f *TranscriberFallback) Backends() []string { return f.group.Names() }

// Transcribe runs samples through the first healthy backend.
func (f *TranscriberFallback) Transcribe(ctx context.Context, samples []float32) (string, error) {
	return ExecuteWithResult(ctx, f.group, func(t stt.Transcriber) (string, error) {
		return t.Transcribe(ctx, samples)
	})
}

// SampleRate returns the primary backend's rate, shared by every fallback.
func (f *TranscriberFallback) SampleRate() int { return f.group.Primary().SampleRate() }
