// Package mock provides test doubles for the stt package interfaces.
//
// Use Transcriber to return scripted text and inspect the waveforms that were
// submitted.
//
// Example:
//
//	tr := &mock.Transcriber{Rate: 16000, Results: []string{"hello", "world"}}
//	text, _ := tr.Transcribe(ctx, samples) // "hello"
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/livecaptions/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcriber.Transcribe.
type TranscribeCall struct {
	// Samples is a copy of the waveform passed to Transcribe.
	Samples []float32
}

// Transcriber is a mock implementation of stt.Transcriber.
//
// The n-th call returns Results[n] (or Text once Results is exhausted) and
// Errs[n] when Errs is long enough; Err, if non-nil, overrides both. TextFunc,
// when set, takes precedence over everything else.
type Transcriber struct {
	mu sync.Mutex

	// Rate is returned by SampleRate. Defaults to 16000 when zero.
	Rate int

	// Text is returned once Results is exhausted.
	Text string

	// Results is the scripted text sequence.
	Results []string

	// Errs is the scripted error sequence, aligned with Results.
	Errs []error

	// Err, if non-nil, is returned by every call.
	Err error

	// TextFunc, if non-nil, computes the result from the submitted samples.
	TextFunc func(samples []float32) (string, error)

	// Block, if non-nil, makes Transcribe wait until it is closed or ctx is
	// done.
	Block chan struct{}

	// TranscribeCalls records every call in order.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns the next scripted result.
func (t *Transcriber) Transcribe(ctx context.Context, samples []float32) (string, error) {
	t.mu.Lock()
	cp := make([]float32, len(samples))
	copy(cp, samples)
	i := len(t.TranscribeCalls)
	t.TranscribeCalls = append(t.TranscribeCalls, TranscribeCall{Samples: cp})
	block := t.Block
	t.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.TextFunc != nil {
		return t.TextFunc(cp)
	}
	if t.Err != nil {
		return "", t.Err
	}
	text := t.Text
	if i < len(t.Results) {
		text = t.Results[i]
	}
	var err error
	if i < len(t.Errs) {
		err = t.Errs[i]
	}
	return text, err
}

// SampleRate returns Rate, or 16000 when Rate is zero.
func (t *Transcriber) SampleRate() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Rate == 0 {
		return 16000
	}
	return t.Rate
}

// Calls returns a copy of the recorded calls. Thread-safe.
func (t *Transcriber) Calls() []TranscribeCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TranscribeCall(nil), t.TranscribeCalls...)
}

// ResetCalls clears all recorded call history. Thread-safe.
func (t *Transcriber) ResetCalls() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.TranscribeCalls = nil
}

var _ stt.Transcriber = (*Transcriber)(nil)
