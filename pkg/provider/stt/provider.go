// Package stt defines the Transcriber interface for Speech-to-Text backends.
//
// A Transcriber turns a complete waveform into text in a single blocking call.
// The captioning loop calls it synchronously for both interim refreshes and
// final transcriptions, so latency here directly delays the next frame.
//
// Backends live in sub-packages: whisper (whisper-server HTTP and native
// whisper.cpp), openai (OpenAI audio transcriptions API), and deepgram
// (Deepgram pre-recorded API). [Metered] wraps any backend with usage
// accounting.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
)

// ErrEmptyAudio is returned by backends that refuse to transcribe zero
// samples.
var ErrEmptyAudio = errors.New("stt: empty audio")

// Transcriber is the abstraction over any batch STT backend.
type Transcriber interface {
	// Transcribe converts mono float32 samples in [-1, 1], recorded at
	// SampleRate, into text. The call blocks until inference completes or ctx
	// is cancelled. Leading and trailing whitespace in the result is not
	// significant.
	Transcribe(ctx context.Context, samples []float32) (string, error)

	// SampleRate is the rate, in Hz, the backend expects its input at.
	SampleRate() int
}

// KeywordBoost is a vocabulary hint that raises recognition probability for
// uncommon words such as proper nouns.
type KeywordBoost struct {
	// Keyword is the text to boost (e.g., "Kubernetes").
	Keyword string

	// Boost is the intensity of the boost (provider-specific scale).
	Boost float64
}

// Keywords returns the bare keyword strings of boosts.
func Keywords(boosts []KeywordBoost) []string {
	out := make([]string, 0, len(boosts))
	for _, b := range boosts {
		out = append(out, b.Keyword)
	}
	return out
}
