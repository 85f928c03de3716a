// Package audio defines the frame type, the ingestion queue, and the capture
// source abstraction used by the live-captioning pipeline.
//
// The two primary abstractions are:
//
//   - [Source] is a real-time producer (microphone, file replay) that pushes
//     fixed-size [Frame] values into a [Queue] from its own goroutine or
//     device callback.
//   - [Queue] is an unbounded FIFO that decouples the producer from the
//     (possibly slower) segmentation loop. Push never blocks.
//
// Implementations of [Source] live in sub-packages (audio/mic,
// audio/wavfile). This package lives under pkg/ because external code is
// expected to provide its own sources.
package audio

import (
	"context"
	"time"
)

// Frame is a single fixed-size block of mono float32 samples in [-1, 1].
// Frames are immutable once pushed into a [Queue].
type Frame struct {
	// Samples holds exactly the configured chunk size of mono samples.
	Samples []float32

	// Status carries a non-fatal capture condition reported by the device for
	// this frame (e.g. an input overflow). Nil when the capture was clean.
	Status error

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the wall-clock length of the frame at sampleRate.
func (f Frame) Duration(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(sampleRate)
}

// Format describes the layout of frames produced by a [Source].
type Format struct {
	// SampleRate in Hz (16000 for all supported transcribers).
	SampleRate int

	// ChunkSize is the number of samples per frame.
	ChunkSize int
}

// Source is a real-time producer of audio frames.
//
// Start begins capture and returns once the device is running; frames are
// pushed into q from the source's own goroutine until ctx is cancelled or
// Close is called. Implementations must never block on q.
//
// Implementations must be safe for concurrent use of Close with the capture
// goroutine.
type Source interface {
	Start(ctx context.Context, q *Queue) error

	// Close stops capture and releases the device. Calling Close more than
	// once is safe and returns nil.
	Close() error
}
