// Package vad defines the Detector interface for Voice Activity Detection
// backends.
//
// A Detector is fed one fixed-size frame at a time and reports edge events:
// [EventStart] when speech begins and [EventEnd] when it stops. Frames in
// between yield [EventNone]. After an utterance is finalised the caller issues
// a SoftReset so the next utterance is detected from a clean slate without
// reloading the model.
//
// VAD is synchronous: Process returns immediately with a result, making it
// suitable for the single consumer goroutine of the segmentation loop.
// A Detector is not safe for concurrent use; an [Engine] is.
package vad

import "fmt"

// Event is the per-frame detection result.
type Event int

const (
	// EventNone means no speech boundary was crossed in this frame.
	EventNone Event = iota

	// EventStart means speech began in this frame.
	EventStart

	// EventEnd means speech ended in this frame.
	EventEnd
)

// String implements [fmt.Stringer].
func (e Event) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventStart:
		return "start"
	case EventEnd:
		return "end"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// Config holds the parameters for a Detector.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the frames passed
	// to Process. Silero supports 8000 and 16000.
	SampleRate int

	// ChunkSize is the number of samples per frame.
	ChunkSize int

	// Threshold is the speech probability (Silero) or normalised RMS level
	// (energy) above which a frame counts as speech. Typical: 0.5 for Silero,
	// 0.01 for energy.
	Threshold float64

	// MinSilenceMs is how long the signal must stay below threshold before an
	// end event is emitted.
	MinSilenceMs int

	// SpeechPadMs pads detected speech boundaries.
	SpeechPadMs int
}

// Detector is a stateful, single-stream speech boundary detector.
type Detector interface {
	// Process analyses one frame of mono float32 samples and returns the
	// boundary event, if any, that the frame produced.
	Process(frame []float32) (Event, error)

	// SoftReset clears triggered/silence/position state without releasing the
	// model, so the next frame is evaluated as the start of a new stream.
	SoftReset()

	// Close releases the detector. Calling Close more than once is safe.
	Close() error
}

// Engine is the factory for detectors. Implementations must be safe for
// concurrent use.
type Engine interface {
	NewDetector(cfg Config) (Detector, error)
}
