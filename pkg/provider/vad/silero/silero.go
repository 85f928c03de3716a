// Package silero provides a vad.Engine backed by the Silero VAD ONNX model via
// github.com/streamer45/silero-vad-go.
//
// The underlying detector reports speech segments rather than per-frame
// events and only evaluates a window once it has seen at least one sample
// past it. The adapter therefore keeps a small carry buffer and converts the
// returned segments into start/end edges, which adds one window of latency.
// When speech ends in a later call than it started, the detector reports
// that as an "unexpected speech end" error; the adapter maps it to an end
// edge.
//
// This package requires cgo and the ONNX Runtime shared library.
package silero

import (
	"errors"
	"fmt"
	"sync"

	"github.com/streamer45/silero-vad-go/speech"

	"github.com/MrWong99/livecaptions/pkg/provider/vad"
)

const (
	DefaultThreshold    = 0.5
	DefaultMinSilenceMs = 300
)

// speechEndMsg is the text of the error speech.Detector returns when a
// call closes a segment opened by an earlier call.
const speechEndMsg = "unexpected speech end"

// segmenter is the part of *speech.Detector the adapter uses.
type segmenter interface {
	Detect(pcm []float32) ([]speech.Segment, error)
	Reset() error
	Destroy() error
}

// Engine creates Silero detectors from a model file.
type Engine struct {
	modelPath string
}

// New returns an Engine that loads the ONNX model at modelPath for every
// detector it creates.
func New(modelPath string) (*Engine, error) {
	if modelPath == "" {
		return nil, errors.New("silero: model path must not be empty")
	}
	return &Engine{modelPath: modelPath}, nil
}

// NewDetector implements vad.Engine. Zero Threshold and MinSilenceMs fall
// back to [DefaultThreshold] and [DefaultMinSilenceMs].
func (e *Engine) NewDetector(cfg vad.Config) (vad.Detector, error) {
	window, err := windowSize(cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.MinSilenceMs == 0 {
		cfg.MinSilenceMs = DefaultMinSilenceMs
	}
	if cfg.Threshold < 0 || cfg.Threshold >= 1 {
		return nil, fmt.Errorf("silero: threshold must be in (0, 1), got %v", cfg.Threshold)
	}
	d, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:            e.modelPath,
		SampleRate:           cfg.SampleRate,
		Threshold:            float32(cfg.Threshold),
		MinSilenceDurationMs: cfg.MinSilenceMs,
		SpeechPadMs:          cfg.SpeechPadMs,
	})
	if err != nil {
		return nil, fmt.Errorf("silero: create detector: %w", err)
	}
	return newDetector(d, window), nil
}

func newDetector(seg segmenter, window int) *Detector {
	return &Detector{det: seg, window: window}
}

func windowSize(sampleRate int) (int, error) {
	switch sampleRate {
	case 16000:
		return 512, nil
	case 8000:
		return 256, nil
	default:
		return 0, fmt.Errorf("silero: unsupported sample rate %d (want 8000 or 16000)", sampleRate)
	}
}

// Detector adapts a speech.Detector to vad.Detector.
type Detector struct {
	mu        sync.Mutex
	det       segmenter
	window    int
	carry     []float32
	triggered bool
	closed    bool
}

// Process implements vad.Detector.
func (d *Detector) Process(frame []float32) (vad.Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return vad.EventNone, errors.New("silero: detector closed")
	}

	d.carry = append(d.carry, frame...)
	k := (len(d.carry) - 1) / d.window
	if k <= 0 {
		return vad.EventNone, nil
	}
	n := k * d.window
	segments, err := d.det.Detect(d.carry[:n+1])
	d.carry = append(d.carry[:0], d.carry[n:]...)
	if err != nil {
		if err.Error() == speechEndMsg {
			return d.endEdge(), nil
		}
		return vad.EventNone, fmt.Errorf("silero: detect: %w", err)
	}
	return d.edges(segments), nil
}

// endEdge closes the open segment, if any.
func (d *Detector) endEdge() vad.Event {
	if !d.triggered {
		return vad.EventNone
	}
	d.triggered = false
	return vad.EventEnd
}

// edges folds the returned segments into a single boundary event. A segment
// without an end time marks speech that is still in progress.
func (d *Detector) edges(segments []speech.Segment) vad.Event {
	ev := vad.EventNone
	for _, s := range segments {
		if !d.triggered {
			d.triggered = true
			ev = vad.EventStart
		}
		if s.SpeechEndAt > 0 {
			d.triggered = false
			ev = vad.EventEnd
		}
	}
	return ev
}

// SoftReset implements vad.Detector.
func (d *Detector) SoftReset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	_ = d.det.Reset()
	d.carry = d.carry[:0]
	d.triggered = false
}

// Close implements vad.Detector.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if err := d.det.Destroy(); err != nil {
		return fmt.Errorf("silero: destroy: %w", err)
	}
	return nil
}

var (
	_ vad.Engine   = (*Engine)(nil)
	_ vad.Detector = (*Detector)(nil)
)
