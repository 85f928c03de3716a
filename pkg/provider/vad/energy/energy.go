// Package energy provides a pure-Go vad.Engine that classifies frames by
// their root-mean-square level.
//
// A frame whose RMS reaches the threshold is speech. Speech starts on the
// first speech frame and ends once the accumulated silence after it reaches
// MinSilenceMs. It is far less robust than Silero against background noise
// but needs no model file or cgo, which makes it the default for tests and
// quiet rooms.
package energy

import (
	"fmt"

	"github.com/MrWong99/livecaptions/pkg/audio"
	"github.com/MrWong99/livecaptions/pkg/provider/vad"
)

const (
	// DefaultThreshold is 300/32768, the near-silence level for 16-bit PCM.
	DefaultThreshold = 300.0 / 32768.0

	// DefaultMinSilenceMs is the silence needed after speech to emit an end.
	DefaultMinSilenceMs = 500
)

// Engine creates energy detectors. The zero value is ready to use.
type Engine struct{}

// New returns an Engine.
func New() *Engine { return &Engine{} }

// NewDetector implements vad.Engine. Zero Threshold and MinSilenceMs fall
// back to the package defaults.
func (Engine) NewDetector(cfg vad.Config) (vad.Detector, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("energy: sample rate must be positive, got %d", cfg.SampleRate)
	}
	if cfg.Threshold < 0 || cfg.Threshold >= 1 {
		return nil, fmt.Errorf("energy: threshold must be in [0, 1), got %v", cfg.Threshold)
	}
	d := &Detector{
		sampleRate: cfg.SampleRate,
		threshold:  cfg.Threshold,
		minSilence: cfg.MinSilenceMs,
	}
	if d.threshold == 0 {
		d.threshold = DefaultThreshold
	}
	if d.minSilence <= 0 {
		d.minSilence = DefaultMinSilenceMs
	}
	return d, nil
}

// Detector is a single-stream energy detector.
type Detector struct {
	sampleRate int
	threshold  float64
	minSilence int

	triggered bool
	silenceMs float64
}

// Process implements vad.Detector.
func (d *Detector) Process(frame []float32) (vad.Event, error) {
	frameMs := float64(len(frame)) * 1000 / float64(d.sampleRate)
	speech := audio.RMS(frame) >= d.threshold

	switch {
	case speech && !d.triggered:
		d.triggered = true
		d.silenceMs = 0
		return vad.EventStart, nil
	case speech:
		d.silenceMs = 0
	case d.triggered:
		d.silenceMs += frameMs
		if d.silenceMs >= float64(d.minSilence) {
			d.triggered = false
			d.silenceMs = 0
			return vad.EventEnd, nil
		}
	}
	return vad.EventNone, nil
}

// SoftReset implements vad.Detector.
func (d *Detector) SoftReset() {
	d.triggered = false
	d.silenceMs = 0
}

// Close implements vad.Detector. It is a no-op.
func (d *Detector) Close() error { return nil }

var (
	_ vad.Engine   = Engine{}
	_ vad.Detector = (*Detector)(nil)
)
