// Package mock provides test doubles for the vad package interfaces.
//
// Use Engine to verify that detectors are created with the expected Config.
// Use Detector to script a sequence of events and inspect the frames that
// were submitted for processing.
//
// Example:
//
//	det := &mock.Detector{Events: []vad.Event{vad.EventNone, vad.EventStart}}
//	eng := &mock.Engine{Detector: det}
//	d, _ := eng.NewDetector(cfg)
package mock

import (
	"sync"

	"github.com/MrWong99/livecaptions/pkg/provider/vad"
)

// NewDetectorCall records a single invocation of Engine.NewDetector.
type NewDetectorCall struct {
	// Cfg is the Config passed to NewDetector.
	Cfg vad.Config
}

// Engine is a mock implementation of vad.Engine.
type Engine struct {
	mu sync.Mutex

	// Detector is returned by NewDetector. If nil, a new default Detector is
	// returned.
	Detector vad.Detector

	// NewDetectorErr, if non-nil, is returned as the error from NewDetector.
	NewDetectorErr error

	// NewDetectorCalls records every call to NewDetector in order.
	NewDetectorCalls []NewDetectorCall
}

// NewDetector records the call and returns Detector, NewDetectorErr.
func (e *Engine) NewDetector(cfg vad.Config) (vad.Detector, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.NewDetectorCalls = append(e.NewDetectorCalls, NewDetectorCall{Cfg: cfg})
	if e.NewDetectorErr != nil {
		return nil, e.NewDetectorErr
	}
	if e.Detector != nil {
		return e.Detector, nil
	}
	return &Detector{}, nil
}

// ResetCalls clears all recorded calls. Thread-safe.
func (e *Engine) ResetCalls() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.NewDetectorCalls = nil
}

var _ vad.Engine = (*Engine)(nil)

// Detector is a mock implementation of vad.Detector.
//
// The n-th call to Process returns Events[n] (EventNone once the script is
// exhausted) and Errs[n] when Errs is long enough. Alternatively EventFunc,
// when set, takes precedence and is called with the zero-based frame index.
type Detector struct {
	mu sync.Mutex

	// Events is the scripted event sequence.
	Events []vad.Event

	// Errs is the scripted error sequence, aligned with Events.
	Errs []error

	// EventFunc, if non-nil, computes the result for frame index i.
	EventFunc func(i int, frame []float32) (vad.Event, error)

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// --- Call records ---

	// Frames holds a copy of every frame passed to Process, in order.
	Frames [][]float32

	// SoftResetCallCount is the number of times SoftReset was called.
	SoftResetCallCount int

	// SoftResetAt records len(Frames) at each SoftReset call.
	SoftResetAt []int

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// Process records the frame and returns the next scripted result.
func (d *Detector) Process(frame []float32) (vad.Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := len(d.Frames)
	cp := make([]float32, len(frame))
	copy(cp, frame)
	d.Frames = append(d.Frames, cp)

	if d.EventFunc != nil {
		return d.EventFunc(i, cp)
	}
	var (
		ev  = vad.EventNone
		err error
	)
	if i < len(d.Events) {
		ev = d.Events[i]
	}
	if i < len(d.Errs) {
		err = d.Errs[i]
	}
	return ev, err
}

// SoftReset records the call.
func (d *Detector) SoftReset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.SoftResetCallCount++
	d.SoftResetAt = append(d.SoftResetAt, len(d.Frames))
}

// Close records the call and returns CloseErr.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CloseCallCount++
	return d.CloseErr
}

// ProcessCount returns the number of frames processed so far. Thread-safe.
func (d *Detector) ProcessCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Frames)
}

// ResetCalls clears all recorded call history. Thread-safe.
func (d *Detector) ResetCalls() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Frames = nil
	d.SoftResetCallCount = 0
	d.SoftResetAt = nil
	d.CloseCallCount = 0
}

var _ vad.Detector = (*Detector)(nil)
