// Package mic provides an [audio.Source] that captures the default input
// device through miniaudio (github.com/gen2brain/malgo).
//
// The device is opened as mono float32 at the requested sample rate; miniaudio
// performs any conversion from the hardware's native format. Samples delivered
// by the device callback are re-sliced into fixed-size frames and pushed into
// the [audio.Queue] without blocking.
//
// Capture problems do not stop ingestion. A callback buffer shorter than the
// frame count it announces, or a device that stops without Close being
// called, is reported as the Status of the next emitted frame. A stopped
// device is restarted.
//
// This package requires cgo.
package mic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/MrWong99/livecaptions/pkg/audio"
)

const (
	defaultSampleRate = 16000
	defaultChunkSize  = 512
)

var (
	// ErrDeviceStopped is attached to the first frame captured after the
	// device stopped on its own and was restarted.
	ErrDeviceStopped = errors.New("mic: capture device stopped unexpectedly")

	// ErrShortBuffer is attached when a callback delivered fewer bytes than
	// its frame count announced.
	ErrShortBuffer = errors.New("mic: short capture buffer")
)

// Option is a functional option for [New].
type Option func(*Source)

// WithSampleRate sets the capture sample rate in Hz. Default: 16000.
func WithSampleRate(rate int) Option {
	return func(s *Source) { s.sampleRate = rate }
}

// WithChunkSize sets the number of samples per emitted frame. Default: 512.
func WithChunkSize(n int) Option {
	return func(s *Source) { s.chunkSize = n }
}

// WithLogger sets the logger used for device notifications.
func WithLogger(l *slog.Logger) Option {
	return func(s *Source) { s.log = l }
}

// Source captures audio from the system's default microphone.
type Source struct {
	sampleRate int
	chunkSize  int
	log        *slog.Logger

	mu      sync.Mutex
	mctx    *malgo.AllocatedContext
	device  *malgo.Device
	closed  bool
	closing atomic.Bool

	// Owned by the device callback.
	chunker *audio.Chunker
	emitted int64

	statusMu sync.Mutex
	status   error
}

// New returns a microphone source. The device is not opened until Start.
func New(opts ...Option) (*Source, error) {
	s := &Source{
		sampleRate: defaultSampleRate,
		chunkSize:  defaultChunkSize,
		log:        slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.sampleRate <= 0 {
		return nil, fmt.Errorf("mic: sample rate must be positive, got %d", s.sampleRate)
	}
	if s.chunkSize <= 0 {
		return nil, fmt.Errorf("mic: chunk size must be positive, got %d", s.chunkSize)
	}
	return s, nil
}

// Format returns the frame layout this source produces.
func (s *Source) Format() audio.Format {
	return audio.Format{SampleRate: s.sampleRate, ChunkSize: s.chunkSize}
}

// Start opens the default capture device and begins pushing frames into q.
// The device is stopped when ctx is cancelled or Close is called.
func (s *Source) Start(ctx context.Context, q *audio.Queue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("mic: start: source closed")
	}
	if s.device != nil {
		return fmt.Errorf("mic: start: already started")
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		s.log.Debug("mic: miniaudio", "msg", msg)
	})
	if err != nil {
		return fmt.Errorf("mic: init context: %w", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(s.sampleRate)
	cfg.Alsa.NoMMap = 1

	s.chunker = audio.NewChunker(s.chunkSize)
	onData := func(_, input []byte, frameCount uint32) {
		s.capture(q, input, frameCount)
	}
	device, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{Data: onData, Stop: s.stopped})
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("mic: init device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("mic: start device: %w", err)
	}

	s.mctx = mctx
	s.device = device
	s.log.Info("mic: capture started", "sample_rate", s.sampleRate, "chunk_size", s.chunkSize)

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()
	return nil
}

// capture re-slices one callback's worth of float32 little-endian bytes into
// frames. A pending status rides on the first frame emitted.
func (s *Source) capture(q *audio.Queue, input []byte, frameCount uint32) {
	if frameCount == 0 {
		return
	}
	if len(input) < int(frameCount)*4 {
		s.setStatus(fmt.Errorf("%w: %d bytes for %d frames", ErrShortBuffer, len(input), frameCount))
	}
	s.chunker.Write(audio.Float32LEToSamples(input), func(chunk []float32) {
		ts := time.Duration(s.emitted) * time.Second / time.Duration(s.sampleRate)
		s.emitted += int64(len(chunk))
		q.Push(audio.Frame{Samples: chunk, Status: s.takeStatus(), Timestamp: ts})
	})
}

// stopped is the device's stop callback. Outside of Close it records the
// condition and restarts capture.
func (s *Source) stopped() {
	if s.closing.Load() {
		s.log.Debug("mic: device stopped")
		return
	}
	s.log.Warn("mic: device stopped unexpectedly, restarting")
	s.setStatus(ErrDeviceStopped)
	go s.restart()
}

func (s *Source) restart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.device == nil {
		return
	}
	if err := s.device.Start(); err != nil {
		s.log.Error("mic: restart failed", "err", err)
	}
}

func (s *Source) setStatus(err error) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status = errors.Join(s.status, err)
}

func (s *Source) takeStatus() error {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	err := s.status
	s.status = nil
	return err
}

// Close stops capture and releases the device and context. Safe to call more
// than once.
func (s *Source) Close() error {
	s.closing.Store(true)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.device != nil {
		_ = s.device.Stop()
		s.device.Uninit()
		s.device = nil
	}
	if s.mctx != nil {
		_ = s.mctx.Uninit()
		s.mctx.Free()
		s.mctx = nil
	}
	return nil
}

var _ audio.Source = (*Source)(nil)
