// Package wavfile provides an [audio.Source] that replays a 16-bit PCM WAV
// file as if it were a live microphone.
//
// The file is downmixed to mono and resampled to the target rate up front,
// by linear interpolation or, with [WithHighQuality], a windowed-sinc
// resampler.
// Frames are then pushed at real-time pace (one chunk per chunk duration)
// unless pacing is disabled, in which case the whole file is queued at once.
// The trailing partial chunk is zero-padded. When replay finishes the queue
// is closed so the consumer sees end of input.
package wavfile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/MrWong99/livecaptions/pkg/audio"
)

// Option is a functional option for [New].
type Option func(*Source)

// WithSampleRate sets the output sample rate. Default: 16000.
func WithSampleRate(rate int) Option {
	return func(s *Source) { s.sampleRate = rate }
}

// WithChunkSize sets the samples per emitted frame. Default: 512.
func WithChunkSize(n int) Option {
	return func(s *Source) { s.chunkSize = n }
}

// WithRealtime toggles real-time pacing. Default: true.
func WithRealtime(on bool) Option {
	return func(s *Source) { s.realtime = on }
}

// WithHighQuality selects the sinc resampler for files whose rate differs
// from the target. The filter delay trims a few milliseconds off the end of
// the recording.
func WithHighQuality(on bool) Option {
	return func(s *Source) { s.highQuality = on }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Source) { s.log = l }
}

// Source replays a WAV file.
type Source struct {
	path        string
	sampleRate  int
	chunkSize   int
	realtime    bool
	highQuality bool
	log         *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// New returns a replay source for the WAV file at path. The file is opened
// and decoded by Start.
func New(path string, opts ...Option) (*Source, error) {
	if path == "" {
		return nil, fmt.Errorf("wavfile: path must not be empty")
	}
	s := &Source{
		path:       path,
		sampleRate: 16000,
		chunkSize:  512,
		realtime:   true,
		log:        slog.Default(),
		done:       make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.sampleRate <= 0 || s.chunkSize <= 0 {
		return nil, fmt.Errorf("wavfile: sample rate and chunk size must be positive")
	}
	return s, nil
}

// Start decodes the file and begins pushing frames into q from a background
// goroutine.
func (s *Source) Start(ctx context.Context, q *audio.Queue) error {
	frames, err := s.load()
	if err != nil {
		return err
	}
	s.log.Info("wavfile: replay started", "path", s.path, "frames", len(frames), "realtime", s.realtime)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer q.Close()

		var tick <-chan time.Time
		if s.realtime {
			t := time.NewTicker(time.Duration(s.chunkSize) * time.Second / time.Duration(s.sampleRate))
			defer t.Stop()
			tick = t.C
		}
		for _, f := range frames {
			if tick != nil {
				select {
				case <-ctx.Done():
					return
				case <-s.done:
					return
				case <-tick:
				}
			} else if ctx.Err() != nil {
				return
			}
			q.Push(f)
		}
		s.log.Debug("wavfile: replay finished", "path", s.path)
	}()
	return nil
}

func (s *Source) load() ([]audio.Frame, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("wavfile: open: %w", err)
	}
	defer f.Close()

	w, err := audio.DecodeWAV(f)
	if err != nil {
		return nil, fmt.Errorf("wavfile: %s: %w", s.path, err)
	}
	samples := w.Mono()
	switch {
	case w.SampleRate == s.sampleRate:
	case s.highQuality:
		if samples, err = resampleSinc(samples, w.SampleRate, s.sampleRate); err != nil {
			return nil, fmt.Errorf("wavfile: %s: %w", s.path, err)
		}
	default:
		samples = audio.Resample(samples, w.SampleRate, s.sampleRate)
	}

	var frames []audio.Frame
	chunker := audio.NewChunker(s.chunkSize)
	emit := func(chunk []float32) {
		ts := time.Duration(len(frames)*s.chunkSize) * time.Second / time.Duration(s.sampleRate)
		frames = append(frames, audio.Frame{Samples: chunk, Timestamp: ts})
	}
	chunker.Write(samples, emit)
	if pending := chunker.Pending(); pending > 0 {
		chunker.Write(make([]float32, s.chunkSize-pending), emit)
	}
	return frames, nil
}

func resampleSinc(samples []float32, srcRate, dstRate int) ([]float32, error) {
	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("resampler: %w", err)
	}
	in := make([]float64, len(samples))
	for i, v := range samples {
		in[i] = float64(v)
	}
	out, err := r.Process(in)
	if err != nil {
		return nil, fmt.Errorf("resample: %w", err)
	}
	res := make([]float32, len(out))
	for i, v := range out {
		res[i] = float32(v)
	}
	return res, nil
}

// Close stops a running replay and waits for the replay goroutine to exit.
func (s *Source) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	s.wg.Wait()
	return nil
}

var _ audio.Source = (*Source)(nil)
