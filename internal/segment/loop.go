// Package segment implements the speech segmentation and captioning loop.
//
// A [Loop] consumes fixed-size frames from an [audio.Queue], keeps a short
// lookback window while idle, and feeds each raw frame to a voice-activity
// [vad.Detector]. Once speech starts it accumulates audio until the detector
// reports the end, the utterance hits the length cap, or an external [Gate]
// asks the loop to stop listening. Each finished utterance is transcribed,
// shown, cached and handed to the configured sinks. While speech is ongoing,
// interim captions are refreshed at most every MinRefresh.
//
// The loop is single-threaded: it owns its buffer, the detector and the
// transcriber, and processes one frame to completion before taking the next.
// Transcription blocks the loop, so frames queue up while it runs.
package segment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrWong99/livecaptions/internal/caption"
	"github.com/MrWong99/livecaptions/internal/observe"
	"github.com/MrWong99/livecaptions/internal/resilience"
	"github.com/MrWong99/livecaptions/pkg/audio"
	"github.com/MrWong99/livecaptions/pkg/provider/stt"
	"github.com/MrWong99/livecaptions/pkg/provider/vad"
)

// finalizeTimeout bounds one final transcription. Final transcriptions are
// detached from the run context so cancellation never discards speech.
const finalizeTimeout = 30 * time.Second

// Option is a functional option for configuring a [Loop].
type Option func(*Loop)

// WithGate sets the suppression gate. Without a gate the loop never suppresses.
func WithGate(g Gate) Option {
	return func(l *Loop) { l.gate = g }
}

// WithGateBreaker overrides the circuit breaker that guards gate polls.
func WithGateBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(l *Loop) { l.gateBreakerCfg = cfg }
}

// WithSink registers a caption sink under name. May be given several times.
func WithSink(name string, s Sink) Option {
	return func(l *Loop) { l.pendingSinks = append(l.pendingSinks, namedSink{name: name, sink: s}) }
}

// WithDisplay sets where captions are shown. Without a display captions are
// only cached and delivered to sinks.
func WithDisplay(d Display) Option {
	return func(l *Loop) { l.display = d }
}

// WithCache sets the caption cache shared with the display. Default: a fresh
// [caption.Cache].
func WithCache(c *caption.Cache) Option {
	return func(l *Loop) { l.cache = c }
}

// WithCorrector sets a text corrector applied to every caption.
func WithCorrector(c Corrector) Option {
	return func(l *Loop) { l.corrector = c }
}

// WithMetrics sets the metrics instruments. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(l *Loop) { l.metrics = m }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(l *Loop) { l.log = log }
}

// WithClock overrides the wall clock used for interim refresh timing.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

// Loop is the segmentation state machine. Create one with [New] and drive it
// with [Loop.Run]; a Loop must not be run more than once.
type Loop struct {
	cfg Config
	q   *audio.Queue
	det vad.Detector
	tr  stt.Transcriber

	gate           Gate
	gateBreaker    *resilience.CircuitBreaker
	gateBreakerCfg resilience.CircuitBreakerConfig
	sinks          *MultiSink
	pendingSinks   []namedSink
	display        Display
	cache          *caption.Cache
	corrector      Corrector
	metrics        *observe.Metrics
	log            *slog.Logger
	now            func() time.Time

	// Owned by Run.
	buf        []float32
	recording  bool
	lastUpdate time.Time
}

// New validates cfg and returns a [Loop] reading frames from q.
//
// It fails with [ErrSampleRateMismatch] when cfg.SampleRate differs from
// tr.SampleRate(), before any audio is touched.
func New(cfg Config, q *audio.Queue, det vad.Detector, tr stt.Transcriber, opts ...Option) (*Loop, error) {
	var errs []error
	if q == nil {
		errs = append(errs, errors.New("queue is nil"))
	}
	if det == nil {
		errs = append(errs, errors.New("detector is nil"))
	}
	if tr == nil {
		errs = append(errs, errors.New("transcriber is nil"))
	}
	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("segment: new loop: %w", err)
	}
	if rate := tr.SampleRate(); rate != cfg.SampleRate {
		return nil, fmt.Errorf("%w: loop uses %d Hz, transcriber requires %d Hz", ErrSampleRateMismatch, cfg.SampleRate, rate)
	}

	l := &Loop{
		cfg: cfg,
		q:   q,
		det: det,
		tr:  tr,
		gateBreakerCfg: resilience.CircuitBreakerConfig{
			MaxFailures:  3,
			ResetTimeout: 5 * time.Second,
			HalfOpenMax:  1,
		},
		log: slog.Default(),
		now: time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	if l.metrics == nil {
		l.metrics = observe.DefaultMetrics()
	}
	if l.cache == nil {
		l.cache = caption.NewCache()
	}
	l.sinks = NewMultiSink(l.metrics)
	for _, ns := range l.pendingSinks {
		l.sinks.Add(ns.name, ns.sink)
	}
	l.pendingSinks = nil
	if l.gate != nil {
		bc := l.gateBreakerCfg
		if bc.Name == "" {
			bc.Name = "gate"
		}
		if bc.Logger == nil {
			bc.Logger = l.log
		}
		l.gateBreaker = resilience.NewCircuitBreaker(bc)
	}
	l.buf = make([]float32, 0, cfg.LookbackSamples()+cfg.ChunkSize)
	return l, nil
}

// Cache returns the loop's caption cache.
func (l *Loop) Cache() *caption.Cache { return l.cache }

// Run processes frames until ctx is cancelled or the queue is closed and
// drained.
//
// On cancellation, an utterance in progress is completed from whatever frames
// are still queued and finalized without display (it is still cached and
// delivered to sinks); Run then returns an error wrapping ctx's error. When the
// queue is closed, the utterance in progress is finalized normally and Run
// returns nil.
func (l *Loop) Run(ctx context.Context) error {
	bg := context.WithoutCancel(ctx)
	l.metrics.ActiveSessions.Add(bg, 1)
	defer l.metrics.ActiveSessions.Add(bg, -1)

	for {
		if err := ctx.Err(); err != nil {
			return l.teardown(ctx, err)
		}

		if l.suppressed(ctx) {
			l.suppress(ctx)
			if err := sleep(ctx, l.cfg.SuppressPollInterval); err != nil {
				return l.teardown(ctx, err)
			}
			continue
		}

		f, err := l.q.Pop(ctx)
		if errors.Is(err, audio.ErrQueueClosed) {
			l.log.Info("audio input ended")
			if l.recording {
				l.recording = false
				l.finalize(ctx, observe.ReasonShutdown, true)
			}
			return nil
		}
		if err != nil {
			return l.teardown(ctx, err)
		}
		l.process(ctx, f)
	}
}

// process advances the state machine by one frame.
func (l *Loop) process(ctx context.Context, f audio.Frame) {
	if f.Status != nil {
		l.log.Warn("audio capture status", "status", f.Status, "at", f.Timestamp)
	}
	l.metrics.FramesProcessed.Add(ctx, 1)

	l.buf = append(l.buf, f.Samples...)
	if !l.recording {
		l.trimToLookback()
	}

	ev, err := l.det.Process(f.Samples)
	if err != nil {
		l.log.Warn("voice activity detection failed", "error", err)
		ev = vad.EventNone
	}

	switch {
	case ev == vad.EventStart && !l.recording:
		l.recording = true
		l.lastUpdate = l.now()
		l.log.Debug("speech started", "at", f.Timestamp)

	case ev == vad.EventEnd && l.recording:
		l.recording = false
		l.finalize(ctx, observe.ReasonVADEnd, true)
		l.det.SoftReset()

	case ev == vad.EventNone && l.recording:
		if l.bufferedDuration() > l.cfg.MaxSpeech {
			l.recording = false
			l.finalize(ctx, observe.ReasonMaxDuration, true)
			l.det.SoftReset()
		} else if l.now().Sub(l.lastUpdate) > l.cfg.MinRefresh {
			l.interim(ctx)
			l.lastUpdate = l.now()
		}
	}
}

func (l *Loop) trimToLookback() {
	if n := l.cfg.LookbackSamples(); len(l.buf) > n {
		l.buf = append(l.buf[:0], l.buf[len(l.buf)-n:]...)
	}
}

func (l *Loop) bufferedDuration() time.Duration {
	return time.Duration(len(l.buf)) * time.Second / time.Duration(l.cfg.SampleRate)
}

// finalize transcribes the whole buffer as one utterance and clears it. With
// show false the caption is not displayed but still cached and delivered.
func (l *Loop) finalize(ctx context.Context, reason string, show bool) {
	samples := l.buf
	l.buf = make([]float32, 0, cap(samples))
	seconds := float64(len(samples)) / float64(l.cfg.SampleRate)

	ctx, span := observe.StartUtterance(ctx, observe.SpanFinalize, reason, seconds)
	defer span.End()

	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	start := l.now()
	text, err := l.tr.Transcribe(tctx, samples)
	l.metrics.FinalizeDuration.Record(ctx, l.now().Sub(start).Seconds())
	if err != nil {
		observe.FailSpan(span, err, "transcription failed")
		observe.Logger(ctx, l.log).Error("final transcription failed, utterance dropped",
			"reason", reason, "audio_seconds", seconds, "error", err)
		return
	}
	text = l.correct(text)

	if show {
		l.show(text)
	}
	l.cache.Append(text)
	l.metrics.RecordUtterance(ctx, reason, seconds)
	l.log.Debug("caption finalized", "reason", reason, "audio_seconds", seconds, "text", text)

	if nonTrivial(text) {
		if err := l.sinks.OnFinalCaption(ctx, text); err != nil {
			l.log.Warn("caption sink failed", "error", err)
		}
	}
}

// interim shows a partial transcription of the open utterance. Nothing is
// cached.
func (l *Loop) interim(ctx context.Context) {
	ctx, span := observe.StartUtterance(ctx, observe.SpanInterim, "", l.bufferedDuration().Seconds())
	defer span.End()

	start := l.now()
	text, err := l.tr.Transcribe(ctx, l.buf[:len(l.buf):len(l.buf)])
	l.metrics.InterimDuration.Record(ctx, l.now().Sub(start).Seconds())
	if err != nil {
		observe.FailSpan(span, err, "transcription failed")
		l.log.Warn("interim transcription failed", "error", err)
		return
	}
	text = l.correct(text)
	l.metrics.InterimCaptions.Add(ctx, 1)

	l.show(text)
	if nonTrivial(text) {
		if err := l.sinks.OnInterimCaption(ctx, text); err != nil {
			l.log.Warn("caption sink failed", "error", err)
		}
	}
}

// suppressed polls the gate through its breaker. Failures count as not
// suppressed.
func (l *Loop) suppressed(ctx context.Context) bool {
	if l.gate == nil {
		return false
	}
	var on bool
	err := l.gateBreaker.Execute(func() error {
		var err error
		on, err = l.gate.IsSuppressed(ctx)
		return err
	})
	switch {
	case err == nil:
		return on
	case errors.Is(err, resilience.ErrCircuitOpen), ctx.Err() != nil:
	default:
		l.metrics.GateErrors.Add(ctx, 1)
		l.log.Warn("suppression gate unavailable", "error", err)
	}
	return false
}

// suppress closes any open utterance without display and discards everything
// captured so far.
func (l *Loop) suppress(ctx context.Context) {
	if l.recording {
		l.recording = false
		l.finalize(ctx, observe.ReasonSuppressed, false)
		l.det.SoftReset()
	}
	l.buf = l.buf[:0]
	if n := l.q.DrainAll(); n > 0 {
		l.metrics.FramesDropped.Add(ctx, int64(n))
		l.log.Debug("dropped frames while suppressed", "frames", n)
	}
}

// teardown flushes the open utterance after cancellation and returns cause.
func (l *Loop) teardown(ctx context.Context, cause error) error {
	if l.recording {
		for {
			f, ok := l.q.TryPop()
			if !ok {
				break
			}
			l.buf = append(l.buf, f.Samples...)
		}
		l.recording = false
		l.finalize(context.WithoutCancel(ctx), observe.ReasonShutdown, false)
	}
	return fmt.Errorf("segment: run: %w", cause)
}

func (l *Loop) correct(text string) string {
	if l.corrector == nil {
		return text
	}
	return l.corrector.Apply(text)
}

func (l *Loop) show(text string) {
	if l.display == nil {
		return
	}
	if err := l.display.Show(text); err != nil {
		l.log.Warn("caption display failed", "error", err)
	}
}

func nonTrivial(text string) bool {
	return len(strings.TrimSpace(text)) > 1
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
