package segment

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/livecaptions/internal/observe"
	"github.com/MrWong99/livecaptions/pkg/audio"
	"github.com/MrWong99/livecaptions/pkg/provider/stt"
	sttmock "github.com/MrWong99/livecaptions/pkg/provider/stt/mock"
	"github.com/MrWong99/livecaptions/pkg/provider/vad"
	vadmock "github.com/MrWong99/livecaptions/pkg/provider/vad/mock"
)

// Tiny geometry so buffers are easy to reason about: 16 samples per second,
// 4-sample frames (0.25 s), a lookback of 8 samples and a 1 s cap.
const (
	testRate  = 16
	testChunk = 4
)

func testConfig() Config {
	return Config{
		SampleRate:           testRate,
		ChunkSize:            testChunk,
		LookbackChunks:       2,
		MaxSpeech:            time.Second,
		MinRefresh:           time.Hour,
		SuppressPollInterval: time.Millisecond,
	}
}

// frame returns a frame whose samples all equal v.
func frame(v float32) audio.Frame {
	s := make([]float32, testChunk)
	for i := range s {
		s[i] = v
	}
	return audio.Frame{Samples: s}
}

// samples returns the concatenation of frames with the given values.
func samples(vals ...float32) []float32 {
	var out []float32
	for _, v := range vals {
		out = append(out, frame(v).Samples...)
	}
	return out
}

// fakeDisplay records every caption shown.
type fakeDisplay struct {
	mu    sync.Mutex
	shown []string
}

func (d *fakeDisplay) Show(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shown = append(d.shown, text)
	return nil
}

func (d *fakeDisplay) Shown() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.shown)
}

// fakeSink records delivered captions.
type fakeSink struct {
	mu       sync.Mutex
	finals   []string
	interims []string
	err      error
}

func (s *fakeSink) OnFinalCaption(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finals = append(s.finals, text)
	return s.err
}

func (s *fakeSink) OnInterimCaption(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interims = append(s.interims, text)
	return s.err
}

func (s *fakeSink) Finals() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.finals)
}

func (s *fakeSink) Interims() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.interims)
}

type harness struct {
	loop    *Loop
	q       *audio.Queue
	det     *vadmock.Detector
	tr      *sttmock.Transcriber
	display *fakeDisplay
	sink    *fakeSink
	reader  *sdkmetric.ManualReader
}

func newHarness(t *testing.T, cfg Config, det *vadmock.Detector, tr *sttmock.Transcriber, opts ...Option) *harness {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	if tr.Rate == 0 {
		tr.Rate = testRate
	}
	h := &harness{
		q:       audio.NewQueue(),
		det:     det,
		tr:      tr,
		display: &fakeDisplay{},
		sink:    &fakeSink{},
		reader:  reader,
	}
	opts = append([]Option{
		WithDisplay(h.display),
		WithSink("test", h.sink),
		WithMetrics(m),
	}, opts...)
	h.loop, err = New(cfg, h.q, det, tr, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h
}

// push enqueues frames with values 1..n.
func (h *harness) push(n int) {
	for i := 1; i <= n; i++ {
		h.q.Push(frame(float32(i)))
	}
}

// runToEnd closes the queue and runs the loop until input is exhausted.
func (h *harness) runToEnd(t *testing.T) {
	t.Helper()
	h.q.Close()
	if err := h.loop.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func (h *harness) counter(t *testing.T, name, attrKey, attrVal string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := h.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %s is %T, want Sum[int64]", name, m.Data)
			}
			for _, dp := range sum.DataPoints {
				if attrKey != "" {
					v, ok := dp.Attributes.Value(attribute.Key(attrKey))
					if !ok || v.AsString() != attrVal {
						continue
					}
				}
				total += dp.Value
			}
		}
	}
	return total
}

func TestNew_SampleRateMismatch(t *testing.T) {
	cfg := testConfig()
	_, err := New(cfg, audio.NewQueue(), &vadmock.Detector{}, &sttmock.Transcriber{Rate: 8000})
	if !errors.Is(err, ErrSampleRateMismatch) {
		t.Fatalf("err = %v, want ErrSampleRateMismatch", err)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{}, audio.NewQueue(), &vadmock.Detector{}, &sttmock.Transcriber{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, field := range []string{"sample_rate", "chunk_size", "lookback_chunks", "max_speech", "min_refresh"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error %q does not mention %s", err, field)
		}
	}
}

func TestNew_NilCollaborators(t *testing.T) {
	if _, err := New(testConfig(), nil, nil, nil); err == nil {
		t.Fatal("expected error for nil queue, detector and transcriber")
	}
}

func TestLoop_IdleKeepsOnlyLookback(t *testing.T) {
	var maxBuf int
	var h *harness
	det := &vadmock.Detector{EventFunc: func(int, []float32) (vad.Event, error) {
		maxBuf = max(maxBuf, len(h.loop.buf))
		return vad.EventNone, nil
	}}
	h = newHarness(t, testConfig(), det, &sttmock.Transcriber{Text: "unused"})

	h.push(20)
	h.runToEnd(t)

	if maxBuf != 8 {
		t.Errorf("max idle buffer = %d samples, want lookback of 8", maxBuf)
	}
	if h.loop.recording {
		t.Error("loop left IDLE without a start event")
	}
	if n := len(h.tr.Calls()); n != 0 {
		t.Errorf("transcriber called %d times, want 0", n)
	}
	if got := h.det.ProcessCount(); got != 20 {
		t.Errorf("detector saw %d frames, want 20", got)
	}
}

func TestLoop_DetectorGetsRawFrames(t *testing.T) {
	det := &vadmock.Detector{}
	h := newHarness(t, testConfig(), det, &sttmock.Transcriber{})
	h.push(3)
	h.runToEnd(t)

	for i, f := range det.Frames {
		if !slices.Equal(f, frame(float32(i+1)).Samples) {
			t.Errorf("frame %d = %v, want the raw frame", i, f)
		}
	}
}

func TestLoop_StartEndFinalizesOnce(t *testing.T) {
	det := &vadmock.Detector{Events: []vad.Event{
		vad.EventNone, vad.EventNone, vad.EventNone, vad.EventNone,
		vad.EventStart, vad.EventNone, vad.EventEnd,
	}}
	h := newHarness(t, testConfig(), det, &sttmock.Transcriber{Text: "hello"})

	h.push(7)
	h.runToEnd(t)

	calls := h.tr.Calls()
	if len(calls) != 1 {
		t.Fatalf("transcriber called %d times, want 1", len(calls))
	}
	// Frames 4 and 5 were the lookback window when speech started.
	if want := samples(4, 5, 6, 7); !slices.Equal(calls[0].Samples, want) {
		t.Errorf("transcribed %v, want %v", calls[0].Samples, want)
	}
	if got := h.loop.Cache().Entries(); !slices.Equal(got, []string{"hello"}) {
		t.Errorf("cache = %q, want [hello]", got)
	}
	if got := h.display.Shown(); !slices.Equal(got, []string{"hello"}) {
		t.Errorf("display = %q, want [hello]", got)
	}
	if got := h.sink.Finals(); !slices.Equal(got, []string{"hello"}) {
		t.Errorf("sink finals = %q, want [hello]", got)
	}
	if h.det.SoftResetCallCount != 1 {
		t.Errorf("soft resets = %d, want 1", h.det.SoftResetCallCount)
	}
	if h.loop.recording || len(h.loop.buf) != 0 {
		t.Errorf("after end: recording=%v buf=%d, want IDLE with empty buffer", h.loop.recording, len(h.loop.buf))
	}
	if got := h.counter(t, "livecaptions.utterances", "reason", observe.ReasonVADEnd); got != 1 {
		t.Errorf("vad_end utterances = %d, want 1", got)
	}
}

func TestLoop_CaptureStatusKeepsIngesting(t *testing.T) {
	det := &vadmock.Detector{Events: []vad.Event{vad.EventStart, vad.EventNone, vad.EventEnd}}
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn}))
	h := newHarness(t, testConfig(), det, &sttmock.Transcriber{Text: "still here"}, WithLogger(logger))

	h.q.Push(frame(1))
	overflow := frame(2)
	overflow.Status = errors.New("input overflow")
	h.q.Push(overflow)
	h.q.Push(frame(3))
	h.runToEnd(t)

	if got := det.ProcessCount(); got != 3 {
		t.Errorf("detector saw %d frames, want 3", got)
	}
	if !slices.Equal(det.Frames[1], overflow.Samples) {
		t.Errorf("frame with status not fed to the detector: %v", det.Frames[1])
	}
	calls := h.tr.Calls()
	if len(calls) != 1 {
		t.Fatalf("transcriber called %d times, want 1", len(calls))
	}
	if want := samples(1, 2, 3); !slices.Equal(calls[0].Samples, want) {
		t.Errorf("transcribed %v, want %v", calls[0].Samples, want)
	}
	if !strings.Contains(logs.String(), "input overflow") {
		t.Errorf("capture status not logged: %q", logs.String())
	}
	if got := h.loop.Cache().Entries(); !slices.Equal(got, []string{"still here"}) {
		t.Errorf("cache = %q", got)
	}
}

func TestLoop_IgnoresStrayEvents(t *testing.T) {
	// end while idle and start while recording are no-ops.
	det := &vadmock.Detector{Events: []vad.Event{
		vad.EventEnd, vad.EventStart, vad.EventStart, vad.EventEnd,
	}}
	h := newHarness(t, testConfig(), det, &sttmock.Transcriber{Text: "once"})
	h.push(4)
	h.runToEnd(t)

	if n := len(h.tr.Calls()); n != 1 {
		t.Fatalf("transcriber called %d times, want 1", n)
	}
	if want := samples(1, 2, 3, 4); !slices.Equal(h.tr.Calls()[0].Samples, want) {
		t.Errorf("transcribed %v, want %v", h.tr.Calls()[0].Samples, want)
	}
}

func TestLoop_MaxSpeechForcesFinalize(t *testing.T) {
	det := &vadmock.Detector{Events: []vad.Event{
		vad.EventStart, vad.EventNone, vad.EventNone, vad.EventNone, vad.EventNone,
		vad.EventStart, vad.EventNone, vad.EventNone,
	}}
	h := newHarness(t, testConfig(), det, &sttmock.Transcriber{Results: []string{"capped", "tail"}})

	h.push(8)
	h.runToEnd(t)

	calls := h.tr.Calls()
	if len(calls) != 2 {
		t.Fatalf("transcriber called %d times, want 2 (cap, then end of input)", len(calls))
	}
	// 20 samples is the first length over the 16-sample (1 s) cap.
	if want := samples(1, 2, 3, 4, 5); !slices.Equal(calls[0].Samples, want) {
		t.Errorf("capped utterance = %v, want %v", calls[0].Samples, want)
	}
	if want := samples(6, 7, 8); !slices.Equal(calls[1].Samples, want) {
		t.Errorf("second utterance = %v, want %v", calls[1].Samples, want)
	}
	if !slices.Equal(h.det.SoftResetAt, []int{5}) {
		t.Errorf("soft reset after frames %v, want [5]", h.det.SoftResetAt)
	}
	if got := h.counter(t, "livecaptions.utterances", "reason", observe.ReasonMaxDuration); got != 1 {
		t.Errorf("max_duration utterances = %d, want 1", got)
	}
	if got := h.loop.Cache().Entries(); !slices.Equal(got, []string{"capped", "tail"}) {
		t.Errorf("cache = %q", got)
	}
}

func TestLoop_EndOnCapFrameWins(t *testing.T) {
	det := &vadmock.Detector{Events: []vad.Event{
		vad.EventStart, vad.EventNone, vad.EventNone, vad.EventNone, vad.EventEnd,
	}}
	h := newHarness(t, testConfig(), det, &sttmock.Transcriber{Text: "done"})
	h.push(5)
	h.runToEnd(t)

	if n := len(h.tr.Calls()); n != 1 {
		t.Fatalf("transcriber called %d times, want 1", n)
	}
	if got := h.counter(t, "livecaptions.utterances", "reason", observe.ReasonVADEnd); got != 1 {
		t.Errorf("vad_end utterances = %d, want 1", got)
	}
	if got := h.counter(t, "livecaptions.utterances", "reason", observe.ReasonMaxDuration); got != 0 {
		t.Errorf("max_duration utterances = %d, want 0", got)
	}
}

func TestLoop_InterimRefresh(t *testing.T) {
	cfg := testConfig()
	cfg.MinRefresh = 200 * time.Millisecond

	var (
		mu  sync.Mutex
		now = time.Unix(0, 0)
	)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	det := &vadmock.Detector{EventFunc: func(i int, _ []float32) (vad.Event, error) {
		mu.Lock()
		now = now.Add(300 * time.Millisecond)
		mu.Unlock()
		switch i {
		case 0:
			return vad.EventStart, nil
		case 3:
			return vad.EventEnd, nil
		}
		return vad.EventNone, nil
	}}
	tr := &sttmock.Transcriber{Results: []string{"he", "hello", "hello world"}}
	h := newHarness(t, cfg, det, tr, WithClock(clock))

	h.push(4)
	h.runToEnd(t)

	calls := tr.Calls()
	if len(calls) != 3 {
		t.Fatalf("transcriber called %d times, want 3", len(calls))
	}
	if got := []int{len(calls[0].Samples), len(calls[1].Samples), len(calls[2].Samples)}; !slices.Equal(got, []int{8, 12, 16}) {
		t.Errorf("transcribed lengths = %v, want [8 12 16]", got)
	}
	if got := h.display.Shown(); !slices.Equal(got, []string{"he", "hello", "hello world"}) {
		t.Errorf("display = %q", got)
	}
	if got := h.loop.Cache().Entries(); !slices.Equal(got, []string{"hello world"}) {
		t.Errorf("cache = %q, interim captions must not be cached", got)
	}
	if got := h.sink.Interims(); !slices.Equal(got, []string{"he", "hello"}) {
		t.Errorf("sink interims = %q", got)
	}
	if got := h.counter(t, "livecaptions.interim.captions", "", ""); got != 2 {
		t.Errorf("interim captions = %d, want 2", got)
	}
}

func TestLoop_SuppressionFinalizesSilentlyAndDrains(t *testing.T) {
	var (
		h     *harness
		polls int
	)
	gate := GateFunc(func(context.Context) (bool, error) {
		polls++
		switch polls {
		case 4:
			// Captured while the consumer speaks; must never be processed.
			h.q.Push(frame(99))
			return true, nil
		case 5:
			h.q.Close()
		}
		return false, nil
	})
	det := &vadmock.Detector{Events: []vad.Event{vad.EventStart}}
	h = newHarness(t, testConfig(), det, &sttmock.Transcriber{Text: "hello"}, WithGate(gate))

	h.push(6)
	if err := h.loop.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := h.det.ProcessCount(); got != 3 {
		t.Errorf("detector saw %d frames, want 3", got)
	}
	if n := len(h.tr.Calls()); n != 1 {
		t.Fatalf("transcriber called %d times, want 1", n)
	}
	if got := h.display.Shown(); len(got) != 0 {
		t.Errorf("display = %q, suppressed finalize must not be shown", got)
	}
	if got := h.sink.Finals(); !slices.Equal(got, []string{"hello"}) {
		t.Errorf("sink finals = %q, want [hello]", got)
	}
	if h.q.Len() != 0 {
		t.Errorf("queue len = %d, want drained", h.q.Len())
	}
	if h.det.SoftResetCallCount != 1 {
		t.Errorf("soft resets = %d, want 1", h.det.SoftResetCallCount)
	}
	if got := h.counter(t, "livecaptions.frames.dropped", "", ""); got != 4 {
		t.Errorf("dropped frames = %d, want 4", got)
	}
	if got := h.counter(t, "livecaptions.utterances", "reason", observe.ReasonSuppressed); got != 1 {
		t.Errorf("suppressed utterances = %d, want 1", got)
	}
}

func TestLoop_TrivialCaptionNotDelivered(t *testing.T) {
	det := &vadmock.Detector{Events: []vad.Event{vad.EventStart, vad.EventEnd}}
	h := newHarness(t, testConfig(), det, &sttmock.Transcriber{Text: " a "})
	h.push(2)
	h.runToEnd(t)

	if got := h.sink.Finals(); len(got) != 0 {
		t.Errorf("sink finals = %q, want none for a one-character caption", got)
	}
	if h.loop.Cache().Len() != 1 {
		t.Errorf("cache len = %d, want 1", h.loop.Cache().Len())
	}
}

func TestLoop_GateErrorsDoNotStopListening(t *testing.T) {
	var calls int
	gate := GateFunc(func(context.Context) (bool, error) {
		calls++
		return false, errors.New("state server down")
	})
	h := newHarness(t, testConfig(), &vadmock.Detector{}, &sttmock.Transcriber{}, WithGate(gate))

	h.push(5)
	h.runToEnd(t)

	if got := h.det.ProcessCount(); got != 5 {
		t.Errorf("detector saw %d frames, want 5", got)
	}
	if calls != 3 {
		t.Errorf("gate polled %d times, want 3 before the breaker opens", calls)
	}
	if got := h.counter(t, "livecaptions.gate.errors", "", ""); got != 3 {
		t.Errorf("gate errors = %d, want 3", got)
	}
}

func TestLoop_SinkErrorDoesNotCorruptState(t *testing.T) {
	det := &vadmock.Detector{Events: []vad.Event{vad.EventStart, vad.EventEnd, vad.EventStart, vad.EventEnd}}
	h := newHarness(t, testConfig(), det, &sttmock.Transcriber{Results: []string{"one", "two"}})
	h.sink.err = errors.New("unreachable")

	h.push(4)
	h.runToEnd(t)

	if got := h.loop.Cache().Entries(); !slices.Equal(got, []string{"one", "two"}) {
		t.Errorf("cache = %q", got)
	}
	if got := h.counter(t, "livecaptions.sink.errors", "sink", "test"); got != 2 {
		t.Errorf("sink errors = %d, want 2", got)
	}
}

func TestLoop_VADErrorTreatedAsNoEvent(t *testing.T) {
	det := &vadmock.Detector{
		Events: []vad.Event{vad.EventStart},
		Errs:   []error{errors.New("onnx failure")},
	}
	h := newHarness(t, testConfig(), det, &sttmock.Transcriber{Text: "x"})
	h.push(3)
	h.runToEnd(t)

	if n := len(h.tr.Calls()); n != 0 {
		t.Errorf("transcriber called %d times, want 0", n)
	}
}

func TestLoop_TranscriptionErrorDropsUtterance(t *testing.T) {
	det := &vadmock.Detector{Events: []vad.Event{vad.EventStart, vad.EventEnd, vad.EventStart, vad.EventEnd}}
	tr := &sttmock.Transcriber{
		Results: []string{"", "second"},
		Errs:    []error{errors.New("timeout")},
	}
	h := newHarness(t, testConfig(), det, tr)
	h.push(4)
	h.runToEnd(t)

	if got := h.loop.Cache().Entries(); !slices.Equal(got, []string{"second"}) {
		t.Errorf("cache = %q, want only the successful utterance", got)
	}
	if h.det.SoftResetCallCount != 2 {
		t.Errorf("soft resets = %d, want 2", h.det.SoftResetCallCount)
	}
}

func TestLoop_CancelFlushesOpenUtterance(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	det := &vadmock.Detector{EventFunc: func(i int, _ []float32) (vad.Event, error) {
		switch i {
		case 0:
			return vad.EventStart, nil
		case 1:
			cancel()
		}
		return vad.EventNone, nil
	}}
	h := newHarness(t, testConfig(), det, &sttmock.Transcriber{Text: "last words"})

	h.push(4)
	err := h.loop.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}

	calls := h.tr.Calls()
	if len(calls) != 1 {
		t.Fatalf("transcriber called %d times, want 1", len(calls))
	}
	if want := samples(1, 2, 3, 4); !slices.Equal(calls[0].Samples, want) {
		t.Errorf("flushed %v, want queued frames included: %v", calls[0].Samples, want)
	}
	if got := h.display.Shown(); len(got) != 0 {
		t.Errorf("display = %q, flush must be silent", got)
	}
	if got := h.sink.Finals(); !slices.Equal(got, []string{"last words"}) {
		t.Errorf("sink finals = %q", got)
	}
	if h.q.Len() != 0 {
		t.Errorf("queue len = %d, want 0", h.q.Len())
	}
	if got := h.counter(t, "livecaptions.utterances", "reason", observe.ReasonShutdown); got != 1 {
		t.Errorf("shutdown utterances = %d, want 1", got)
	}
}

func TestLoop_CancelWhileIdle(t *testing.T) {
	h := newHarness(t, testConfig(), &vadmock.Detector{}, &sttmock.Transcriber{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- h.loop.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if n := len(h.tr.Calls()); n != 0 {
		t.Errorf("transcriber called %d times while idle, want 0", n)
	}
}

func TestLoop_Corrector(t *testing.T) {
	det := &vadmock.Detector{Events: []vad.Event{vad.EventStart, vad.EventEnd}}
	h := newHarness(t, testConfig(), det, &sttmock.Transcriber{Text: "kubernetis"},
		WithCorrector(correctorFunc(func(s string) string { return strings.ReplaceAll(s, "kubernetis", "Kubernetes") })))
	h.push(2)
	h.runToEnd(t)

	if got := h.loop.Cache().Entries(); !slices.Equal(got, []string{"Kubernetes"}) {
		t.Errorf("cache = %q", got)
	}
}

func TestLoop_Summary(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	inner := &sttmock.Transcriber{Rate: testRate, Results: []string{"hello", "world"}}
	metered, err := stt.NewMetered(context.Background(), inner, stt.WithMeterProvider(mp))
	if err != nil {
		t.Fatalf("NewMetered: %v", err)
	}

	q := audio.NewQueue()
	det := &vadmock.Detector{Events: []vad.Event{vad.EventStart, vad.EventEnd, vad.EventStart, vad.EventEnd}}
	l, err := New(testConfig(), q, det, metered)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := range 4 {
		q.Push(frame(float32(i)))
	}
	q.Close()
	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	s := l.Summary()
	if s.Inferences != 2 {
		t.Errorf("Inferences = %d, want 2", s.Inferences)
	}
	if s.Utterances != 2 || s.Captions != "hello world" {
		t.Errorf("Summary captions = %d %q", s.Utterances, s.Captions)
	}
	if s.RealtimeFactor < 0 {
		t.Errorf("RealtimeFactor = %f, want >= 0", s.RealtimeFactor)
	}
}

type correctorFunc func(string) string

func (f correctorFunc) Apply(s string) string { return f(s) }
