package mic

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/MrWong99/livecaptions/pkg/audio"
)

func f32le(n int) []byte {
	b := make([]byte, 4*n)
	for i := range n {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(0.25))
	}
	return b
}

func newCaptureSource(t *testing.T) (*Source, *audio.Queue) {
	t.Helper()
	s, err := New(WithChunkSize(4))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.chunker = audio.NewChunker(4)
	return s, audio.NewQueue()
}

func pop(t *testing.T, q *audio.Queue) audio.Frame {
	t.Helper()
	f, ok := q.TryPop()
	if !ok {
		t.Fatal("queue empty")
	}
	return f
}

func TestCapture_CleanFramesHaveNoStatus(t *testing.T) {
	s, q := newCaptureSource(t)
	s.capture(q, f32le(8), 8)
	if q.Len() != 2 {
		t.Fatalf("frames = %d, want 2", q.Len())
	}
	for range 2 {
		if f := pop(t, q); f.Status != nil || len(f.Samples) != 4 {
			t.Errorf("frame = %+v, want 4 clean samples", f)
		}
	}
}

func TestCapture_UnexpectedStopMarksNextFrame(t *testing.T) {
	s, q := newCaptureSource(t)
	s.stopped()
	s.capture(q, f32le(8), 8)

	first := pop(t, q)
	if !errors.Is(first.Status, ErrDeviceStopped) {
		t.Errorf("first frame status = %v, want ErrDeviceStopped", first.Status)
	}
	if second := pop(t, q); second.Status != nil {
		t.Errorf("second frame status = %v, want nil", second.Status)
	}
}

func TestCapture_ShortBuffer(t *testing.T) {
	s, q := newCaptureSource(t)
	s.capture(q, f32le(4), 6)
	if f := pop(t, q); !errors.Is(f.Status, ErrShortBuffer) {
		t.Errorf("status = %v, want ErrShortBuffer", f.Status)
	}
}

func TestCapture_StopDuringCloseIsQuiet(t *testing.T) {
	s, q := newCaptureSource(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	s.stopped()
	s.capture(q, f32le(4), 4)
	if f := pop(t, q); f.Status != nil {
		t.Errorf("status = %v, want nil after Close", f.Status)
	}
}
