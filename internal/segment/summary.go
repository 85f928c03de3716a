package segment

import (
	"log/slog"
	"time"

	"github.com/MrWong99/livecaptions/pkg/provider/stt"
)

// UsageReporter is implemented by transcribers that keep usage counters, such
// as [stt.Metered].
type UsageReporter interface {
	Usage() stt.Usage
}

// Summary describes a finished captioning session.
type Summary struct {
	// Inferences is the number of transcription calls, interim ones included.
	Inferences int64

	// MeanLatency is the mean wall time of one transcription call.
	MeanLatency time.Duration

	// RealtimeFactor is seconds of speech transcribed per second of
	// inference. Zero when nothing was transcribed.
	RealtimeFactor float64

	// Utterances is the number of cached captions.
	Utterances int

	// Captions is every cached caption joined with single spaces.
	Captions string
}

// Summary reports usage and the cached captions. Usage fields are zero unless
// the transcriber implements [UsageReporter]. Call it after [Loop.Run] has
// returned.
func (l *Loop) Summary() Summary {
	s := Summary{
		Utterances: l.cache.Len(),
		Captions:   l.cache.Joined(),
	}
	if ur, ok := l.tr.(UsageReporter); ok {
		u := ur.Usage()
		s.Inferences = u.Inferences
		s.MeanLatency = u.MeanLatency()
		s.RealtimeFactor = u.RealtimeFactor()
	}
	return s
}

// LogValue implements [slog.LogValuer].
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("inferences", s.Inferences),
		slog.Duration("mean_latency", s.MeanLatency),
		slog.Float64("realtime_factor", s.RealtimeFactor),
		slog.Int("utterances", s.Utterances),
	)
}
