package segment

import (
	"errors"
	"fmt"
	"time"
)

// ErrSampleRateMismatch is returned by [New] when the loop's sample rate differs
// from the rate the transcriber requires.
var ErrSampleRateMismatch = errors.New("segment: sample rate mismatch")

// Config holds the timing and sizing parameters of a [Loop].
type Config struct {
	// SampleRate of incoming frames in Hz. Must equal the transcriber's rate.
	SampleRate int

	// ChunkSize is the number of samples per frame.
	ChunkSize int

	// LookbackChunks is how many frames of audio are kept while idle, so the
	// onset of speech is not clipped when the detector fires late.
	LookbackChunks int

	// MaxSpeech caps the length of one utterance. Longer speech is finalized
	// and a new utterance begins at the next start event.
	MaxSpeech time.Duration

	// MinRefresh is the minimum interval between interim captions.
	MinRefresh time.Duration

	// SuppressPollInterval is how long the loop waits between gate polls while
	// suppressed.
	SuppressPollInterval time.Duration
}

// DefaultConfig returns the parameters the Silero detector was tuned for:
// 16 kHz audio in 32 ms frames.
func DefaultConfig() Config {
	return Config{
		SampleRate:           16000,
		ChunkSize:            512,
		LookbackChunks:       5,
		MaxSpeech:            15 * time.Second,
		MinRefresh:           200 * time.Millisecond,
		SuppressPollInterval: 100 * time.Millisecond,
	}
}

// LookbackSamples returns the idle buffer size in samples.
func (c Config) LookbackSamples() int { return c.LookbackChunks * c.ChunkSize }

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize))
	}
	if c.LookbackChunks <= 0 {
		errs = append(errs, fmt.Errorf("lookback_chunks must be positive, got %d", c.LookbackChunks))
	}
	if c.MaxSpeech <= 0 {
		errs = append(errs, fmt.Errorf("max_speech must be positive, got %s", c.MaxSpeech))
	}
	if c.MinRefresh <= 0 {
		errs = append(errs, fmt.Errorf("min_refresh must be positive, got %s", c.MinRefresh))
	}
	if c.SuppressPollInterval <= 0 {
		errs = append(errs, fmt.Errorf("suppress_poll_interval must be positive, got %s", c.SuppressPollInterval))
	}
	return errors.Join(errs...)
}
