// Package state holds the small piece of shared state that connects the
// captioning loop with downstream consumers: the current prompt, a
// temperature value, a paused flag, a speaking flag and the text queued for
// speech.
//
// [Store] is the in-process value. [Server] exposes it over HTTP/JSON and
// [Client] talks to that server; the client doubles as the captioning loop's
// suppression gate and caption sink.
package state

import (
	"log/slog"
	"math"
	"sync/atomic"
)

// DefaultPrompt is the prompt a new [Store] starts with.
const DefaultPrompt = " "

// Store is the shared state. Every field is read and written atomically, so a
// Store can be shared by handle between goroutines without further locking.
type Store struct {
	prompt      atomic.Pointer[string]
	temperature atomic.Uint64
	paused      atomic.Bool
	speaking    atomic.Bool
	speech      atomic.Pointer[string]

	log *slog.Logger
}

// NewStore returns a Store holding [DefaultPrompt], temperature 0, not paused,
// not speaking and no speech. A nil logger uses slog.Default().
func NewStore(log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	s := &Store{log: log}
	prompt, speech := DefaultPrompt, ""
	s.prompt.Store(&prompt)
	s.speech.Store(&speech)
	return s
}

// SetPrompt replaces the prompt and reports whether it changed.
func (s *Store) SetPrompt(p string) bool {
	for {
		old := s.prompt.Load()
		if *old == p {
			return false
		}
		if s.prompt.CompareAndSwap(old, &p) {
			s.log.Info("prompt changed", "prompt", p)
			return true
		}
	}
}

// Prompt returns the current prompt.
func (s *Store) Prompt() string { return *s.prompt.Load() }

// SetTemperature sets the temperature.
func (s *Store) SetTemperature(t float64) {
	s.temperature.Store(math.Float64bits(t))
	s.log.Info("temperature changed", "temperature", t)
}

// Temperature returns the current temperature.
func (s *Store) Temperature() float64 { return math.Float64frombits(s.temperature.Load()) }

// Pause sets the paused flag.
func (s *Store) Pause() { s.paused.Store(true) }

// Unpause clears the paused flag.
func (s *Store) Unpause() { s.paused.Store(false) }

// Paused reports the paused flag.
func (s *Store) Paused() bool { return s.paused.Load() }

// SetSpeaking sets whether a consumer is currently speaking.
func (s *Store) SetSpeaking(on bool) { s.speaking.Store(on) }

// Speaking reports whether a consumer is currently speaking.
func (s *Store) Speaking() bool { return s.speaking.Load() }

// Speak queues text for speech, replacing anything queued before.
func (s *Store) Speak(text string) { s.speech.Store(&text) }

// Speech returns the text most recently queued by [Store.Speak].
func (s *Store) Speech() string { return *s.speech.Load() }
