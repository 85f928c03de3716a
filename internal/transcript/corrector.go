// Package transcript post-processes final captions before they are shown,
// cached or forwarded. The only stage today is vocabulary correction: words
// the transcriber misheard are replaced with the closest configured term.
package transcript

import (
	"log/slog"
	"strings"
	"unicode"

	"github.com/MrWong99/livecaptions/internal/transcript/phonetic"
)

// Correction records a single replacement made by [Corrector.Correct].
type Correction struct {
	// Original is the span of the input that was replaced, without
	// surrounding punctuation.
	Original string

	// Corrected is the vocabulary term that replaced it.
	Corrected string

	// Confidence is the similarity score in [0, 1].
	Confidence float64
}

// Option is a functional option for configuring a [Corrector].
type Option func(*Corrector)

// WithMatcher replaces the default [phonetic.Matcher].
func WithMatcher(m *phonetic.Matcher) Option {
	return func(c *Corrector) {
		c.matcher = m
	}
}

// WithLogger sets the logger used to report corrections at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(c *Corrector) {
		c.log = l
	}
}

// Corrector rewrites misheard vocabulary terms in caption text. It is
// read-only after construction and safe for concurrent use.
type Corrector struct {
	matcher *phonetic.Matcher
	vocab   *phonetic.Vocabulary
	log     *slog.Logger
}

// New returns a [Corrector] for the given vocabulary terms.
func New(terms []string, opts ...Option) *Corrector {
	c := &Corrector{
		matcher: phonetic.New(),
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	c.vocab = c.matcher.Prepare(terms)
	return c
}

// Apply returns text with vocabulary corrections applied.
func (c *Corrector) Apply(text string) string {
	out, corrections := c.Correct(text)
	for _, cr := range corrections {
		c.log.Debug("caption corrected",
			"original", cr.Original,
			"corrected", cr.Corrected,
			"confidence", cr.Confidence,
		)
	}
	return out
}

// Correct scans text left to right. At each position it tries word windows
// from longest to shortest (up to one word longer than the longest term, so
// split words such as "post gress" are caught) and replaces the first window
// that matches a term. Punctuation before the first and after the last word of
// a window is preserved; windows spanning inner punctuation are not tried.
//
// Whitespace is normalised to single spaces.
func (c *Corrector) Correct(text string) (string, []Correction) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 || c.vocab.Len() == 0 {
		return strings.Join(tokens, " "), nil
	}

	words := make([]word, len(tokens))
	for i, t := range tokens {
		words[i] = splitPunct(t)
	}

	var (
		out         = make([]string, 0, len(tokens))
		corrections []Correction
		maxN        = c.vocab.MaxWords() + 1
	)

	for i := 0; i < len(words); {
		n := min(maxN, len(words)-i)
		consumed := 0
		for ; n >= 1; n-- {
			window := words[i : i+n]
			if spansPunct(window) {
				continue
			}
			phrase := joinCore(window)
			term, conf, ok := c.vocab.Match(phrase)
			if !ok {
				continue
			}
			out = append(out, window[0].lead+term+window[n-1].trail)
			if term != phrase {
				corrections = append(corrections, Correction{
					Original:   phrase,
					Corrected:  term,
					Confidence: conf,
				})
			}
			consumed = n
			break
		}
		if consumed == 0 {
			out = append(out, tokens[i])
			consumed = 1
		}
		i += consumed
	}
	return strings.Join(out, " "), corrections
}

// word is a whitespace token split into leading punctuation, core and
// trailing punctuation.
type word struct {
	lead, core, trail string
}

func splitPunct(tok string) word {
	core := strings.TrimLeftFunc(tok, unicode.IsPunct)
	lead := tok[:len(tok)-len(core)]
	trimmed := strings.TrimRightFunc(core, unicode.IsPunct)
	return word{lead: lead, core: trimmed, trail: core[len(trimmed):]}
}

// spansPunct reports whether punctuation separates words inside the window,
// or whether any word is pure punctuation.
func spansPunct(window []word) bool {
	for i, w := range window {
		if w.core == "" {
			return true
		}
		if i > 0 && w.lead != "" {
			return true
		}
		if i < len(window)-1 && w.trail != "" {
			return true
		}
	}
	return false
}

func joinCore(window []word) string {
	parts := make([]string, len(window))
	for i, w := range window {
		parts[i] = w.core
	}
	return strings.Join(parts, " ")
}
