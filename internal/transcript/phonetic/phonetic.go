// Package phonetic matches misheard phrases against a fixed vocabulary of
// domain terms using Double Metaphone codes and Jaro-Winkler similarity.
//
// A candidate phrase is compared with every term of a prepared [Vocabulary]:
//
//  1. Guards: the phrase's first word must sound like (shared Double Metaphone
//     code) or look like the term's first word, and the two must have similar
//     lengths once spaces are removed. These reject windows that merely
//     contain a term, such as "on kubernetis".
//
//  2. Scoring: Jaro-Winkler similarity on the full lower-cased strings and on
//     their space-stripped forms; the higher wins. A phrase with the same word
//     count as the term and overlapping codes is accepted at the phonetic
//     threshold (default 0.70); any other phrase needs the fuzzy threshold
//     (default 0.85).
package phonetic

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
	defaultMinLengthRatio    = 0.75
	minPhraseRunes           = 3
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a phrase that
// sounds like a term. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score when no phonetic
// overlap is found. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher holds matching thresholds. It is read-only after construction and
// safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
	minLengthRatio    float64
}

// New returns a new [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
		minLengthRatio:    defaultMinLengthRatio,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// term is a vocabulary entry with its precomputed match data.
type term struct {
	text       string
	lower      string
	tokens     []string
	concat     string
	codes      map[string]struct{}
	firstCodes map[string]struct{}
}

// Vocabulary is a prepared set of terms bound to a [Matcher]. Safe for
// concurrent use.
type Vocabulary struct {
	m        *Matcher
	terms    []term
	maxWords int
}

// Prepare precomputes phonetic codes for terms. Blank terms are skipped.
func (m *Matcher) Prepare(terms []string) *Vocabulary {
	v := &Vocabulary{m: m}
	for _, t := range terms {
		lower := strings.ToLower(strings.TrimSpace(t))
		if lower == "" {
			continue
		}
		tokens := strings.Fields(lower)
		v.terms = append(v.terms, term{
			text:       strings.Join(strings.Fields(t), " "),
			lower:      strings.Join(tokens, " "),
			tokens:     tokens,
			concat:     strings.Join(tokens, ""),
			codes:      codesForTokens(tokens),
			firstCodes: codesForTokens(tokens[:1]),
		})
		if len(tokens) > v.maxWords {
			v.maxWords = len(tokens)
		}
	}
	return v
}

// Len returns the number of terms.
func (v *Vocabulary) Len() int { return len(v.terms) }

// MaxWords returns the word count of the longest term.
func (v *Vocabulary) MaxWords() int { return v.maxWords }

// Match returns the best-scoring term for phrase. When matched is false,
// corrected equals phrase and confidence is 0.
func (v *Vocabulary) Match(phrase string) (corrected string, confidence float64, matched bool) {
	lower := strings.ToLower(strings.TrimSpace(phrase))
	tokens := strings.Fields(lower)
	if len(tokens) == 0 {
		return phrase, 0, false
	}
	concat := strings.Join(tokens, "")
	if utf8.RuneCountInString(concat) < minPhraseRunes {
		return phrase, 0, false
	}
	lower = strings.Join(tokens, " ")
	codes := codesForTokens(tokens)
	firstCodes := codesForTokens(tokens[:1])

	var (
		best      string
		bestScore float64
	)
	for i := range v.terms {
		t := &v.terms[i]
		if !lengthsCompatible(concat, t.concat, v.m.minLengthRatio) {
			continue
		}
		if !codesOverlap(firstCodes, t.firstCodes) &&
			matchr.JaroWinkler(tokens[0], t.tokens[0], false) < v.m.phoneticThreshold {
			continue
		}

		score := matchr.JaroWinkler(lower, t.lower, false)
		if s := matchr.JaroWinkler(concat, t.concat, false); s > score {
			score = s
		}

		threshold := v.m.fuzzyThreshold
		if len(tokens) == len(t.tokens) && codesOverlap(codes, t.codes) {
			threshold = v.m.phoneticThreshold
		}
		if score >= threshold && score > bestScore {
			best, bestScore = t.text, score
		}
	}

	if best == "" {
		return phrase, 0, false
	}
	return best, bestScore, true
}

func lengthsCompatible(a, b string, minRatio float64) bool {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la == 0 || lb == 0 {
		return false
	}
	if la > lb {
		la, lb = lb, la
	}
	return float64(la)/float64(lb) >= minRatio
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens. Empty codes are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap reports whether the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
