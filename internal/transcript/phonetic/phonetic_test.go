package phonetic_test

import (
	"testing"

	"github.com/MrWong99/livecaptions/internal/transcript/phonetic"
)

var vocab = []string{"Kubernetes", "Grafana Loki", "Postgres"}

func TestVocabulary_Match(t *testing.T) {
	t.Parallel()

	v := phonetic.New().Prepare(vocab)

	tests := []struct {
		name    string
		phrase  string
		want    string
		matched bool
	}{
		{name: "single word typo", phrase: "kubernetis", want: "Kubernetes", matched: true},
		{name: "case insensitive exact", phrase: "KUBERNETES", want: "Kubernetes", matched: true},
		{name: "multi word typo", phrase: "grafana loky", want: "Grafana Loki", matched: true},
		{name: "split word", phrase: "post gress", want: "Postgres", matched: true},
		{name: "leading filler word", phrase: "on kubernetis", want: "on kubernetis"},
		{name: "prefix only", phrase: "post", want: "post"},
		{name: "unrelated", phrase: "hello world", want: "hello world"},
		{name: "too short", phrase: "ku", want: "ku"},
		{name: "empty", phrase: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, conf, matched := v.Match(tt.phrase)
			if matched != tt.matched {
				t.Fatalf("Match(%q): matched=%v, want %v (got %q, conf=%f)", tt.phrase, matched, tt.matched, got, conf)
			}
			if got != tt.want {
				t.Errorf("Match(%q) = %q, want %q", tt.phrase, got, tt.want)
			}
			if !matched && conf != 0 {
				t.Errorf("Match(%q): conf=%f, want 0 when unmatched", tt.phrase, conf)
			}
		})
	}
}

func TestVocabulary_MatchConfidence(t *testing.T) {
	t.Parallel()

	v := phonetic.New().Prepare(vocab)
	_, conf, matched := v.Match("kubernetes")
	if !matched {
		t.Fatal("exact match should match")
	}
	if conf < 0.99 {
		t.Errorf("exact match confidence = %f, want ~1", conf)
	}
}

func TestVocabulary_Thresholds(t *testing.T) {
	t.Parallel()

	v := phonetic.New(
		phonetic.WithPhoneticThreshold(0.99),
		phonetic.WithFuzzyThreshold(0.99),
	).Prepare(vocab)

	if _, _, matched := v.Match("kubernetis"); matched {
		t.Fatal("threshold 0.99 should reject near matches")
	}
}

func TestPrepare(t *testing.T) {
	t.Parallel()

	v := phonetic.New().Prepare([]string{"  ", "Grafana   Loki", "Kubernetes", ""})
	if v.Len() != 2 {
		t.Errorf("Len() = %d, want 2", v.Len())
	}
	if v.MaxWords() != 2 {
		t.Errorf("MaxWords() = %d, want 2", v.MaxWords())
	}
	if got, _, _ := v.Match("grafana loki"); got != "Grafana Loki" {
		t.Errorf("Match normalises term spacing: got %q", got)
	}
}

func TestVocabulary_Empty(t *testing.T) {
	t.Parallel()

	v := phonetic.New().Prepare(nil)
	got, conf, matched := v.Match("kubernetes")
	if matched || got != "kubernetes" || conf != 0 {
		t.Errorf("empty vocabulary: got (%q, %f, %v)", got, conf, matched)
	}
}
