package deepgram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/MrWong99/livecaptions/pkg/provider/stt"
)

// ---- URL / query-param tests ----

func TestBuildURL_Defaults(t *testing.T) {
	p, err := New("test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL()
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse URL: %v", err)
	}
	q := u.Query()

	assertEqual(t, "host", "api.deepgram.com", u.Host)
	assertEqual(t, "model", "nova-3", q.Get("model"))
	assertEqual(t, "language", "en", q.Get("language"))
	assertEqual(t, "punctuate", "true", q.Get("punctuate"))
}

func TestBuildURL_CustomModel(t *testing.T) {
	p, err := New("key", WithModel("base"), WithLanguage("de-DE"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL()
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, _ := url.Parse(rawURL)
	q := u.Query()

	assertEqual(t, "model", "base", q.Get("model"))
	assertEqual(t, "language", "de-DE", q.Get("language"))
}

func TestBuildURL_Keywords(t *testing.T) {
	p, err := New("key", WithKeywords([]stt.KeywordBoost{
		{Keyword: "Kubernetes", Boost: 5},
		{Keyword: "etcd", Boost: 2.5},
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL()
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}
	u, _ := url.Parse(rawURL)
	kws := u.Query()["keywords"]
	if len(kws) != 2 {
		t.Fatalf("keywords = %v; want 2 entries", kws)
	}
	assertEqual(t, "keyword[0]", "Kubernetes:5", kws[0])
	assertEqual(t, "keyword[1]", "etcd:2.5", kws[1])
}

// ---- response parsing ----

func TestParseDeepgramResponse(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{
			name: "top alternative",
			body: `{"results":{"channels":[{"alternatives":[{"transcript":" hello there ","confidence":0.98},{"transcript":"hollow"}]}]}}`,
			want: "hello there",
		},
		{name: "no channels", body: `{"results":{"channels":[]}}`, want: ""},
		{name: "no alternatives", body: `{"results":{"channels":[{"alternatives":[]}]}}`, want: ""},
		{name: "malformed", body: `not json`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDeepgramResponse([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v; wantErr %v", err, tt.wantErr)
			}
			assertEqual(t, "text", tt.want, got)
		})
	}
}

// ---- end to end against a fake server ----

func TestTranscribe_UploadsWAV(t *testing.T) {
	var auth, ctype string
	var size int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		ctype = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		size = len(body)
		_, _ = w.Write([]byte(`{"results":{"channels":[{"alternatives":[{"transcript":"ok"}]}]}}`))
	}))
	defer srv.Close()

	p, err := New("secret", WithEndpoint(srv.URL+"/v1/listen"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := p.Transcribe(context.Background(), make([]float32, 100))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	assertEqual(t, "text", "ok", got)
	assertEqual(t, "auth", "Token secret", auth)
	assertEqual(t, "content-type", "audio/wav", ctype)
	if size != 44+200 {
		t.Errorf("body size = %d; want 244", size)
	}
}

func TestTranscribe_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, _ := New("bad", WithEndpoint(srv.URL))
	if _, err := p.Transcribe(context.Background(), make([]float32, 10)); err == nil {
		t.Fatal("expected error for HTTP 401")
	}
}

func TestNew_EmptyAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func assertEqual(t *testing.T, field, want, got string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %q, want %q", field, got, want)
	}
}
