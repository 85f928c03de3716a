package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrWong99/livecaptions/internal/segment"
)

// ErrUnavailable is returned when the state server cannot be reached.
var ErrUnavailable = errors.New("state: server unavailable")

const defaultTimeout = 2 * time.Second

// ClientOption is a functional option for configuring a [Client].
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client. Its Timeout takes precedence over
// [WithTimeout].
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.http = c }
}

// WithTimeout sets the per-request timeout. Default: 2s.
func WithTimeout(d time.Duration) ClientOption {
	return func(cl *Client) { cl.timeout = d }
}

// WithSpeakMode makes final captions go to [Client.Speak] instead of
// [Client.SetPrompt].
func WithSpeakMode(on bool) ClientOption {
	return func(cl *Client) { cl.speak = on }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) ClientOption {
	return func(cl *Client) { cl.log = l }
}

// Client talks to a state [Server]. It is also the captioning loop's
// suppression gate (suppressed while a consumer is speaking) and a caption
// sink (final captions become the prompt, or speech in speak mode).
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	speak   bool
	log     *slog.Logger
}

var (
	_ segment.Gate = (*Client)(nil)
	_ segment.Sink = (*Client)(nil)
)

// NewClient returns a [Client] for the server at baseURL, e.g.
// "http://localhost:8050".
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("state: parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("state: url %q: scheme must be http or https", baseURL)
	}
	c := &Client{base: u, timeout: defaultTimeout, log: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	return c, nil
}

// Prompt returns the current prompt.
func (c *Client) Prompt(ctx context.Context) (string, error) {
	v, err := call[string](ctx, c, http.MethodGet, "/v1/prompt", nil)
	return v.Value, err
}

// SetPrompt replaces the prompt and reports whether it changed.
func (c *Client) SetPrompt(ctx context.Context, p string) (bool, error) {
	v, err := call[string](ctx, c, http.MethodPut, "/v1/prompt", value[string]{Value: p})
	return v.Message == MessagePromptChanged, err
}

// Temperature returns the current temperature.
func (c *Client) Temperature(ctx context.Context) (float64, error) {
	v, err := call[float64](ctx, c, http.MethodGet, "/v1/temperature", nil)
	return v.Value, err
}

// SetTemperature sets the temperature.
func (c *Client) SetTemperature(ctx context.Context, t float64) error {
	_, err := call[float64](ctx, c, http.MethodPut, "/v1/temperature", value[float64]{Value: t})
	return err
}

// Paused reports the paused flag.
func (c *Client) Paused(ctx context.Context) (bool, error) {
	v, err := call[bool](ctx, c, http.MethodGet, "/v1/pause", nil)
	return v.Value, err
}

// Pause sets the paused flag.
func (c *Client) Pause(ctx context.Context) error {
	_, err := call[bool](ctx, c, http.MethodPost, "/v1/pause", nil)
	return err
}

// Unpause clears the paused flag.
func (c *Client) Unpause(ctx context.Context) error {
	_, err := call[bool](ctx, c, http.MethodPost, "/v1/unpause", nil)
	return err
}

// Speaking reports whether a consumer is speaking.
func (c *Client) Speaking(ctx context.Context) (bool, error) {
	v, err := call[bool](ctx, c, http.MethodGet, "/v1/speaking", nil)
	return v.Value, err
}

// SetSpeaking sets the speaking flag.
func (c *Client) SetSpeaking(ctx context.Context, on bool) error {
	_, err := call[bool](ctx, c, http.MethodPut, "/v1/speaking", value[bool]{Value: on})
	return err
}

// Speech returns the text queued for speech.
func (c *Client) Speech(ctx context.Context) (string, error) {
	v, err := call[string](ctx, c, http.MethodGet, "/v1/speech", nil)
	return v.Value, err
}

// Speak queues text for speech.
func (c *Client) Speak(ctx context.Context, text string) error {
	_, err := call[string](ctx, c, http.MethodPut, "/v1/speech", value[string]{Value: text})
	return err
}

// Ping checks that the server answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Speaking(ctx)
	return err
}

// IsSuppressed implements [segment.Gate]: listening is suppressed while a
// consumer is speaking.
func (c *Client) IsSuppressed(ctx context.Context) (bool, error) {
	return c.Speaking(ctx)
}

// OnFinalCaption implements [segment.Sink]. Captions of one character or less
// after trimming are ignored.
func (c *Client) OnFinalCaption(ctx context.Context, text string) error {
	if len(strings.TrimSpace(text)) <= 1 {
		return nil
	}
	if c.speak {
		return c.Speak(ctx, text)
	}
	changed, err := c.SetPrompt(ctx, text)
	if err == nil {
		c.log.Debug("prompt forwarded", "changed", changed)
	}
	return err
}

// OnInterimCaption implements [segment.Sink]. Interim captions are not
// forwarded.
func (c *Client) OnInterimCaption(context.Context, string) error { return nil }

func call[T any](ctx context.Context, c *Client, method, path string, body any) (value[T], error) {
	var out value[T]

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return out, fmt.Errorf("state: encode %s %s: %w", method, path, err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), rd)
	if err != nil {
		return out, fmt.Errorf("state: build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return out, fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return out, fmt.Errorf("state: %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("state: decode %s %s: %w", method, path, err)
	}
	return out, nil
}
