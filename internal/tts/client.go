package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultBackendURL is where GPT-SoVITS api_v2 listens by default.
	DefaultBackendURL = "http://127.0.0.1:9880"

	// DefaultTimeout bounds a whole backend call, body included.
	DefaultTimeout = 120 * time.Second

	// DefaultConnectTimeout bounds dialing the backend.
	DefaultConnectTimeout = 10 * time.Second

	// maxErrorBodyLen limits backend error bodies in logs.
	maxErrorBodyLen = 500
)

// ConnectionErrorBody is streamed to the caller when the backend is unreachable.
var ConnectionErrorBody = []byte("Connection Error")

// BackendConfig configures the TTS backend client.
type BackendConfig struct {
	URL            string        `yaml:"url"`             // Backend base URL
	Timeout        time.Duration `yaml:"timeout"`         // Total per-call timeout
	ConnectTimeout time.Duration `yaml:"connect_timeout"` // Dial timeout
}

// Validate validates the backend config.
func (c *BackendConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("backend.url is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.url %q is not an absolute URL", c.URL)
	}
	if c.Timeout < 0 || c.ConnectTimeout < 0 {
		return fmt.Errorf("backend timeouts must not be negative")
	}
	return nil
}

// BackendError reports a non-200 reply from the backend.
type BackendError struct {
	Status int
	Body   []byte
}

func (e *BackendError) Error() string {
	body := string(e.Body)
	if len(body) > maxErrorBodyLen {
		body = body[:maxErrorBodyLen] + "... (truncated)"
	}
	return fmt.Sprintf("tts backend returned status %d: %s", e.Status, body)
}

// Client talks to the TTS backend. Calls are never retried.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a backend client with bounded connect and total timeouts.
func NewClient(cfg BackendConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	connect := cfg.ConnectTimeout
	if connect == 0 {
		connect = DefaultConnectTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connect, KeepAlive: 30 * time.Second}).DialContext

	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    &http.Client{Transport: transport, Timeout: timeout},
	}
}

// Synthesize returns a lazy audio stream for req. The backend call starts on
// the first Next and is bound to that call's context, so cancelling the
// caller's request tears down the backend stream.
//
// A non-200 reply is not an error: its body is forwarded verbatim as the
// stream content. A transport failure yields ConnectionErrorBody.
func (c *Client) Synthesize(req *Request) Stream {
	var (
		inner   Stream
		started bool
	)
	return NewStream(func(ctx context.Context) ([]byte, error) {
		if !started {
			started = true
			inner = c.open(ctx, req)
		}
		return inner.Next(ctx)
	}, func() error {
		if inner != nil {
			return inner.Close()
		}
		return nil
	})
}

func (c *Client) open(ctx context.Context, req *Request) Stream {
	resp, err := c.post(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return NewStream(func(context.Context) ([]byte, error) { return nil, ctx.Err() }, nil)
		}
		log.Error().Err(err).Msg("tts backend connection failed")
		return BytesStream(ConnectionErrorBody)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			log.Error().Err(readErr).Msg("failed to read tts backend error body")
		}
		log.Error().Err(&BackendError{Status: resp.StatusCode, Body: body}).Msg("tts backend error")
		return BytesStream(body)
	}

	return ReaderStream(resp.Body, DefaultChunkSize)
}

// SynthesizeBytes performs a non-streaming synthesis and returns the audio.
func (c *Client) SynthesizeBytes(ctx context.Context, req *Request) ([]byte, error) {
	resp, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tts backend response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &BackendError{Status: resp.StatusCode, Body: body}
	}
	return body, nil
}

func (c *Client) post(ctx context.Context, req *Request) (*http.Response, error) {
	body, err := req.BackendBody()
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tts", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create tts request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("tts request failed: %w", err)
	}
	return resp, nil
}

// SetWeights asks the backend to load a weights file of the given kind.
func (c *Client) SetWeights(ctx context.Context, kind WeightKind, path string) error {
	endpoint, err := kind.endpoint()
	if err != nil {
		return err
	}

	u := c.baseURL + endpoint + "?" + url.Values{"weights_path": {path}}.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create %s weights request: %w", kind, err)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s weights request failed: %w", kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		return &BackendError{Status: resp.StatusCode, Body: body}
	}
	return nil
}

// IsBackendError reports whether err carries a backend status reply.
func IsBackendError(err error) (*BackendError, bool) {
	var be *BackendError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}
