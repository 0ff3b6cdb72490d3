// Package external calls remote services the adapter depends on, other than
// the TTS backend itself.
//
// CallLLM is the single entry point for the text-generation service used by
// the clean_text plugin (RuleSet generation) and the translate plugin.
// The service speaks the OpenAI Chat Completions format with bearer auth.
//
// DESIGN: One request per call, no retries. Callers treat every failure as
// "keep the original behaviour", so errors are returned for logging only.
package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	// DefaultTimeout bounds a whole LLM call.
	DefaultTimeout = 20 * time.Second

	// DefaultConnectTimeout bounds connection setup.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultEndpoint is the chat completions URL used when none is configured.
	DefaultEndpoint = "https://api.siliconflow.cn/v1/chat/completions"

	// maxResponseSize prevents OOM on unexpectedly large API responses (10MB).
	maxResponseSize = 10 * 1024 * 1024

	// maxErrorBodyLen limits error body in error messages to avoid log bloat.
	maxErrorBodyLen = 500
)

// CallLLMParams contains parameters for one chat completion.
type CallLLMParams struct {
	Endpoint       string
	APIKey         string
	Model          string
	SystemPrompt   string
	UserPrompt     string
	Temperature    float64
	MaxTokens      int // 0 omits max_tokens
	Timeout        time.Duration
	ConnectTimeout time.Duration

	// HTTPClient overrides the default client (tests, connection pooling).
	// If nil, a client with a dial timeout of ConnectTimeout is created;
	// the overall timeout is always applied through the context.
	HTTPClient *http.Client
}

// validate checks that required fields are present and sets defaults.
func (p *CallLLMParams) validate() error {
	if p.Endpoint == "" {
		return fmt.Errorf("endpoint required")
	}
	if p.APIKey == "" {
		return fmt.Errorf("api key required")
	}
	if p.Model == "" {
		return fmt.Errorf("model required")
	}
	if p.Timeout == 0 {
		p.Timeout = DefaultTimeout
	}
	if p.ConnectTimeout == 0 {
		p.ConnectTimeout = DefaultConnectTimeout
	}
	return nil
}

// CallLLMResult contains the response from an LLM call.
type CallLLMResult struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// CallLLM sends one chat completion request and returns the first choice's
// message content. An empty content is reported as an error.
func CallLLM(ctx context.Context, params CallLLMParams) (*CallLLMResult, error) {
	if err := params.validate(); err != nil {
		return nil, fmt.Errorf("invalid CallLLM params: %w", err)
	}

	body, err := buildRequestBody(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, params.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, params.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+params.APIKey)

	client := params.HTTPClient
	if client == nil {
		client = newHTTPClient(params.ConnectTimeout)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read chat response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		errBody := string(respBody)
		if len(errBody) > maxErrorBodyLen {
			errBody = errBody[:maxErrorBodyLen] + "... (truncated)"
		}
		return nil, fmt.Errorf("chat API returned status %d: %s", resp.StatusCode, errBody)
	}

	return parseResponse(respBody)
}

func newHTTPClient(connectTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connectTimeout}).DialContext
	transport.TLSHandshakeTimeout = connectTimeout
	return &http.Client{Transport: transport} // timeout via context, not client
}

func buildRequestBody(params CallLLMParams) ([]byte, error) {
	req := &ChatRequest{
		Model: params.Model,
		Messages: []ChatMessage{
			{Role: "system", Content: params.SystemPrompt},
			{Role: "user", Content: params.UserPrompt},
		},
		Stream:      false,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	}
	return json.Marshal(req)
}

func parseResponse(body []byte) (*CallLLMResult, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("failed to parse chat response: invalid JSON")
	}
	root := gjson.ParseBytes(body)

	content := root.Get("choices.0.message.content")
	if !content.Exists() {
		return nil, fmt.Errorf("chat response has no choices[0].message.content")
	}
	text := content.String()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("chat response content is empty")
	}

	return &CallLLMResult{
		Content:      text,
		InputTokens:  int(root.Get("usage.prompt_tokens").Int()),
		OutputTokens: int(root.Get("usage.completion_tokens").Int()),
	}, nil
}
