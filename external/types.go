package external

import (
	"fmt"
	"time"
)

// ChatRequest is the OpenAI-compatible chat completions request body.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// ChatMessage is one message of a ChatRequest.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMConfig locates the text-generation service shared by all plugins.
type LLMConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	APIKey         string        `yaml:"api_key"`
	Timeout        time.Duration `yaml:"timeout"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// Enabled reports whether remote calls can be made at all.
func (c LLMConfig) Enabled() bool {
	return c.Endpoint != "" && c.APIKey != ""
}

// Validate checks the LLM section. A missing key is allowed: features that
// need the service simply stay off.
func (c *LLMConfig) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("llm.timeout must not be negative")
	}
	if c.ConnectTimeout < 0 {
		return fmt.Errorf("llm.connect_timeout must not be negative")
	}
	return nil
}

// Params returns CallLLMParams prefilled with the connection settings.
func (c LLMConfig) Params() CallLLMParams {
	return CallLLMParams{
		Endpoint:       c.Endpoint,
		APIKey:         c.APIKey,
		Timeout:        c.Timeout,
		ConnectTimeout: c.ConnectTimeout,
	}
}
