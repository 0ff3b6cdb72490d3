// Package monitoring - types.go defines shared types.
//
// DESIGN: These types are used by gateway/, plugins and monitoring/.
// Defined here ONCE to avoid duplication and circular imports.
//
// TYPES:
//   - Route:            Identifies which endpoint handled a synthesis request
//   - SynthesisEvent:   Telemetry data for each synthesis request
//   - GenerationEvent:  Telemetry data for each RuleSet generation attempt
//   - Config types:     TelemetryConfig, LoggerConfig, AlertConfig
package monitoring

import "time"

// =============================================================================
// ROUTES - Used by gateway and telemetry
// =============================================================================

// Route identifies the endpoint that served a synthesis request.
type Route string

const (
	RouteStream    Route = "tts"
	RouteSRT       Route = "srt"
	RouteWebSocket Route = "tts_ws"
)

// =============================================================================
// EVENT TYPES - Structured data for telemetry recording
// =============================================================================

// SynthesisEvent captures a synthesis request through the adapter.
type SynthesisEvent struct {
	RequestID      string    `json:"request_id"`
	Timestamp      time.Time `json:"timestamp"`
	Route          Route     `json:"route"`
	ClientIP       string    `json:"client_ip"`
	Character      string    `json:"character"`
	CardKey        string    `json:"card_key,omitempty"`
	TargetLang     string    `json:"target_lang"`
	InputChars     int       `json:"input_chars"`
	CleanedChars   int       `json:"cleaned_chars"`
	HooksRun       int       `json:"hooks_run"`
	AudioBytes     int64     `json:"audio_bytes"`
	BackendStatus  int       `json:"backend_status,omitempty"`
	Success        bool      `json:"success"`
	Error          string    `json:"error,omitempty"`
	HookLatencyMs  int64     `json:"hook_latency_ms"`
	TotalLatencyMs int64     `json:"total_latency_ms"`
}

// GenerationEvent captures one attempt to generate a card RuleSet.
type GenerationEvent struct {
	Timestamp    time.Time `json:"timestamp"`
	CardKey      string    `json:"card_key"`
	Model        string    `json:"model"`
	SampleChars  int       `json:"sample_chars"`
	InputTokens  int       `json:"input_tokens,omitempty"`
	OutputTokens int       `json:"output_tokens,omitempty"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
	LatencyMs    int64     `json:"latency_ms"`
}

// =============================================================================
// CONFIG TYPES
// =============================================================================

// TelemetryConfig contains telemetry configuration.
type TelemetryConfig struct {
	Enabled           bool   `yaml:"enabled"`
	LogPath           string `yaml:"log_path"`
	LogToStdout       bool   `yaml:"log_to_stdout"`
	GenerationLogPath string `yaml:"generation_log_path"`
}

// LoggerConfig contains logging configuration.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
	Output string `yaml:"output"` // stdout, stderr, or file path
}

// AlertConfig contains alert thresholds.
type AlertConfig struct {
	HighLatencyThreshold time.Duration `yaml:"high_latency_threshold"`
}
