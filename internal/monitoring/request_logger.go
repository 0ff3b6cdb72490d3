// Package monitoring - request_logger.go logs HTTP request lifecycle.
//
// DESIGN: Structured logging for request tracing at DEBUG level:
//   - LogIncoming:      Request received from the front-end
//   - LogHookStage:     A hook point ran
//   - LogBackend:       Request forwarded to the TTS backend
//   - LogResponse:      Response finished streaming
package monitoring

import (
	"net/http"
	"time"
)

// RequestLogger logs HTTP request lifecycle events.
type RequestLogger struct {
	logger *Logger
}

// NewRequestLogger creates a new request logger.
func NewRequestLogger(logger *Logger) *RequestLogger {
	return &RequestLogger{logger: logger}
}

// RequestInfo contains incoming request information.
type RequestInfo struct {
	RequestID  string
	Method     string
	Path       string
	RemoteAddr string
	BodySize   int
	StartTime  time.Time
}

// NewRequestInfo creates RequestInfo from an HTTP request.
func NewRequestInfo(r *http.Request, requestID string, bodySize int) *RequestInfo {
	return &RequestInfo{
		RequestID:  requestID,
		Method:     r.Method,
		Path:       r.URL.Path,
		RemoteAddr: r.RemoteAddr,
		BodySize:   bodySize,
		StartTime:  time.Now(),
	}
}

// LogIncoming logs an incoming request.
func (rl *RequestLogger) LogIncoming(info *RequestInfo) {
	rl.logger.Debug().
		Str("request_id", info.RequestID).
		Str("method", info.Method).
		Str("path", info.Path).
		Int("body_size", info.BodySize).
		Msg("incoming")
}

// HookStageInfo describes one hook point run.
type HookStageInfo struct {
	RequestID string
	Hook      string
	Handlers  int
	Duration  time.Duration
}

// LogHookStage logs a hook point run.
func (rl *RequestLogger) LogHookStage(info *HookStageInfo) {
	rl.logger.Debug().
		Str("request_id", info.RequestID).
		Str("hook", info.Hook).
		Int("handlers", info.Handlers).
		Dur("duration", info.Duration).
		Msg("hook")
}

// BackendRequestInfo contains outgoing backend request information.
type BackendRequestInfo struct {
	RequestID string
	Character string
	TextLang  string
	TextChars int
	Streaming bool
}

// LogBackend logs a request forwarded to the TTS backend.
func (rl *RequestLogger) LogBackend(info *BackendRequestInfo) {
	rl.logger.Debug().
		Str("request_id", info.RequestID).
		Str("character", info.Character).
		Str("text_lang", info.TextLang).
		Int("text_chars", info.TextChars).
		Bool("streaming", info.Streaming).
		Msg("outgoing")
}

// ResponseInfo contains response information.
type ResponseInfo struct {
	RequestID  string
	StatusCode int
	Bytes      int64
	Latency    time.Duration
}

// LogResponse logs a response.
func (rl *RequestLogger) LogResponse(info *ResponseInfo) {
	rl.logger.Debug().
		Str("request_id", info.RequestID).
		Int("status", info.StatusCode).
		Int64("bytes", info.Bytes).
		Dur("latency", info.Latency).
		Msg("response")
}
