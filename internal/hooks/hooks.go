// Package hooks provides the named extension points of the synthesis pipeline.
//
// DESIGN: Hooks intercept and can modify the request before it reaches the
// TTS backend, and the audio stream on its way back. They run INSIDE the
// adapter (unlike external/ which calls remote services).
//
// Pipeline flow:
//
//	Request → Rewriter → [on_tts_request_streaming] → TTS backend
//	                                                        ↓
//	Audio   ←──────────  [on_tts_response_streaming] ←──────┘
//
// Handlers for one hook run strictly in registration order. Each receives
// the previous handler's output plus the shared Context map. The first
// failure aborts the chain (fail-fast) and is surfaced as *HandlerError.
package hooks

import (
	"context"
	"errors"
	"fmt"

	"github.com/tavernvoice/tts-adapter/internal/tts"
)

// Name identifies a hook point.
type Name string

// Hook points fired by the gateway.
const (
	TTSRequest  Name = "on_tts_request_streaming"
	TTSResponse Name = "on_tts_response_streaming"
	SRTRequest  Name = "on_srt_request_streaming"
)

// Static errors.
var (
	ErrNilPayload   = errors.New("handler returned nil payload")
	ErrHandlerKind  = errors.New("handler kind does not match hook payload")
	ErrHandlerPanic = errors.New("handler panicked")
)

// =============================================================================
// HANDLERS
// =============================================================================

// Handler is a RequestHandler or a StreamHandler.
type Handler interface {
	kind() string
}

// RequestHandler transforms a synthesis request.
type RequestHandler func(ctx context.Context, req *tts.Request, hc Context) (*tts.Request, error)

// StreamHandler transforms an audio stream. Handlers should wrap the stream
// (see tts.MapStream) rather than drain it.
type StreamHandler func(ctx context.Context, s tts.Stream, hc Context) (tts.Stream, error)

func (RequestHandler) kind() string { return "request" }
func (StreamHandler) kind() string  { return "stream" }

// Plugin is a unit that registers handlers at startup.
type Plugin interface {
	Name() string
	Register(r *Registrar) error
}

// HandlerError reports which handler broke a hook chain.
type HandlerError struct {
	Hook   Name
	Plugin string
	Index  int
	Err    error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("hook %s: handler %d (%s): %v", e.Hook, e.Index, e.Plugin, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// =============================================================================
// CONTEXT
// =============================================================================

// Well-known Context keys.
const (
	KeyTargetLang    = "target_lang"
	KeyCharacterName = "character_name"
	KeyRequestID     = "request_id"
)

// Context is the keyed data passed to every handler of one hook invocation.
type Context map[string]any

// String returns the value for key when it is a string.
func (c Context) String(key string) string {
	if c == nil {
		return ""
	}
	s, _ := c[key].(string)
	return s
}

// TargetLang returns the language the text should end up in.
func (c Context) TargetLang() string { return c.String(KeyTargetLang) }

// CharacterName returns the voice character resolved from the request.
func (c Context) CharacterName() string { return c.String(KeyCharacterName) }

// RequestID returns the gateway request ID.
func (c Context) RequestID() string { return c.String(KeyRequestID) }
