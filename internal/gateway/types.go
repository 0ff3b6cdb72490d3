// Package gateway types - constants and small types shared by the handlers.
//
// DESIGN: Kept apart from gateway.go so handlers, middleware and the
// websocket endpoint agree on header names, limits and reply shapes.
package gateway

import (
	"time"

	"github.com/tavernvoice/tts-adapter/internal/monitoring"
	"github.com/tavernvoice/tts-adapter/internal/tts"
)

const (
	// HeaderRequestID carries the request ID in both directions.
	HeaderRequestID = "X-Request-ID"

	// MaxRequestBodySize bounds synthesis request bodies.
	MaxRequestBodySize = 1 << 20

	// MaxRateLimitBuckets bounds the per-IP limiter table.
	MaxRateLimitBuckets = 10000

	// SRTAudioFile is the file /srt writes into the output directory.
	SRTAudioFile = "audio.wav"

	// SRTSubtitleFile is the subtitle URL returned by /srt. The backend does
	// not produce it; the front-end expects the field.
	SRTSubtitleFile = "tts-out.srt"

	// audioContentType is sent for every audio reply.
	audioContentType = "audio/wav"
)

// speakerGenders is the fixed /speakers_list reply the front-end expects.
var speakerGenders = []string{"female", "male"}

// SRTResponse is the /srt success reply.
type SRTResponse struct {
	Code  string `json:"code"`
	SRT   string `json:"srt"`
	Audio string `json:"audio"`
}

// SRTError is the /srt reply when the backend rejects the request.
type SRTError struct {
	Msg    string `json:"msg"`
	Detail string `json:"detail"`
}

// HealthResponse is the /health reply.
type HealthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Backend string            `json:"backend"`
	Weights map[string]string `json:"weights"`
	Stats   map[string]int64  `json:"stats"`
}

// synthesis carries one request through the pipeline for telemetry.
type synthesis struct {
	route      monitoring.Route
	requestID  string
	clientIP   string
	start      time.Time
	req        *tts.Request
	character  string
	targetLang string
	cardKey    string
	inputChars int
	hookTime   time.Duration
	hooksRun   int
}
