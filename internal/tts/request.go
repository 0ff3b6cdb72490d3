// Package tts holds the synthesis request model, the audio stream
// abstraction, and the client for the GPT-SoVITS style backend.
//
// DESIGN: The front-end sends loosely typed JSON. DecodeRequest reads the
// well-known fields with gjson (tolerating string booleans and missing
// optionals) and keeps every unknown field in Request.Extensions so plugins
// and the backend still see it. BackendBody re-encodes the typed fields and
// merges the extensions back with sjson.
//
// FILES:
//   - request.go: Request, DecodeRequest, BackendBody
//   - stream.go:  Stream iterator and helpers
//   - client.go:  backend HTTP client (streaming + weight switching)
//   - weights.go: character model map and WeightSwitcher
//   - rewrite.go: reference audio path fixing and prompt text loading
package tts

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Request defaults, matching what GPT-SoVITS api_v2 expects when a field is omitted.
const (
	DefaultTopK              = 5
	DefaultTopP              = 1.0
	DefaultTemperature       = 1.0
	DefaultTextSplitMethod   = "cut5"
	DefaultBatchSize         = 1
	DefaultBatchThreshold    = 0.75
	DefaultSpeedFactor       = 1.0
	DefaultFragmentInterval  = 0.3
	DefaultSeed              = -1
	DefaultMediaType         = "wav"
	DefaultRepetitionPenalty = 1.35
	DefaultSampleSteps       = 32
)

// Static errors.
var (
	ErrInvalidJSON  = errors.New("request body is not valid JSON")
	ErrMissingField = errors.New("required field missing")
)

// Request is the synthesis payload threaded through the request hooks.
// Exactly one hook handler owns it at a time.
type Request struct {
	Text              string   `json:"text"`
	TextLang          string   `json:"text_lang"`
	RefAudioPath      string   `json:"ref_audio_path"`
	AuxRefAudioPaths  []string `json:"aux_ref_audio_paths"`
	PromptLang        string   `json:"prompt_lang"`
	PromptText        string   `json:"prompt_text"`
	TopK              int      `json:"top_k"`
	TopP              float64  `json:"top_p"`
	Temperature       float64  `json:"temperature"`
	TextSplitMethod   string   `json:"text_split_method"`
	BatchSize         int      `json:"batch_size"`
	BatchThreshold    float64  `json:"batch_threshold"`
	SplitBucket       bool     `json:"split_bucket"`
	SpeedFactor       float64  `json:"speed_factor"`
	FragmentInterval  float64  `json:"fragment_interval"`
	Seed              int      `json:"seed"`
	MediaType         string   `json:"media_type"`
	StreamingMode     bool     `json:"streaming_mode"`
	ParallelInfer     bool     `json:"parallel_infer"`
	RepetitionPenalty float64  `json:"repetition_penalty"`
	SampleSteps       int      `json:"sample_steps"`
	SuperSampling     bool     `json:"super_sampling"`

	// CardName carries the front-end's card labels. Index 2, when present,
	// names the per-card cleaning config. Never forwarded to the backend.
	CardName []string `json:"-"`

	// Extensions holds fields this adapter does not model. They are passed
	// through to the backend untouched unless a plugin edits them.
	Extensions map[string]json.RawMessage `json:"-"`
}

// NewRequest returns a request with every optional field at its default.
func NewRequest() *Request {
	return &Request{
		AuxRefAudioPaths:  []string{},
		TopK:              DefaultTopK,
		TopP:              DefaultTopP,
		Temperature:       DefaultTemperature,
		TextSplitMethod:   DefaultTextSplitMethod,
		BatchSize:         DefaultBatchSize,
		BatchThreshold:    DefaultBatchThreshold,
		SplitBucket:       true,
		SpeedFactor:       DefaultSpeedFactor,
		FragmentInterval:  DefaultFragmentInterval,
		Seed:              DefaultSeed,
		MediaType:         DefaultMediaType,
		ParallelInfer:     true,
		RepetitionPenalty: DefaultRepetitionPenalty,
		SampleSteps:       DefaultSampleSteps,
		Extensions:        make(map[string]json.RawMessage),
	}
}

// knownFields lists keys decoded into typed fields; anything else is an extension.
var knownFields = map[string]bool{
	"text": true, "text_lang": true, "ref_audio_path": true, "aux_ref_audio_paths": true,
	"prompt_lang": true, "prompt_text": true, "top_k": true, "top_p": true,
	"temperature": true, "text_split_method": true, "batch_size": true,
	"batch_threshold": true, "split_bucket": true, "speed_factor": true,
	"fragment_interval": true, "seed": true, "media_type": true,
	"streaming_mode": true, "parallel_infer": true, "repetition_penalty": true,
	"sample_steps": true, "super_sampling": true, "card_name": true,
}

// DecodeRequest parses a front-end request body.
// text, text_lang and ref_audio_path are required; everything else defaults.
func DecodeRequest(body []byte) (*Request, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidJSON
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, ErrInvalidJSON
	}

	for _, field := range []string{"text", "text_lang", "ref_audio_path"} {
		if !root.Get(field).Exists() {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, field)
		}
	}

	r := NewRequest()
	r.Text = root.Get("text").String()
	r.TextLang = root.Get("text_lang").String()
	r.RefAudioPath = root.Get("ref_audio_path").String()
	r.PromptLang = root.Get("prompt_lang").String()
	r.PromptText = root.Get("prompt_text").String()

	if v := root.Get("aux_ref_audio_paths"); v.IsArray() {
		r.AuxRefAudioPaths = stringList(v)
	}
	if v := root.Get("card_name"); v.Exists() {
		if v.IsArray() {
			r.CardName = stringList(v)
		} else if v.String() != "" {
			r.CardName = []string{v.String()}
		}
	}

	intField(root, "top_k", &r.TopK)
	floatField(root, "top_p", &r.TopP)
	floatField(root, "temperature", &r.Temperature)
	stringField(root, "text_split_method", &r.TextSplitMethod)
	intField(root, "batch_size", &r.BatchSize)
	floatField(root, "batch_threshold", &r.BatchThreshold)
	boolField(root, "split_bucket", &r.SplitBucket)
	floatField(root, "speed_factor", &r.SpeedFactor)
	floatField(root, "fragment_interval", &r.FragmentInterval)
	intField(root, "seed", &r.Seed)
	stringField(root, "media_type", &r.MediaType)
	boolField(root, "streaming_mode", &r.StreamingMode)
	boolField(root, "parallel_infer", &r.ParallelInfer)
	floatField(root, "repetition_penalty", &r.RepetitionPenalty)
	intField(root, "sample_steps", &r.SampleSteps)
	boolField(root, "super_sampling", &r.SuperSampling)

	root.ForEach(func(key, value gjson.Result) bool {
		if !knownFields[key.String()] {
			r.Extensions[key.String()] = json.RawMessage(value.Raw)
		}
		return true
	})

	return r, nil
}

// BackendBody encodes the request as the JSON body the TTS backend expects.
func (r *Request) BackendBody() ([]byte, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	for key, raw := range r.Extensions {
		if knownFields[key] {
			continue
		}
		body, err = sjson.SetRawBytes(body, escapePath(key), raw)
		if err != nil {
			return nil, fmt.Errorf("failed to merge extension %q: %w", key, err)
		}
	}
	return body, nil
}

// Extension decodes a side-channel field into v. Returns false if absent.
func (r *Request) Extension(key string, v any) (bool, error) {
	raw, ok := r.Extensions[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("extension %q: %w", key, err)
	}
	return true, nil
}

// SetExtension stores v as a side-channel field.
func (r *Request) SetExtension(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("extension %q: %w", key, err)
	}
	if r.Extensions == nil {
		r.Extensions = make(map[string]json.RawMessage)
	}
	r.Extensions[key] = raw
	return nil
}

func stringList(v gjson.Result) []string {
	items := v.Array()
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.String())
	}
	return out
}

func intField(root gjson.Result, key string, dst *int) {
	if v := root.Get(key); v.Exists() && v.Type != gjson.Null {
		*dst = int(v.Int())
	}
}

func floatField(root gjson.Result, key string, dst *float64) {
	if v := root.Get(key); v.Exists() && v.Type != gjson.Null {
		*dst = v.Float()
	}
}

func stringField(root gjson.Result, key string, dst *string) {
	if v := root.Get(key); v.Exists() && v.Type != gjson.Null {
		*dst = v.String()
	}
}

// boolField accepts JSON booleans as well as "true"/"false" strings,
// which some front-ends send for streaming_mode.
func boolField(root gjson.Result, key string, dst *bool) {
	v := root.Get(key)
	switch v.Type {
	case gjson.True:
		*dst = true
	case gjson.False:
		*dst = false
	case gjson.String:
		*dst = strings.EqualFold(strings.TrimSpace(v.Str), "true")
	case gjson.Number:
		*dst = v.Num != 0
	}
}

// escapePath escapes gjson/sjson path metacharacters in a literal key.
func escapePath(key string) string {
	var b strings.Builder
	for _, c := range key {
		switch c {
		case '.', '*', '?', '|', '#', '@', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
