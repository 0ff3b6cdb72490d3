// Package translate implements the translate plugin: the request text is
// translated into the language of the reference voice before synthesis.
//
// DESIGN: Translation never fails a request. Blank text, an unknown target
// language, or any remote failure leaves the text as it was. With a cache
// attached, successful translations are reused for identical
// (model, language, prompt, text) requests.
package translate

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tavernvoice/tts-adapter/external"
	"github.com/tavernvoice/tts-adapter/internal/monitoring"
	"github.com/tavernvoice/tts-adapter/internal/store"
)

const (
	// DefaultModel is used when translate.model is unset.
	DefaultModel = "Qwen/Qwen2.5-14B-Instruct"

	// MaxTokens caps the translated reply.
	MaxTokens = 4096

	translationTemperature = 0.3
)

// Translator calls the text-generation service to translate text.
type Translator struct {
	llm        external.LLMConfig
	extended   bool
	metrics    *monitoring.MetricsCollector
	httpClient *http.Client
	cache      store.Store
}

// Option configures a Translator.
type Option func(*Translator)

// WithExtractionPrompt prepends the dialogue extraction rules to the prompt.
func WithExtractionPrompt(enabled bool) Option {
	return func(t *Translator) { t.extended = enabled }
}

// WithMetrics records translation outcomes.
func WithMetrics(mc *monitoring.MetricsCollector) Option {
	return func(t *Translator) { t.metrics = mc }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Translator) { t.httpClient = c }
}

// WithCache reuses earlier translations. A nil store disables caching.
func WithCache(s store.Store) Option {
	return func(t *Translator) { t.cache = s }
}

// NewTranslator creates a translator. llm supplies the endpoint and timeouts;
// the key and model are passed per call.
func NewTranslator(llm external.LLMConfig, opts ...Option) *Translator {
	t := &Translator{llm: llm}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate returns text translated into lang, or text unchanged when
// translation is skipped or fails.
func (t *Translator) Translate(ctx context.Context, text, lang, apiKey, model string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}

	langName, ok := LanguageName(lang)
	if !ok {
		log.Warn().Str("lang", lang).Msg("unknown target language, skipping translation")
		return text
	}

	key := t.cacheKey(text, lang, model)
	if cached, ok := t.lookup(key); ok {
		log.Debug().Str("lang", lang).Str("from", preview(text)).Msg("translation served from cache")
		return cached
	}

	params := t.llm.Params()
	params.APIKey = apiKey
	params.Model = model
	params.SystemPrompt = systemPrompt(langName, t.extended)
	params.UserPrompt = text
	params.Temperature = translationTemperature
	params.MaxTokens = MaxTokens
	params.HTTPClient = t.httpClient

	result, err := external.CallLLM(ctx, params)
	if err != nil {
		t.metrics.RecordTranslation(false)
		log.Error().Err(err).Str("lang", lang).Msg("translation failed, keeping original text")
		return text
	}

	translated := strings.TrimSpace(result.Content)
	t.metrics.RecordTranslation(true)
	if t.cache != nil && translated != "" {
		_ = t.cache.Set(key, translated)
	}
	log.Info().
		Str("lang", lang).
		Str("from", preview(text)).
		Str("to", preview(translated)).
		Msg("text translated")
	return translated
}

func (t *Translator) cacheKey(text, lang, model string) string {
	if t.cache == nil {
		return ""
	}
	prompt := "plain"
	if t.extended {
		prompt = "extended"
	}
	return store.Key(model, lang, prompt, text)
}

func (t *Translator) lookup(key string) (string, bool) {
	if t.cache == nil {
		return "", false
	}
	return t.cache.Get(key)
}

func preview(s string) string {
	r := []rune(s)
	if len(r) > 10 {
		return string(r[:10]) + "..."
	}
	return s
}
