// Package gateway is the HTTP host of the adapter.
//
// DESIGN: The gateway owns every long-lived component and wires them once at
// startup:
//  1. tts.Client + tts.WeightSwitcher talk to the synthesis backend
//  2. tts.Rewriter fixes reference audio paths and prompt text
//  3. plugins.Discover registers the enabled built-in plugins on a hooks.Manager
//  4. handlers run request hooks, call the backend, run response hooks and
//     stream audio back
//
// Nothing is discovered at request time: the plugin catalogue, the model map
// and the hook registrations are fixed after New returns.
//
// FILES:
//   - gateway.go:    Gateway struct, New, Start, Shutdown, plugin catalogue
//   - handlers.go:   HTTP handlers (/tts, /srt, /speakers, /health, /plugins)
//   - websocket.go:  /tts/ws streaming endpoint
//   - middleware.go: logging, recovery, rate limiting, CORS
//   - types.go:      constants and reply shapes
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tavernvoice/tts-adapter/internal/config"
	"github.com/tavernvoice/tts-adapter/internal/hooks"
	"github.com/tavernvoice/tts-adapter/internal/monitoring"
	"github.com/tavernvoice/tts-adapter/internal/plugins"
	"github.com/tavernvoice/tts-adapter/internal/plugins/cleantext"
	"github.com/tavernvoice/tts-adapter/internal/plugins/translate"
	"github.com/tavernvoice/tts-adapter/internal/rules"
	"github.com/tavernvoice/tts-adapter/internal/store"
	"github.com/tavernvoice/tts-adapter/internal/tts"
)

// Gateway serves the front-end API.
type Gateway struct {
	cfg *config.Config

	hooks       *hooks.Manager
	descriptors []plugins.Descriptor

	client   *tts.Client
	switcher *tts.WeightSwitcher
	rewriter *tts.Rewriter
	rules    *rules.FileStore

	metrics       *monitoring.MetricsCollector
	tracker       *monitoring.Tracker
	alerts        *monitoring.AlertManager
	requestLogger *monitoring.RequestLogger
	rateLimiter   *rateLimiter
	translations  *store.MemoryStore

	extra []plugins.Entry

	handler http.Handler
	server  *http.Server
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithPlugins appends entries to the built-in plugin catalogue. They are
// enabled through plugins.enabled like any built-in plugin.
func WithPlugins(entries ...plugins.Entry) Option {
	return func(g *Gateway) {
		g.extra = append(g.extra, entries...)
	}
}

// New builds a gateway from cfg. Directories are created, models.json is
// loaded, the default RuleSet is written if missing and plugins are
// registered. A broken models.json is logged and treated as empty.
func New(cfg *config.Config, opts ...Option) (*Gateway, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	for _, dir := range []string{cfg.Paths.RefAudio(), cfg.Paths.Output()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	models, err := tts.LoadModelMap(cfg.Paths.Models())
	if err != nil {
		log.Error().Err(err).Msg("failed to load character model map, continuing without weight switching")
	} else {
		log.Info().Int("characters", len(models)).Msg("loaded character model map")
	}

	ruleStore := rules.NewFileStore(cfg.Paths.CardConfig())
	if err := ruleStore.EnsureDefault(); err != nil {
		log.Warn().Err(err).Str("dir", ruleStore.Dir()).Msg("failed to write default rule set, using built-in")
	}

	tracker, err := monitoring.NewTracker(cfg.Monitoring.Telemetry())
	if err != nil {
		return nil, fmt.Errorf("failed to start telemetry: %w", err)
	}

	logger := monitoring.Wrap(log.Logger)
	client := tts.NewClient(cfg.Backend)

	g := &Gateway{
		cfg:      cfg,
		hooks:    hooks.NewManager(),
		client:   client,
		switcher: tts.NewWeightSwitcher(client, models),
		rewriter: &tts.Rewriter{
			RefAudioDir: cfg.Paths.RefAudio(),
			DefaultLang: cfg.Defaults.Lang,
			Models:      models,
		},
		rules:         ruleStore,
		metrics:       monitoring.NewMetricsCollector(),
		tracker:       tracker,
		alerts:        monitoring.NewAlertManager(logger, monitoring.AlertConfig{}),
		requestLogger: monitoring.NewRequestLogger(logger),
		rateLimiter:   newRateLimiter(cfg.Server.RateLimit.RequestsPerSecond, cfg.Server.RateLimit.Burst),
	}
	for _, opt := range opts {
		opt(g)
	}

	g.descriptors, err = plugins.Discover(g.hooks, cfg.Plugins, g.catalogue())
	if err != nil {
		_ = tracker.Close()
		g.rateLimiter.close()
		g.closeCache()
		return nil, fmt.Errorf("failed to load plugins: %w", err)
	}

	g.handler = g.routes()
	g.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           g.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
	return g, nil
}

// catalogue lists the plugins in registration order: text is cleaned
// before it is translated, and extra plugins run last.
func (g *Gateway) catalogue() []plugins.Entry {
	entries := []plugins.Entry{
		{Name: plugins.NameCleanText, Factory: g.newCleanText},
		{Name: plugins.NameTranslate, Factory: g.newTranslate},
	}
	return append(entries, g.extra...)
}

func (g *Gateway) newCleanText() (hooks.Plugin, error) {
	settings := g.cfg.Plugins.CleanText

	var gen cleantext.RuleSetGenerator
	switch {
	case !settings.AIEnable:
	case !g.cfg.LLM.Enabled():
		log.Warn().Str("plugin", plugins.NameCleanText).Msg("ai_enable set but no API key configured, rule set generation off")
	default:
		gen = cleantext.NewGenerator(cleantext.GeneratorConfig{
			LLM:             g.cfg.LLM,
			Model:           settings.Model,
			MaxSampleTokens: settings.MaxSampleTokens,
			Store:           g.rules,
			Metrics:         g.metrics,
			Tracker:         g.tracker,
		})
	}

	return cleantext.New(cleantext.NewResolver(g.rules, gen)), nil
}

func (g *Gateway) newTranslate() (hooks.Plugin, error) {
	settings := g.cfg.Plugins.Translate
	if !g.cfg.LLM.Enabled() {
		log.Warn().Str("plugin", plugins.NameTranslate).Msg("no API key configured, text will pass through untranslated")
	}
	opts := []translate.Option{
		translate.WithExtractionPrompt(settings.ExtraPrompt),
		translate.WithMetrics(g.metrics),
	}
	if settings.CacheTTL > 0 {
		g.translations = store.NewMemoryStore(settings.CacheTTL, settings.CacheSize)
		opts = append(opts, translate.WithCache(g.translations))
		log.Info().Dur("ttl", settings.CacheTTL).Msg("translation cache enabled")
	}
	translator := translate.NewTranslator(g.cfg.LLM, opts...)
	return translate.New(translator, g.cfg.LLM.APIKey, settings.Model), nil
}

// routes builds the mux wrapped in the middleware chain.
func (g *Gateway) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /{$}", g.handleTTS)
	mux.HandleFunc("POST /tts", g.handleTTS)
	mux.HandleFunc("GET /tts/ws", g.handleTTSWebSocket)
	mux.HandleFunc("POST /srt", g.handleSRT)
	mux.Handle("GET /srt/", http.StripPrefix("/srt/", http.FileServer(http.Dir(g.cfg.Paths.Output()))))
	mux.HandleFunc("GET /speakers", g.handleSpeakers)
	mux.HandleFunc("GET /speakers_list", g.handleSpeakersList)
	mux.HandleFunc("GET /health", g.handleHealth)
	mux.HandleFunc("GET /plugins", g.handlePlugins)

	var h http.Handler = mux
	h = g.cors(h)
	h = g.rateLimit(h)
	h = g.loggingMiddleware(h)
	h = g.panicRecovery(h)
	return h
}

// Handler returns the gateway's HTTP handler with middleware applied.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// Plugins returns the discovery result.
func (g *Gateway) Plugins() []plugins.Descriptor {
	return g.descriptors
}

// Metrics returns the gateway's counters.
func (g *Gateway) Metrics() *monitoring.MetricsCollector {
	return g.metrics
}

// Start serves until Shutdown is called.
func (g *Gateway) Start() error {
	log.Info().
		Int("port", g.cfg.Server.Port).
		Str("backend", g.cfg.Backend.URL).
		Msg("tts adapter listening")
	if err := g.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (g *Gateway) Shutdown(ctx context.Context) error {
	err := g.server.Shutdown(ctx)
	g.rateLimiter.close()
	g.closeCache()
	if cerr := g.tracker.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (g *Gateway) closeCache() {
	if g.translations != nil {
		_ = g.translations.Close()
	}
}
