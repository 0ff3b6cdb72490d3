package cleantext

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/tavernvoice/tts-adapter/external"
	"github.com/tavernvoice/tts-adapter/internal/monitoring"
	"github.com/tavernvoice/tts-adapter/internal/rules"
)

const (
	// DefaultModel is used when clean_text.model is empty.
	DefaultModel = "Qwen/Qwen2.5-32B-Instruct"

	generationTemperature = 0.3
)

// GeneratorConfig wires a Generator.
type GeneratorConfig struct {
	LLM             external.LLMConfig
	Model           string
	MaxSampleTokens int
	Store           *rules.FileStore

	Metrics    *monitoring.MetricsCollector
	Tracker    *monitoring.Tracker
	HTTPClient *http.Client
}

// Generator asks the text-generation service for a RuleSet tailored to a
// card and stores it. Concurrent requests for the same key share one call.
type Generator struct {
	cfg   GeneratorConfig
	group singleflight.Group
}

// NewGenerator creates a generator.
func NewGenerator(cfg GeneratorConfig) *Generator {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Generator{cfg: cfg}
}

// Generate makes one generation attempt for key using sample as the example
// input. It reports whether a RuleSet was written. Failures are logged and
// never returned; nothing is written on failure.
//
// The shared call is detached from the caller's cancellation so one client
// disconnecting does not fail the requests waiting on the same key. The LLM
// timeout still bounds it.
func (g *Generator) Generate(ctx context.Context, key, sample string) bool {
	v, _, shared := g.group.Do(key, func() (any, error) {
		return g.generate(context.WithoutCancel(ctx), key, sample), nil
	})
	if shared {
		log.Debug().Str("card", key).Msg("joined in-flight rule set generation")
	}
	return v.(bool)
}

func (g *Generator) generate(ctx context.Context, key, sample string) bool {
	start := time.Now()
	event := &monitoring.GenerationEvent{
		Timestamp: start,
		CardKey:   key,
		Model:     g.cfg.Model,
	}
	defer func() {
		event.LatencyMs = time.Since(start).Milliseconds()
		g.cfg.Metrics.RecordGeneration(event.Success)
		g.cfg.Tracker.RecordGeneration(event)
	}()

	sample = external.TruncateTokens(sample, g.cfg.MaxSampleTokens)
	event.SampleChars = len([]rune(sample))

	log.Info().Str("card", key).Str("model", g.cfg.Model).Msg("rule set missing, generating")

	params := g.cfg.LLM.Params()
	params.Model = g.cfg.Model
	params.SystemPrompt = generatorSystemPrompt
	params.UserPrompt = generatorUserPrompt(key, g.example(), sample)
	params.Temperature = generationTemperature
	params.HTTPClient = g.cfg.HTTPClient

	result, err := external.CallLLM(ctx, params)
	if err != nil {
		event.Error = err.Error()
		log.Error().Err(err).Str("card", key).Msg("rule set generation failed")
		return false
	}
	event.InputTokens = result.InputTokens
	event.OutputTokens = result.OutputTokens

	rs, err := parseGenerated(key, result.Content)
	if err != nil {
		event.Error = err.Error()
		log.Error().Err(err).Str("card", key).Msg("generated rule set rejected")
		return false
	}

	if err := g.cfg.Store.Save(key, rs); err != nil {
		event.Error = err.Error()
		log.Error().Err(err).Str("card", key).Msg("failed to store generated rule set")
		return false
	}

	event.Success = true
	log.Info().Str("card", key).Int("rules", len(rs.Rules)).Msg("rule set generated")
	return true
}

// example returns the default RuleSet file used as the structure template.
func (g *Generator) example() string {
	if raw, err := g.cfg.Store.ReadRaw(rules.DefaultName); err == nil {
		return string(raw)
	}
	out, err := rules.Marshal(rules.Default())
	if err != nil {
		return ""
	}
	return string(out)
}

func parseGenerated(key, content string) (*rules.RuleSet, error) {
	rs, err := rules.Parse([]byte(content))
	if err != nil {
		return nil, err
	}
	if len(rs.Rules) == 0 && len(rs.PostProcess) == 0 {
		return nil, fmt.Errorf("rule set has no rules")
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(rs.Name) == "" {
		rs.Name = key
	}
	return rs, nil
}
