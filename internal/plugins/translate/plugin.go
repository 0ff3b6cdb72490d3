package translate

import (
	"context"

	"github.com/tavernvoice/tts-adapter/internal/hooks"
	"github.com/tavernvoice/tts-adapter/internal/plugins"
	"github.com/tavernvoice/tts-adapter/internal/tts"
)

// defaultTargetLang applies when the hook context carries no target language.
const defaultTargetLang = "zh"

// Plugin is the translate plugin.
type Plugin struct {
	translator *Translator
	apiKey     string
	model      string
}

// New creates the plugin. An empty model leaves every request untouched.
func New(translator *Translator, apiKey, model string) *Plugin {
	return &Plugin{translator: translator, apiKey: apiKey, model: model}
}

// Name implements hooks.Plugin.
func (p *Plugin) Name() string { return plugins.NameTranslate }

// Register implements hooks.Plugin.
func (p *Plugin) Register(r *hooks.Registrar) error {
	r.OnRequest(hooks.TTSRequest, p.Translate)
	r.OnRequest(hooks.SRTRequest, p.Translate)
	return nil
}

// Translate rewrites the request text into the target language. The text
// language follows the target so the backend reads it correctly.
func (p *Plugin) Translate(ctx context.Context, req *tts.Request, hc hooks.Context) (*tts.Request, error) {
	if req.Text == "" || p.model == "" {
		return req, nil
	}

	target := hc.TargetLang()
	if target == "" {
		target = defaultTargetLang
	}

	req.Text = p.translator.Translate(ctx, req.Text, target, p.apiKey, p.model)
	req.TextLang = target
	return req, nil
}
