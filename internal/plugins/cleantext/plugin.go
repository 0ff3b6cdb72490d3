package cleantext

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/tavernvoice/tts-adapter/internal/hooks"
	"github.com/tavernvoice/tts-adapter/internal/plugins"
	"github.com/tavernvoice/tts-adapter/internal/rules"
	"github.com/tavernvoice/tts-adapter/internal/tts"
)

// cardKeyIndex is the position of the card key in card_name. The front-end
// always sends [voice, mode] first, so shorter lists carry no card.
const cardKeyIndex = 2

// ContextKey returns the card key for a card_name list.
func ContextKey(cardName []string) string {
	if len(cardName) <= cardKeyIndex || cardName[cardKeyIndex] == "" {
		return rules.DefaultName
	}
	return cardName[cardKeyIndex]
}

// Plugin is the clean_text plugin.
type Plugin struct {
	resolver *Resolver
}

// New creates the plugin.
func New(resolver *Resolver) *Plugin {
	return &Plugin{resolver: resolver}
}

// Name implements hooks.Plugin.
func (p *Plugin) Name() string { return plugins.NameCleanText }

// Register implements hooks.Plugin.
func (p *Plugin) Register(r *hooks.Registrar) error {
	r.OnRequest(hooks.TTSRequest, p.Clean)
	r.OnRequest(hooks.SRTRequest, p.Clean)
	return nil
}

// Clean replaces the request text with its cleaned form.
func (p *Plugin) Clean(ctx context.Context, req *tts.Request, hc hooks.Context) (*tts.Request, error) {
	if req.Text == "" {
		return req, nil
	}

	key := ContextKey(req.CardName)
	rs := p.resolver.ResolveOrDefault(ctx, key, req.Text)
	before := len([]rune(req.Text))
	req.Text = rules.Apply(req.Text, rs)

	log.Debug().
		Str("request_id", hc.RequestID()).
		Str("card", key).
		Str("rule_set", rs.Name).
		Int("before", before).
		Int("after", len([]rune(req.Text))).
		Msg("text cleaned")
	return req, nil
}
