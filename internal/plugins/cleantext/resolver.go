// Package cleantext implements the clean_text plugin: it picks the RuleSet
// for the card a request belongs to and cleans the request text with it.
//
// DESIGN: Resolution order for a card key:
//  1. <card_config_dir>/<key>.yaml when present and parseable
//  2. a freshly generated RuleSet, when generation is enabled
//  3. the default RuleSet on disk, then the built-in default
//
// Files are re-read on every request; there is no cache, so operator edits
// take effect immediately.
package cleantext

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/tavernvoice/tts-adapter/internal/rules"
)

// RuleSetGenerator produces and stores a RuleSet for a key.
type RuleSetGenerator interface {
	Generate(ctx context.Context, key, sample string) bool
}

// Resolver maps card keys to RuleSets.
type Resolver struct {
	store *rules.FileStore
	gen   RuleSetGenerator
}

// NewResolver creates a resolver. A nil gen disables generation.
func NewResolver(store *rules.FileStore, gen RuleSetGenerator) *Resolver {
	return &Resolver{store: store, gen: gen}
}

// Resolve returns the RuleSet stored for key, generating one first when it
// is missing and generation is enabled. existed is false when no usable
// RuleSet for key could be found.
func (r *Resolver) Resolve(ctx context.Context, key, sample string) (rs *rules.RuleSet, existed bool) {
	if rs, ok := r.load(key); ok {
		return rs, true
	}
	// Invalid keys and present-but-unreadable files count as absent.
	if _, err := r.store.Path(key); err != nil || r.store.Exists(key) {
		return nil, false
	}
	// The default is never generated; the built-in one stands in for it.
	if r.gen == nil || key == rules.DefaultName {
		log.Debug().Str("card", key).Msg("rule set missing, generation disabled")
		return nil, false
	}
	if !r.gen.Generate(ctx, key, sample) {
		return nil, false
	}
	return r.load(key)
}

// ResolveOrDefault resolves key and falls back to the default RuleSet.
func (r *Resolver) ResolveOrDefault(ctx context.Context, key, sample string) *rules.RuleSet {
	if rs, ok := r.Resolve(ctx, key, sample); ok {
		return rs
	}
	if key != rules.DefaultName {
		if rs, ok := r.load(rules.DefaultName); ok {
			return rs
		}
	}
	log.Debug().Str("card", key).Msg("using built-in default rule set")
	return rules.Default()
}

func (r *Resolver) load(key string) (*rules.RuleSet, bool) {
	rs, err := r.store.Load(key)
	switch {
	case err == nil:
		return rs, true
	case errors.Is(err, rules.ErrNotFound):
	case errors.Is(err, rules.ErrInvalidKey):
		log.Warn().Str("card", key).Msg("invalid card key, using default rule set")
	default:
		log.Warn().Err(err).Str("card", key).Msg("rule set unreadable, treating as absent")
	}
	return nil, false
}
