// Package plugins turns configuration into registered hook handlers.
//
// DESIGN: Discovery walks an explicit, ordered catalogue of built-in plugin
// factories. The catalogue order is the registration order, so handler order
// on each hook is deterministic across runs. Enable flags come from
// plugins.enabled.<name>; disabled plugins are never constructed.
//
// FILES:
//   - config.go: plugin configuration types (re-exported by config/)
//   - plugin.go: catalogue entries, descriptors, Discover
package plugins

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/tavernvoice/tts-adapter/internal/hooks"
)

// Factory builds a plugin instance. It is only called for enabled plugins.
type Factory func() (hooks.Plugin, error)

// Entry is one catalogue slot.
type Entry struct {
	Name    string
	Factory Factory
}

// Descriptor reports what discovery did with one plugin.
type Descriptor struct {
	Name    string       `json:"name"`
	Enabled bool         `json:"enabled"`
	Hooks   []hooks.Name `json:"hooks"`
}

// Discover registers every enabled plugin of the catalogue with mgr, in
// catalogue order, and returns one descriptor per catalogue entry. Names in
// the enable table that match no entry are logged and ignored.
func Discover(mgr *hooks.Manager, cfg Config, catalogue []Entry) ([]Descriptor, error) {
	known := make(map[string]bool, len(catalogue))
	descriptors := make([]Descriptor, 0, len(catalogue))

	for _, entry := range catalogue {
		if known[entry.Name] {
			return nil, fmt.Errorf("plugin %q listed twice", entry.Name)
		}
		known[entry.Name] = true

		desc := Descriptor{Name: entry.Name, Enabled: cfg.IsEnabled(entry.Name), Hooks: []hooks.Name{}}
		if !desc.Enabled {
			log.Info().Str("plugin", entry.Name).Msg("plugin disabled")
			descriptors = append(descriptors, desc)
			continue
		}

		plugin, err := entry.Factory()
		if err != nil {
			return nil, fmt.Errorf("plugin %q: %w", entry.Name, err)
		}

		reg := hooks.NewRegistrar(mgr, entry.Name)
		if err := plugin.Register(reg); err != nil {
			return nil, fmt.Errorf("plugin %q: register: %w", entry.Name, err)
		}
		desc.Hooks = reg.Hooks()

		if len(desc.Hooks) == 0 {
			log.Warn().Str("plugin", entry.Name).Msg("plugin registered no handlers")
		} else {
			log.Info().Str("plugin", entry.Name).Int("handlers", len(desc.Hooks)).Msg("plugin loaded")
		}
		descriptors = append(descriptors, desc)
	}

	unknown := make([]string, 0)
	for name := range cfg.Enabled {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		log.Warn().Str("plugin", name).Msg("unknown plugin in enable table, ignoring")
	}

	return descriptors, nil
}
