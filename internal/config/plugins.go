// Section type re-exports.
//
// DESIGN: Plugin, backend and LLM configuration are defined next to their
// implementations (internal/plugins, internal/tts, external). This file
// re-exports those types for use by the main Config struct, which keeps
// configuration close to the code that reads it without circular imports.
package config

import (
	"github.com/tavernvoice/tts-adapter/external"
	"github.com/tavernvoice/tts-adapter/internal/plugins"
	"github.com/tavernvoice/tts-adapter/internal/tts"
)

// =============================================================================
// TYPE ALIASES FOR YAML UNMARSHALING
// =============================================================================

// PluginsConfig is an alias for plugins.Config for use in main Config struct.
type PluginsConfig = plugins.Config

// CleanTextConfig is an alias for plugins.CleanTextConfig.
type CleanTextConfig = plugins.CleanTextConfig

// TranslateConfig is an alias for plugins.TranslateConfig.
type TranslateConfig = plugins.TranslateConfig

// BackendConfig is an alias for tts.BackendConfig.
type BackendConfig = tts.BackendConfig

// LLMConfig is an alias for external.LLMConfig.
type LLMConfig = external.LLMConfig

// Plugin names - re-exported from plugins package.
const (
	PluginCleanText = plugins.NameCleanText
	PluginTranslate = plugins.NameTranslate
)
