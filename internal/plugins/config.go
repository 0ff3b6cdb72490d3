// Plugins configuration - per-plugin settings and the enable table.
//
// DESIGN: Each built-in plugin reads its own section:
//   - CleanText:  per-card RuleSet cleaning, optional AI RuleSet generation
//   - Translate:  LLM translation of the request text
//
// A plugin runs only when plugins.enabled.<name> is true.
//
// NOTE: This file defines plugin-specific configuration types.
// The main Config struct in config/ imports and uses these types.
package plugins

import (
	"fmt"
	"time"
)

// Built-in plugin names, as used in the enable table.
const (
	NameCleanText = "clean_text"
	NameTranslate = "translate"
)

// Config is the plugins section of the main configuration.
type Config struct {
	Enabled   map[string]bool `yaml:"enabled"`
	CleanText CleanTextConfig `yaml:"clean_text"`
	Translate TranslateConfig `yaml:"translate"`
}

// CleanTextConfig configures the clean_text plugin.
type CleanTextConfig struct {
	// AIEnable allows generating a RuleSet for cards that have none.
	AIEnable bool `yaml:"ai_enable"`

	// Model used for RuleSet generation.
	Model string `yaml:"model"`

	// MaxSampleTokens caps the sample text embedded in the generation
	// prompt. 0 sends the whole text.
	MaxSampleTokens int `yaml:"max_sample_tokens"`
}

// TranslateConfig configures the translate plugin.
type TranslateConfig struct {
	// Model used for translation. Empty disables translation.
	Model string `yaml:"model"`

	// ExtraPrompt prepends the dialogue extraction rules to the prompt.
	ExtraPrompt bool `yaml:"extra_prompt"`

	// CacheTTL keeps successful translations in memory. 0 disables the cache.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// CacheSize caps the number of cached translations.
	CacheSize int `yaml:"cache_size"`
}

// IsEnabled reports whether the named plugin is switched on.
func (c *Config) IsEnabled(name string) bool {
	return c.Enabled[name]
}

// Validate checks the plugins section.
func (c *Config) Validate() error {
	if c.CleanText.MaxSampleTokens < 0 {
		return fmt.Errorf("plugins.clean_text.max_sample_tokens must not be negative")
	}
	if c.Translate.CacheTTL < 0 || c.Translate.CacheSize < 0 {
		return fmt.Errorf("plugins.translate cache settings must not be negative")
	}
	if c.IsEnabled(NameCleanText) && c.CleanText.AIEnable && c.CleanText.Model == "" {
		return fmt.Errorf("plugins.clean_text.model is required when ai_enable is true")
	}
	return nil
}
