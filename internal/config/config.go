// Package config loads and validates the adapter configuration.
//
// DESIGN: Default() carries the values the adapter has always shipped with,
// so the binary runs with no file at all. A YAML file overrides any subset;
// ${VAR} and ${VAR:-default} are expanded before parsing, and a few
// well-known environment variables override the result.
//
// FILES:
//   - config.go:     Root Config struct, Default(), Load(), Validate()
//   - plugins.go:    Re-exports of plugin, backend and LLM section types
//   - monitoring.go: Logging and telemetry settings
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tavernvoice/tts-adapter/external"
	"github.com/tavernvoice/tts-adapter/internal/plugins"
	"github.com/tavernvoice/tts-adapter/internal/plugins/cleantext"
	"github.com/tavernvoice/tts-adapter/internal/plugins/translate"
	"github.com/tavernvoice/tts-adapter/internal/store"
	"github.com/tavernvoice/tts-adapter/internal/tts"
)

// Config is the root configuration for the adapter.
type Config struct {
	Server     ServerConfig     `yaml:"server"`     // HTTP server settings
	Backend    BackendConfig    `yaml:"backend"`    // TTS backend
	Paths      PathsConfig      `yaml:"paths"`      // On-disk locations
	Defaults   DefaultsConfig   `yaml:"defaults"`   // Request defaults
	LLM        LLMConfig        `yaml:"llm"`        // Text-generation service
	Plugins    PluginsConfig    `yaml:"plugins"`    // Plugin enable table and settings
	Monitoring MonitoringConfig `yaml:"monitoring"` // Telemetry and logging
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int             `yaml:"port"`          // Port to listen on
	ReadTimeout  time.Duration   `yaml:"read_timeout"`  // Max time to read request
	WriteTimeout time.Duration   `yaml:"write_timeout"` // Max time to write response; 0 for unbounded streams
	RateLimit    RateLimitConfig `yaml:"rate_limit"`    // Per-client request limit
}

// RateLimitConfig limits requests per client IP. RequestsPerSecond 0 disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// PathsConfig locates the adapter's files. Relative paths resolve against BaseDir.
type PathsConfig struct {
	BaseDir       string `yaml:"base_dir"`        // Root for relative paths
	RefAudioDir   string `yaml:"ref_audio_dir"`   // Reference audio + transcripts
	OutputDir     string `yaml:"output_dir"`      // Files written by /srt
	ModelsConfig  string `yaml:"models_config"`   // Character → weights map (JSON)
	CardConfigDir string `yaml:"card_config_dir"` // Per-card RuleSet files
}

// DefaultsConfig contains request defaults.
type DefaultsConfig struct {
	Lang string `yaml:"lang"` // Language when a character's model does not name one
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        9881,
			ReadTimeout: 30 * time.Second,
			RateLimit:   RateLimitConfig{RequestsPerSecond: 20, Burst: 40},
		},
		Backend: BackendConfig{
			URL:            tts.DefaultBackendURL,
			Timeout:        tts.DefaultTimeout,
			ConnectTimeout: tts.DefaultConnectTimeout,
		},
		Paths: PathsConfig{
			BaseDir:       ".",
			RefAudioDir:   "voice",
			OutputDir:     "output",
			ModelsConfig:  "models.json",
			CardConfigDir: "card_config",
		},
		Defaults: DefaultsConfig{Lang: "zh"},
		LLM: LLMConfig{
			Endpoint:       external.DefaultEndpoint,
			Timeout:        external.DefaultTimeout,
			ConnectTimeout: external.DefaultConnectTimeout,
		},
		Plugins: PluginsConfig{
			Enabled: map[string]bool{
				plugins.NameCleanText: true,
				plugins.NameTranslate: false,
			},
			CleanText: plugins.CleanTextConfig{Model: cleantext.DefaultModel},
			Translate: plugins.TranslateConfig{
				Model:     translate.DefaultModel,
				CacheTTL:  store.DefaultTTL,
				CacheSize: store.DefaultMaxEntries,
			},
		},
		Monitoring: MonitoringConfig{
			LogLevel:      "info",
			LogFormat:     "console",
			LogOutput:     "stdout",
			TelemetryPath: "logs/telemetry.jsonl",
		},
	}
}

// expandEnvWithDefaults expands environment variables with support for default values.
// Supports both ${VAR} and ${VAR:-default} syntax.
func expandEnvWithDefaults(s string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// Load reads configuration from a YAML file layered over Default().
// Returns an error if the file doesn't exist or is invalid.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration from raw YAML bytes.
// Supports ${VAR:-default} env var expansion, env overrides, and validation.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvWithDefaults(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// FromEnv returns Default() with environment overrides applied.
// Used when no config file is found.
func FromEnv() (*Config, error) {
	cfg := Default()
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// The SILICONFLOW_* names are what existing deployments already export.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SILICONFLOW_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("SILICONFLOW_API_URL"); v != "" {
		c.LLM.Endpoint = v
	}
	if v := os.Getenv("SILICONFLOW_CLEANER_MODEL"); v != "" {
		c.Plugins.CleanText.Model = v
	}
	if v := os.Getenv("SILICONFLOW_TRANSLATE_MODEL"); v != "" {
		c.Plugins.Translate.Model = v
	}
	if v := os.Getenv("TTS_BACKEND_URL"); v != "" {
		c.Backend.URL = v
	}
	if v := os.Getenv("TTS_ADAPTER_TELEMETRY_LOG"); v != "" {
		c.Monitoring.TelemetryPath = v
		c.Monitoring.TelemetryEnabled = true
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}
	if c.Server.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must not be negative")
	}
	if c.Server.RateLimit.RequestsPerSecond > 0 && c.Server.RateLimit.Burst < 1 {
		return fmt.Errorf("server.rate_limit.burst must be at least 1")
	}

	if err := c.Backend.Validate(); err != nil {
		return err
	}
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if err := c.Plugins.Validate(); err != nil {
		return err
	}
	if err := c.Monitoring.Validate(); err != nil {
		return err
	}

	if c.Paths.RefAudioDir == "" {
		return fmt.Errorf("paths.ref_audio_dir is required")
	}
	if c.Paths.OutputDir == "" {
		return fmt.Errorf("paths.output_dir is required")
	}
	if c.Paths.CardConfigDir == "" {
		return fmt.Errorf("paths.card_config_dir is required")
	}
	if c.Defaults.Lang == "" {
		return fmt.Errorf("defaults.lang is required")
	}

	return nil
}

// Resolve returns p made absolute against BaseDir. Absolute paths and an
// empty BaseDir leave p unchanged.
func (p PathsConfig) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || p.BaseDir == "" {
		return path
	}
	return filepath.Join(p.BaseDir, path)
}

// RefAudio returns the resolved reference audio directory.
func (p PathsConfig) RefAudio() string { return p.Resolve(p.RefAudioDir) }

// Output returns the resolved output directory.
func (p PathsConfig) Output() string { return p.Resolve(p.OutputDir) }

// Models returns the resolved models config path.
func (p PathsConfig) Models() string { return p.Resolve(p.ModelsConfig) }

// CardConfig returns the resolved RuleSet directory.
func (p PathsConfig) CardConfig() string { return p.Resolve(p.CardConfigDir) }
