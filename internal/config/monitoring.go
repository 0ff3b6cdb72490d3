// Monitoring configuration - telemetry and logging settings.
//
// DESIGN: Separates logging (zerolog) from telemetry (JSONL files).
// Logging is for operators, telemetry is for analytics/debugging.
package config

import (
	"fmt"

	"github.com/tavernvoice/tts-adapter/internal/monitoring"
)

// MonitoringConfig contains all monitoring settings.
type MonitoringConfig struct {
	// Logging settings
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // json, console
	LogOutput string `yaml:"log_output"` // stdout, stderr, or file path

	// Telemetry settings
	TelemetryEnabled  bool   `yaml:"telemetry_enabled"`   // Enable telemetry tracking
	TelemetryPath     string `yaml:"telemetry_path"`      // Path to synthesis JSONL file
	GenerationLogPath string `yaml:"generation_log_path"` // Path to RuleSet generation JSONL file
	LogToStdout       bool   `yaml:"log_to_stdout"`       // Also log telemetry to stdout
}

// Validate checks the monitoring section.
func (m *MonitoringConfig) Validate() error {
	switch m.LogFormat {
	case "", "json", "console":
	default:
		return fmt.Errorf("invalid monitoring.log_format: %q (must be json or console)", m.LogFormat)
	}
	if m.TelemetryEnabled && m.TelemetryPath == "" && m.GenerationLogPath == "" {
		return fmt.Errorf("monitoring.telemetry_path is required when telemetry is enabled")
	}
	return nil
}

// Logger returns the zerolog settings.
func (m MonitoringConfig) Logger() monitoring.LoggerConfig {
	return monitoring.LoggerConfig{Level: m.LogLevel, Format: m.LogFormat, Output: m.LogOutput}
}

// Telemetry returns the JSONL tracker settings.
func (m MonitoringConfig) Telemetry() monitoring.TelemetryConfig {
	return monitoring.TelemetryConfig{
		Enabled:           m.TelemetryEnabled,
		LogPath:           m.TelemetryPath,
		GenerationLogPath: m.GenerationLogPath,
		LogToStdout:       m.LogToStdout,
	}
}
