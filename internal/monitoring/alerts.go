// Package monitoring - alerts.go flags anomalies and errors.
//
// DESIGN: AlertManager logs notable events at appropriate levels:
//   - FlagHighLatency:     Warn when a synthesis request exceeds threshold
//   - FlagHookFailure:     Error when a hook chain aborts
//   - FlagBackendError:    Warn on non-200 TTS backend responses
//   - FlagPanic:           Error on recovered panics
package monitoring

import "time"

// AlertManager flags anomalies and errors.
type AlertManager struct {
	logger               *Logger
	highLatencyThreshold time.Duration
}

// NewAlertManager creates a new alert manager.
func NewAlertManager(logger *Logger, cfg AlertConfig) *AlertManager {
	threshold := cfg.HighLatencyThreshold
	if threshold == 0 {
		threshold = 30 * time.Second
	}
	return &AlertManager{logger: logger, highLatencyThreshold: threshold}
}

// FlagHighLatency logs when request latency exceeds threshold.
func (am *AlertManager) FlagHighLatency(requestID string, latency time.Duration, route Route) {
	if latency < am.highLatencyThreshold {
		return
	}
	am.logger.Warn().
		Str("request_id", requestID).
		Dur("latency", latency).
		Str("route", string(route)).
		Msg("high_latency")
}

// FlagHookFailure logs an aborted hook chain.
func (am *AlertManager) FlagHookFailure(requestID, hook string, err error) {
	am.logger.Error().
		Str("request_id", requestID).
		Str("hook", hook).
		Err(err).
		Msg("hook_failed")
}

// FlagBackendError logs a non-200 TTS backend reply.
func (am *AlertManager) FlagBackendError(requestID string, statusCode int, body string) {
	if len(body) > 200 {
		body = body[:200]
	}
	am.logger.Warn().
		Str("request_id", requestID).
		Int("status", statusCode).
		Str("body", body).
		Msg("backend_error")
}

// FlagPanic logs recovered panic.
func (am *AlertManager) FlagPanic(requestID string, panicValue interface{}, stack string) {
	am.logger.Error().
		Str("request_id", requestID).
		Interface("panic", panicValue).
		Str("stack", stack).
		Msg("panic_recovered")
}
