// Package monitoring - metrics.go provides simple counters.
//
// DESIGN: Lightweight in-memory counters for operational metrics:
//   - requests/successes:  Total and successful synthesis requests
//   - hook_failures:       Hook chains aborted by a failing handler
//   - generations_*:       RuleSet generation outcomes
//   - translations_*:      Translation outcomes (failed = original text kept)
//
// Exposed as JSON on GET /health.
package monitoring

import (
	"sync/atomic"
	"time"
)

// MetricsCollector collects operational metrics. A nil collector ignores
// every call, so components can run without one.
type MetricsCollector struct {
	requests           atomic.Int64
	successes          atomic.Int64
	hookFailures       atomic.Int64
	generationsOK      atomic.Int64
	generationsFailed  atomic.Int64
	translationsOK     atomic.Int64
	translationsFailed atomic.Int64
	latencyMsTotal     atomic.Int64
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// RecordRequest records a synthesis request.
func (mc *MetricsCollector) RecordRequest(success bool, latency time.Duration) {
	if mc == nil {
		return
	}
	mc.requests.Add(1)
	if success {
		mc.successes.Add(1)
	}
	mc.latencyMsTotal.Add(latency.Milliseconds())
}

// RecordHookFailure records an aborted hook chain.
func (mc *MetricsCollector) RecordHookFailure() {
	if mc == nil {
		return
	}
	mc.hookFailures.Add(1)
}

// RecordGeneration records a RuleSet generation attempt.
func (mc *MetricsCollector) RecordGeneration(success bool) {
	if mc == nil {
		return
	}
	if success {
		mc.generationsOK.Add(1)
	} else {
		mc.generationsFailed.Add(1)
	}
}

// RecordTranslation records a translation attempt.
func (mc *MetricsCollector) RecordTranslation(success bool) {
	if mc == nil {
		return
	}
	if success {
		mc.translationsOK.Add(1)
	} else {
		mc.translationsFailed.Add(1)
	}
}

// Stats returns current metrics.
func (mc *MetricsCollector) Stats() map[string]int64 {
	if mc == nil {
		return map[string]int64{}
	}
	return map[string]int64{
		"requests":            mc.requests.Load(),
		"successes":           mc.successes.Load(),
		"hook_failures":       mc.hookFailures.Load(),
		"generations_ok":      mc.generationsOK.Load(),
		"generations_failed":  mc.generationsFailed.Load(),
		"translations_ok":     mc.translationsOK.Load(),
		"translations_failed": mc.translationsFailed.Load(),
		"latency_ms_total":    mc.latencyMsTotal.Load(),
	}
}
