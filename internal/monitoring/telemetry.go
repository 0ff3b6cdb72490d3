// Package monitoring - telemetry.go records events to JSONL files.
//
// DESIGN: Tracker writes structured events as JSONL (one JSON object per line):
//   - SynthesisEvent:   Every synthesis request through the adapter
//   - GenerationEvent:  Every RuleSet generation attempt
//
// Events are appended to files immediately after each event for real-time logging.
package monitoring

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// Tracker handles telemetry event recording to file and stdout.
// A nil Tracker records nothing.
type Tracker struct {
	config            TelemetryConfig
	requestLogPath    string
	generationLogPath string
	requestCount      int
	generationCount   int
	mu                sync.Mutex
}

// NewTracker creates a new telemetry tracker.
func NewTracker(cfg TelemetryConfig) (*Tracker, error) {
	t := &Tracker{
		config: cfg,
	}

	if !cfg.Enabled {
		return t, nil
	}

	if cfg.LogPath != "" {
		if err := touch(cfg.LogPath); err != nil {
			return nil, err
		}
		t.requestLogPath = cfg.LogPath
	}

	if cfg.GenerationLogPath != "" {
		if err := touch(cfg.GenerationLogPath); err != nil {
			return nil, err
		}
		t.generationLogPath = cfg.GenerationLogPath
	}

	return t, nil
}

// touch ensures the directory exists and creates an empty file if missing.
func touch(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if f, err := os.Create(path); err == nil {
			f.Close()
		}
	}
	return nil
}

// appendJSONL appends a single JSON object as a line to the file.
func appendJSONL(path string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(data)
	return err
}

func (t *Tracker) enabled() bool {
	return t != nil && t.config.Enabled
}

// RecordSynthesis records a synthesis request event.
func (t *Tracker) RecordSynthesis(event *SynthesisEvent) {
	if !t.enabled() {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.config.LogToStdout {
		reqID := event.RequestID
		if len(reqID) > 8 {
			reqID = reqID[:8]
		}
		log.Info().
			Str("request_id", reqID).
			Str("route", string(event.Route)).
			Str("character", event.Character).
			Int64("audio_bytes", event.AudioBytes).
			Bool("success", event.Success).
			Msg("telemetry")
	}

	if t.requestLogPath != "" {
		if err := appendJSONL(t.requestLogPath, event); err != nil {
			log.Error().Err(err).Str("path", t.requestLogPath).Msg("telemetry: failed to write synthesis event")
		} else {
			t.requestCount++
		}
	}
}

// RecordGeneration records a RuleSet generation attempt.
func (t *Tracker) RecordGeneration(event *GenerationEvent) {
	if !t.enabled() || t.generationLogPath == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := appendJSONL(t.generationLogPath, event); err != nil {
		log.Error().Err(err).Str("path", t.generationLogPath).Msg("telemetry: failed to write generation event")
	} else {
		t.generationCount++
	}
}

// Close logs a session summary.
func (t *Tracker) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.requestLogPath != "" && t.requestCount > 0 {
		log.Info().
			Str("path", t.requestLogPath).
			Int("events", t.requestCount).
			Int("generations", t.generationCount).
			Msg("telemetry: session complete")
	}

	return nil
}
