package monitoring_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tavernvoice/tts-adapter/internal/monitoring"
)

func TestMetricsCollector(t *testing.T) {
	mc := monitoring.NewMetricsCollector()
	mc.RecordRequest(true, 120*time.Millisecond)
	mc.RecordRequest(false, 30*time.Millisecond)
	mc.RecordHookFailure()
	mc.RecordGeneration(true)
	mc.RecordGeneration(false)
	mc.RecordGeneration(false)
	mc.RecordTranslation(true)

	stats := mc.Stats()
	assert.Equal(t, int64(2), stats["requests"])
	assert.Equal(t, int64(1), stats["successes"])
	assert.Equal(t, int64(1), stats["hook_failures"])
	assert.Equal(t, int64(1), stats["generations_ok"])
	assert.Equal(t, int64(2), stats["generations_failed"])
	assert.Equal(t, int64(1), stats["translations_ok"])
	assert.Equal(t, int64(0), stats["translations_failed"])
	assert.Equal(t, int64(150), stats["latency_ms_total"])
}

func TestMetricsCollector_NilIsNoop(t *testing.T) {
	var mc *monitoring.MetricsCollector
	assert.NotPanics(t, func() {
		mc.RecordRequest(true, time.Second)
		mc.RecordGeneration(true)
		mc.RecordTranslation(false)
		mc.RecordHookFailure()
	})
	assert.Empty(t, mc.Stats())
}

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	return out
}

func TestTracker_WritesJSONL(t *testing.T) {
	dir := t.TempDir()
	cfg := monitoring.TelemetryConfig{
		Enabled:           true,
		LogPath:           filepath.Join(dir, "logs", "synthesis.jsonl"),
		GenerationLogPath: filepath.Join(dir, "logs", "generation.jsonl"),
	}
	tr, err := monitoring.NewTracker(cfg)
	require.NoError(t, err)

	tr.RecordSynthesis(&monitoring.SynthesisEvent{RequestID: "r1", Route: monitoring.RouteStream, Character: "alice", Success: true})
	tr.RecordSynthesis(&monitoring.SynthesisEvent{RequestID: "r2", Route: monitoring.RouteSRT, Error: "backend 500"})
	tr.RecordGeneration(&monitoring.GenerationEvent{CardKey: "alice", Model: "qwen", Success: false, Error: "status 500"})
	require.NoError(t, tr.Close())

	lines := readLines(t, cfg.LogPath)
	require.Len(t, lines, 2)
	assert.Equal(t, "r1", lines[0]["request_id"])
	assert.Equal(t, "tts", lines[0]["route"])
	assert.Equal(t, "backend 500", lines[1]["error"])

	gens := readLines(t, cfg.GenerationLogPath)
	require.Len(t, gens, 1)
	assert.Equal(t, "alice", gens[0]["card_key"])
}

func TestTracker_DisabledAndNil(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "synthesis.jsonl")
	tr, err := monitoring.NewTracker(monitoring.TelemetryConfig{LogPath: path})
	require.NoError(t, err)
	tr.RecordSynthesis(&monitoring.SynthesisEvent{RequestID: "r1"})
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	var nilTracker *monitoring.Tracker
	assert.NotPanics(t, func() {
		nilTracker.RecordSynthesis(&monitoring.SynthesisEvent{})
		nilTracker.RecordGeneration(&monitoring.GenerationEvent{})
		_ = nilTracker.Close()
	})
}

func TestAlertManager(t *testing.T) {
	var buf bytes.Buffer
	am := monitoring.NewAlertManager(monitoring.Wrap(zerolog.New(&buf)), monitoring.AlertConfig{HighLatencyThreshold: time.Second})

	am.FlagHighLatency("r1", 10*time.Millisecond, monitoring.RouteStream)
	assert.Empty(t, buf.String(), "below threshold")

	am.FlagHighLatency("r1", 2*time.Second, monitoring.RouteStream)
	assert.Contains(t, buf.String(), "high_latency")

	buf.Reset()
	am.FlagBackendError("r2", 500, string(bytes.Repeat([]byte("e"), 1000)))
	assert.Contains(t, buf.String(), "backend_error")
	assert.Less(t, buf.Len(), 400)
}

func TestRequestIDContext(t *testing.T) {
	ctx := monitoring.WithRequestIDContext(context.Background(), "abc")
	assert.Equal(t, "abc", monitoring.RequestIDFromContext(ctx))
	assert.Equal(t, "", monitoring.RequestIDFromContext(context.Background()))
}

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "adapter.log")
	l, err := monitoring.New(monitoring.LoggerConfig{Level: "warn", Format: "json", Output: path})
	require.NoError(t, err)

	l.Info().Msg("dropped")
	l.Warn().Str("card", "alice").Msg("kept")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "alice", entry["card"])
}

func TestNewLogger_Errors(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := monitoring.New(monitoring.LoggerConfig{Output: filepath.Join(blocker, "sub", "x.log")})
	assert.Error(t, err)

	l, err := monitoring.New(monitoring.LoggerConfig{Level: "nonsense"})
	require.NoError(t, err)
	assert.NoError(t, l.Close(), "stdout loggers close cleanly")
}
