// HTTP handlers for the front-end API.
//
// DESIGN: Every synthesis route runs the same stages:
//  1. decode:   lenient JSON → tts.Request (400 on failure)
//  2. rewrite:  reference audio path, prompt text, garbage cleaning
//  3. switch:   load the character's weights on the backend
//  4. hooks:    request hook chain (500 when a handler fails)
//  5. backend:  streaming or buffered synthesis
//
// The streaming routes additionally run the response hook over the lazy
// audio stream before copying it to the client chunk by chunk.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tavernvoice/tts-adapter/internal/hooks"
	"github.com/tavernvoice/tts-adapter/internal/monitoring"
	"github.com/tavernvoice/tts-adapter/internal/plugins/cleantext"
	"github.com/tavernvoice/tts-adapter/internal/tts"
)

// =============================================================================
// SYNTHESIS PIPELINE
// =============================================================================

func (g *Gateway) newSynthesis(r *http.Request, route monitoring.Route) *synthesis {
	return &synthesis{
		route:     route,
		requestID: monitoring.RequestIDFromContext(r.Context()),
		clientIP:  getClientIP(r),
		start:     time.Now(),
	}
}

// decode parses and rewrites the request body.
func (g *Gateway) decode(body []byte, s *synthesis) error {
	req, err := tts.DecodeRequest(body)
	if err != nil {
		return err
	}
	s.inputChars = len([]rune(req.Text))
	s.cardKey = cleantext.ContextKey(req.CardName)
	s.character, s.targetLang = g.rewriter.Rewrite(req)
	s.req = req
	return nil
}

// runRequestHooks switches weights and runs the request hook chain.
func (g *Gateway) runRequestHooks(ctx context.Context, name hooks.Name, s *synthesis, hc hooks.Context) error {
	g.switcher.Switch(ctx, s.character)

	hookStart := time.Now()
	s.hooksRun = len(g.hooks.Registrations(name))
	out, err := g.hooks.RunRequest(ctx, name, s.req, hc)
	s.hookTime = time.Since(hookStart)

	g.requestLogger.LogHookStage(&monitoring.HookStageInfo{
		RequestID: s.requestID,
		Hook:      string(name),
		Handlers:  s.hooksRun,
		Duration:  s.hookTime,
	})
	if err != nil {
		g.metrics.RecordHookFailure()
		g.alerts.FlagHookFailure(s.requestID, string(name), err)
		return err
	}
	s.req = out
	return nil
}

// openStream starts the lazy backend stream and runs the response hook.
func (g *Gateway) openStream(ctx context.Context, s *synthesis) (tts.Stream, error) {
	g.requestLogger.LogBackend(&monitoring.BackendRequestInfo{
		RequestID: s.requestID,
		Character: s.character,
		TextLang:  s.req.TextLang,
		TextChars: len([]rune(s.req.Text)),
		Streaming: true,
	})

	stream := g.client.Synthesize(s.req)
	out, err := g.hooks.RunStream(ctx, hooks.TTSResponse, stream, hooks.Context{
		hooks.KeyCharacterName: s.character,
		hooks.KeyTargetLang:    s.targetLang,
		hooks.KeyRequestID:     s.requestID,
	})
	if err != nil {
		_ = stream.Close()
		g.metrics.RecordHookFailure()
		g.alerts.FlagHookFailure(s.requestID, string(hooks.TTSResponse), err)
		return nil, err
	}
	return out, nil
}

// finish records metrics and telemetry for one synthesis request.
func (g *Gateway) finish(s *synthesis, audioBytes int64, backendStatus int, err error) {
	latency := time.Since(s.start)
	success := err == nil
	g.metrics.RecordRequest(success, latency)
	g.alerts.FlagHighLatency(s.requestID, latency, s.route)

	event := &monitoring.SynthesisEvent{
		RequestID:      s.requestID,
		Timestamp:      s.start,
		Route:          s.route,
		ClientIP:       s.clientIP,
		Character:      s.character,
		CardKey:        s.cardKey,
		TargetLang:     s.targetLang,
		InputChars:     s.inputChars,
		HooksRun:       s.hooksRun,
		AudioBytes:     audioBytes,
		BackendStatus:  backendStatus,
		Success:        success,
		HookLatencyMs:  s.hookTime.Milliseconds(),
		TotalLatencyMs: latency.Milliseconds(),
	}
	if s.req != nil {
		event.CleanedChars = len([]rune(s.req.Text))
	}
	if err != nil {
		event.Error = err.Error()
	}
	g.tracker.RecordSynthesis(event)
}

// =============================================================================
// SYNTHESIS ROUTES
// =============================================================================

// handleTTS serves POST / and POST /tts: streamed audio/wav.
func (g *Gateway) handleTTS(w http.ResponseWriter, r *http.Request) {
	s := g.newSynthesis(r, monitoring.RouteStream)

	body, err := readBody(w, r)
	if err != nil {
		g.writeError(w, err.Error(), http.StatusBadRequest)
		g.finish(s, 0, 0, err)
		return
	}
	if err := g.decode(body, s); err != nil {
		g.writeError(w, err.Error(), http.StatusBadRequest)
		g.finish(s, 0, 0, err)
		return
	}

	ctx := r.Context()
	err = g.runRequestHooks(ctx, hooks.TTSRequest, s, hooks.Context{
		hooks.KeyTargetLang: s.targetLang,
		hooks.KeyRequestID:  s.requestID,
	})
	if err != nil {
		g.writeError(w, "request processing failed", http.StatusInternalServerError)
		g.finish(s, 0, 0, err)
		return
	}

	stream, err := g.openStream(ctx, s)
	if err != nil {
		g.writeError(w, "response processing failed", http.StatusInternalServerError)
		g.finish(s, 0, 0, err)
		return
	}

	w.Header().Set("Content-Type", audioContentType)
	w.WriteHeader(http.StatusOK)
	n, err := tts.Copy(ctx, w, stream)
	if err != nil {
		log.Warn().Err(err).Str("request_id", s.requestID).Int64("bytes", n).Msg("audio stream ended early")
	}
	g.finish(s, n, 0, err)
}

// handleSRT serves POST /srt: buffered synthesis written to the output
// directory, replying with URLs for the audio and subtitle files.
func (g *Gateway) handleSRT(w http.ResponseWriter, r *http.Request) {
	s := g.newSynthesis(r, monitoring.RouteSRT)

	body, err := readBody(w, r)
	if err != nil {
		g.writeError(w, err.Error(), http.StatusBadRequest)
		g.finish(s, 0, 0, err)
		return
	}
	if err := g.decode(body, s); err != nil {
		g.writeError(w, err.Error(), http.StatusBadRequest)
		g.finish(s, 0, 0, err)
		return
	}
	s.req.StreamingMode = false

	ctx := r.Context()
	err = g.runRequestHooks(ctx, hooks.SRTRequest, s, hooks.Context{
		hooks.KeyTargetLang:    s.targetLang,
		hooks.KeyCharacterName: s.character,
		hooks.KeyRequestID:     s.requestID,
	})
	if err != nil {
		g.writeError(w, "request processing failed", http.StatusInternalServerError)
		g.finish(s, 0, 0, err)
		return
	}

	g.requestLogger.LogBackend(&monitoring.BackendRequestInfo{
		RequestID: s.requestID,
		Character: s.character,
		TextLang:  s.req.TextLang,
		TextChars: len([]rune(s.req.Text)),
	})

	audio, err := g.client.SynthesizeBytes(ctx, s.req)
	if err != nil {
		status := 0
		detail := err.Error()
		if be, ok := tts.IsBackendError(err); ok {
			status = be.Status
			detail = string(be.Body)
			g.alerts.FlagBackendError(s.requestID, be.Status, detail)
		} else {
			log.Error().Err(err).Str("request_id", s.requestID).Msg("tts backend call failed")
		}
		writeJSON(w, http.StatusBadRequest, SRTError{Msg: "Error", Detail: detail})
		g.finish(s, 0, status, err)
		return
	}

	if err := writeFileAtomic(filepath.Join(g.cfg.Paths.Output(), SRTAudioFile), audio); err != nil {
		log.Error().Err(err).Str("request_id", s.requestID).Msg("failed to write audio file")
		g.writeError(w, "failed to write audio file", http.StatusInternalServerError)
		g.finish(s, int64(len(audio)), http.StatusOK, err)
		return
	}

	base := "http://" + r.Host
	writeJSON(w, http.StatusOK, SRTResponse{
		Code:  "200",
		SRT:   base + "/srt/" + SRTSubtitleFile,
		Audio: base + "/srt/" + SRTAudioFile,
	})
	g.finish(s, int64(len(audio)), http.StatusOK, nil)
}

// =============================================================================
// INFO ROUTES
// =============================================================================

func (g *Gateway) handleSpeakers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, tts.ListSpeakers(g.cfg.Paths.RefAudio()))
}

func (g *Gateway) handleSpeakersList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, speakerGenders)
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Time:    time.Now().UTC().Format(time.RFC3339),
		Backend: g.cfg.Backend.URL,
		Weights: map[string]string{
			string(tts.WeightGPT):    g.switcher.Loaded(tts.WeightGPT),
			string(tts.WeightSoVITS): g.switcher.Loaded(tts.WeightSoVITS),
		},
		Stats: g.metrics.Stats(),
	})
}

// hookEntry is one registration in the /plugins listing.
type hookEntry struct {
	Plugin string `json:"plugin"`
	Seq    int    `json:"seq"`
}

func (g *Gateway) handlePlugins(w http.ResponseWriter, r *http.Request) {
	// Built-in hooks are always listed; extra hook names follow sorted.
	names := []hooks.Name{hooks.TTSRequest, hooks.TTSResponse, hooks.SRTRequest}
	var extra []hooks.Name
	for _, name := range g.hooks.Names() {
		if !slices.Contains(names, name) {
			extra = append(extra, name)
		}
	}
	slices.Sort(extra)
	names = append(names, extra...)

	registered := make(map[hooks.Name][]hookEntry, len(names))
	for _, name := range names {
		entries := []hookEntry{}
		for _, reg := range g.hooks.Registrations(name) {
			entries = append(entries, hookEntry{Plugin: reg.Plugin, Seq: reg.Seq})
		}
		registered[name] = entries
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"plugins": g.descriptors,
		"hooks":   registered,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxRequestBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("failed to write json response")
	}
}

func (g *Gateway) writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeFileAtomic replaces path so readers of /srt/ never see a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
