package tts_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/tavernvoice/tts-adapter/internal/tts"
)

func testRequest() *tts.Request {
	req := tts.NewRequest()
	req.Text = "hello"
	req.TextLang = "en"
	req.RefAudioPath = "/voice/alice.wav"
	return req
}

func TestClient_Synthesize_StreamsChunks(t *testing.T) {
	var gotText string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tts", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		gotText = gjson.GetBytes(body, "text").String()
		flusher := w.(http.Flusher)
		_, _ = w.Write([]byte("RIFF"))
		flusher.Flush()
		_, _ = w.Write([]byte("data"))
	}))
	defer server.Close()

	client := tts.NewClient(tts.BackendConfig{URL: server.URL})
	data, err := tts.BufferStream(context.Background(), client.Synthesize(testRequest()))
	require.NoError(t, err)

	assert.Equal(t, "RIFFdata", string(data))
	assert.Equal(t, "hello", gotText)
}

func TestClient_Synthesize_IsLazy(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	stream := tts.NewClient(tts.BackendConfig{URL: server.URL}).Synthesize(testRequest())
	assert.Equal(t, int32(0), calls.Load())
	require.NoError(t, stream.Close())
	assert.Equal(t, int32(0), calls.Load())
}

func TestClient_Synthesize_BackendErrorForwardedVerbatim(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"ref audio not found"}`))
	}))
	defer server.Close()

	client := tts.NewClient(tts.BackendConfig{URL: server.URL})
	data, err := tts.BufferStream(context.Background(), client.Synthesize(testRequest()))
	require.NoError(t, err)
	assert.Equal(t, `{"message":"ref audio not found"}`, string(data))
}

func TestClient_Synthesize_ConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	client := tts.NewClient(tts.BackendConfig{URL: url, ConnectTimeout: time.Second})
	data, err := tts.BufferStream(context.Background(), client.Synthesize(testRequest()))
	require.NoError(t, err)
	assert.Equal(t, tts.ConnectionErrorBody, data)
}

func TestClient_Synthesize_CancelStopsBackend(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("first"))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	stream := tts.NewClient(tts.BackendConfig{URL: server.URL}).Synthesize(testRequest())

	chunk, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", string(chunk))

	cancel()
	_, err = stream.Next(ctx)
	assert.Error(t, err)
	require.NoError(t, stream.Close())
}

func TestClient_SynthesizeBytes(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("wav-bytes"))
		}))
		defer server.Close()

		data, err := tts.NewClient(tts.BackendConfig{URL: server.URL}).SynthesizeBytes(context.Background(), testRequest())
		require.NoError(t, err)
		assert.Equal(t, "wav-bytes", string(data))
	})

	t.Run("backend error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad", http.StatusInternalServerError)
		}))
		defer server.Close()

		_, err := tts.NewClient(tts.BackendConfig{URL: server.URL}).SynthesizeBytes(context.Background(), testRequest())
		require.Error(t, err)
		be, ok := tts.IsBackendError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusInternalServerError, be.Status)
	})
}

func TestClient_SetWeights(t *testing.T) {
	var gotPath, gotWeights string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotWeights = r.URL.Query().Get("weights_path")
	}))
	defer server.Close()

	client := tts.NewClient(tts.BackendConfig{URL: server.URL + "/"})
	require.NoError(t, client.SetWeights(context.Background(), tts.WeightSoVITS, "/models/alice s2.pth"))
	assert.Equal(t, "/set_sovits_weights", gotPath)
	assert.Equal(t, "/models/alice s2.pth", gotWeights)

	err := client.SetWeights(context.Background(), tts.WeightKind("bert"), "x")
	assert.Error(t, err)
}

func TestBackendConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		cfg       tts.BackendConfig
		expectErr bool
	}{
		{"valid", tts.BackendConfig{URL: "http://127.0.0.1:9880"}, false},
		{"missing url", tts.BackendConfig{}, true},
		{"relative url", tts.BackendConfig{URL: "localhost"}, true},
		{"negative timeout", tts.BackendConfig{URL: "http://x", Timeout: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
