package tts_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/tavernvoice/tts-adapter/internal/tts"
)

// =============================================================================
// DECODE
// =============================================================================

func TestDecodeRequest_Defaults(t *testing.T) {
	req, err := tts.DecodeRequest([]byte(`{"text":"hi","text_lang":"en","ref_audio_path":"alice.wav"}`))
	require.NoError(t, err)

	assert.Equal(t, "hi", req.Text)
	assert.Equal(t, "en", req.TextLang)
	assert.Equal(t, "alice.wav", req.RefAudioPath)
	assert.Equal(t, tts.DefaultTopK, req.TopK)
	assert.Equal(t, tts.DefaultTextSplitMethod, req.TextSplitMethod)
	assert.Equal(t, tts.DefaultSeed, req.Seed)
	assert.Equal(t, tts.DefaultRepetitionPenalty, req.RepetitionPenalty)
	assert.True(t, req.SplitBucket)
	assert.True(t, req.ParallelInfer)
	assert.False(t, req.StreamingMode)
	assert.Empty(t, req.CardName)
	assert.Empty(t, req.Extensions)
}

func TestDecodeRequest_MissingRequired(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no text", `{"text_lang":"en","ref_audio_path":"a.wav"}`},
		{"no text_lang", `{"text":"x","ref_audio_path":"a.wav"}`},
		{"no ref_audio_path", `{"text":"x","text_lang":"en"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tts.DecodeRequest([]byte(tt.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, tts.ErrMissingField)
		})
	}
}

func TestDecodeRequest_InvalidJSON(t *testing.T) {
	_, err := tts.DecodeRequest([]byte(`{"text":`))
	assert.ErrorIs(t, err, tts.ErrInvalidJSON)

	_, err = tts.DecodeRequest([]byte(`["not","an","object"]`))
	assert.ErrorIs(t, err, tts.ErrInvalidJSON)
}

func TestDecodeRequest_StreamingModeString(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{`true`, true},
		{`false`, false},
		{`"true"`, true},
		{`"True"`, true},
		{`"false"`, false},
		{`"yes"`, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			body := `{"text":"x","text_lang":"zh","ref_audio_path":"a.wav","streaming_mode":` + tt.raw + `}`
			req, err := tts.DecodeRequest([]byte(body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.StreamingMode)
		})
	}
}

func TestDecodeRequest_CardNameAndExtensions(t *testing.T) {
	body := `{
		"text":"x","text_lang":"zh","ref_audio_path":"a.wav",
		"card_name":["[Default Voice]","disable","alice"],
		"emotion":"happy",
		"extra":{"nested":[1,2]}
	}`
	req, err := tts.DecodeRequest([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, []string{"[Default Voice]", "disable", "alice"}, req.CardName)
	require.Len(t, req.Extensions, 2)

	var emotion string
	ok, err := req.Extension("emotion", &emotion)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "happy", emotion)

	ok, err = req.Extension("missing", &emotion)
	require.NoError(t, err)
	assert.False(t, ok)
}

// =============================================================================
// BACKEND BODY
// =============================================================================

func TestBackendBody_MergesExtensionsAndDropsCardName(t *testing.T) {
	req := tts.NewRequest()
	req.Text = "hello"
	req.TextLang = "en"
	req.RefAudioPath = "/voice/alice.wav"
	req.CardName = []string{"a", "b", "c"}
	require.NoError(t, req.SetExtension("emotion", "calm"))
	require.NoError(t, req.SetExtension("dotted.key", 3))

	body, err := req.BackendBody()
	require.NoError(t, err)
	require.True(t, json.Valid(body))

	assert.Equal(t, "hello", gjson.GetBytes(body, "text").String())
	assert.Equal(t, "calm", gjson.GetBytes(body, "emotion").String())
	assert.Equal(t, int64(3), gjson.GetBytes(body, `dotted\.key`).Int())
	assert.False(t, gjson.GetBytes(body, "card_name").Exists())
	assert.Equal(t, int64(tts.DefaultSampleSteps), gjson.GetBytes(body, "sample_steps").Int())
}
