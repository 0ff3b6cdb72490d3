package tts

import (
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// audioExts are the extensions that may appear doubled in front-end paths
// (e.g. "alice.wav.mp3").
var audioExts = map[string]bool{"wav": true, "mp3": true, "flac": true, "ogg": true}

// speakerExts are the reference audio files listed by ListSpeakers.
var speakerExts = map[string]bool{".wav": true, ".mp3": true, ".ogg": true}

// Front-end garbage stripped before any plugin runs.
var garbagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\\?#[0-9a-fA-F]{6}`),
	regexp.MustCompile(`"[^"]+"\.\s*"[^"]+"\.`),
	regexp.MustCompile(`"好感度".*?。`),
	regexp.MustCompile(`\[-?\d+,\s*\d+\].*?。`),
}

// CleanGarbage removes colour codes, label pairs and status lines that the
// front-end leaks into the spoken text.
func CleanGarbage(text string) string {
	if text == "" {
		return ""
	}
	for _, re := range garbagePatterns {
		text = re.ReplaceAllString(text, "")
	}
	text = strings.ReplaceAll(text, `""`, "")
	return strings.TrimSpace(text)
}

// Rewriter fixes the reference audio path and loads per-character prompts.
type Rewriter struct {
	RefAudioDir string
	DefaultLang string
	Models      ModelMap
}

// Rewrite mutates req in place and returns the character name and the
// target language (the character's prompt language).
func (rw *Rewriter) Rewrite(req *Request) (character, targetLang string) {
	filename := FixAudioFilename(path.Base(strings.ReplaceAll(req.RefAudioPath, `\`, "/")))
	character = strings.TrimSuffix(filename, filepath.Ext(filename))
	absPath := filepath.Join(rw.RefAudioDir, filename)
	req.RefAudioPath = absPath

	targetLang = rw.DefaultLang
	if entry, ok := rw.Models[character]; ok && entry.PromptLang != "" {
		targetLang = entry.PromptLang
	}
	req.PromptLang = targetLang

	req.PromptText = loadPromptText(strings.TrimSuffix(absPath, filepath.Ext(absPath))+".txt", character, targetLang)
	req.Text = CleanGarbage(req.Text)
	return character, targetLang
}

// FixAudioFilename collapses a doubled audio extension: "a.wav.mp3" → "a.mp3".
func FixAudioFilename(filename string) string {
	parts := strings.Split(filename, ".")
	if len(parts) >= 3 && audioExts[parts[len(parts)-2]] {
		return strings.Join(parts[:len(parts)-2], ".") + "." + parts[len(parts)-1]
	}
	return filename
}

// loadPromptText reads the reference transcript next to the audio file.
// Missing file → the character name; unreadable file → empty prompt.
func loadPromptText(txtPath, character, lang string) string {
	data, err := os.ReadFile(txtPath)
	if os.IsNotExist(err) {
		return character
	}
	if err != nil {
		log.Warn().Err(err).Str("character", character).Msg("failed to read reference text, synthesizing without it")
		return ""
	}

	text := strings.TrimSpace(string(data))
	log.Info().
		Str("character", character).
		Str("lang", lang).
		Str("prompt", preview(text, 10)).
		Msg("loaded reference text")
	return text
}

// Speaker is one entry of the /speakers listing.
type Speaker struct {
	Name    string `json:"name"`
	VoiceID string `json:"voice_id"`
}

// ListSpeakers lists reference audio files in dir, sorted by file name.
func ListSpeakers(dir string) []Speaker {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return []Speaker{}
	}

	speakers := make([]Speaker, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if !speakerExts[ext] {
			continue
		}
		speakers = append(speakers, Speaker{Name: strings.TrimSuffix(name, filepath.Ext(name)), VoiceID: name})
	}
	sort.Slice(speakers, func(i, j int) bool { return speakers[i].VoiceID < speakers[j].VoiceID })
	return speakers
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
