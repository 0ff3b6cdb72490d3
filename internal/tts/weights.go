package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// WeightKind names one of the two backend weight slots.
type WeightKind string

const (
	WeightGPT    WeightKind = "gpt"
	WeightSoVITS WeightKind = "sovits"
)

func (k WeightKind) endpoint() (string, error) {
	switch k {
	case WeightGPT:
		return "/set_gpt_weights", nil
	case WeightSoVITS:
		return "/set_sovits_weights", nil
	default:
		return "", fmt.Errorf("unknown weight kind %q", string(k))
	}
}

// ModelEntry is one character's entry in models.json.
type ModelEntry struct {
	GPT        string `json:"gpt,omitempty"`
	SoVITS     string `json:"sovits,omitempty"`
	PromptLang string `json:"prompt_lang,omitempty"`
}

// ModelMap maps character names to their weights and prompt language.
type ModelMap map[string]ModelEntry

// LoadModelMap reads models.json. A missing file yields an empty map.
func LoadModelMap(path string) (ModelMap, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ModelMap{}, nil
	}
	if err != nil {
		return ModelMap{}, fmt.Errorf("failed to read model map %q: %w", path, err)
	}

	var m ModelMap
	if err := json.Unmarshal(data, &m); err != nil {
		return ModelMap{}, fmt.Errorf("failed to parse model map %q: %w", path, err)
	}
	if m == nil {
		m = ModelMap{}
	}
	return m, nil
}

// WeightSetter loads weights on the backend.
type WeightSetter interface {
	SetWeights(ctx context.Context, kind WeightKind, path string) error
}

// WeightSwitcher keeps the backend's loaded weights in line with the
// character being synthesized. The check-and-switch for each slot runs under
// that slot's lock, so two concurrent requests never both issue a switch
// based on the same stale view.
type WeightSwitcher struct {
	setter WeightSetter
	models ModelMap

	locks   map[WeightKind]*sync.Mutex
	mu      sync.RWMutex
	current map[WeightKind]string
}

// NewWeightSwitcher creates a switcher over the given model map.
func NewWeightSwitcher(setter WeightSetter, models ModelMap) *WeightSwitcher {
	if models == nil {
		models = ModelMap{}
	}
	return &WeightSwitcher{
		setter: setter,
		models: models,
		locks: map[WeightKind]*sync.Mutex{
			WeightGPT:    {},
			WeightSoVITS: {},
		},
		current: make(map[WeightKind]string),
	}
}

// Models returns the character model map.
func (s *WeightSwitcher) Models() ModelMap {
	return s.models
}

// Loaded returns the weights path last loaded into the given slot.
func (s *WeightSwitcher) Loaded(kind WeightKind) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current[kind]
}

// Switch loads the character's weights if they differ from what is loaded.
// Characters without an entry are a no-op. Failures are logged and leave the
// recorded state untouched; synthesis proceeds with whatever is loaded.
func (s *WeightSwitcher) Switch(ctx context.Context, character string) {
	entry, ok := s.models[character]
	if !ok {
		return
	}
	s.switchSlot(ctx, character, WeightGPT, entry.GPT)
	s.switchSlot(ctx, character, WeightSoVITS, entry.SoVITS)
}

func (s *WeightSwitcher) switchSlot(ctx context.Context, character string, kind WeightKind, target string) {
	if target == "" {
		return
	}

	lock := s.locks[kind]
	lock.Lock()
	defer lock.Unlock()

	if s.Loaded(kind) == target {
		return
	}

	log.Info().
		Str("character", character).
		Str("kind", string(kind)).
		Str("weights", shortName(target)).
		Msg("switching weights")

	if err := s.setter.SetWeights(ctx, kind, target); err != nil {
		log.Error().Err(err).Str("character", character).Str("kind", string(kind)).Msg("weight switch failed")
		return
	}

	s.mu.Lock()
	s.current[kind] = target
	s.mu.Unlock()
}

// shortName keeps the tail of a weights file name for log lines.
func shortName(path string) string {
	base := []rune(filepath.Base(path))
	if len(base) > 15 {
		return "..." + string(base[len(base)-15:])
	}
	return string(base)
}
