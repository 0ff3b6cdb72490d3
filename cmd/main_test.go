package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tavernvoice/tts-adapter/internal/config"
	"github.com/tavernvoice/tts-adapter/internal/rules"
)

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("paths:\n  base_dir: "+dir+"\n"), 0o644))
	return path
}

func TestEmbeddedConfigLoads(t *testing.T) {
	t.Setenv("SILICONFLOW_API_KEY", "")
	t.Setenv("TTS_BACKEND_URL", "")

	data, err := getEmbeddedConfig("config")
	require.NoError(t, err)

	cfg, err := config.LoadFromBytes(data)
	require.NoError(t, err)
	assert.Equal(t, 9881, cfg.Server.Port)
	assert.Equal(t, 2000, cfg.Plugins.CleanText.MaxSampleTokens)
	assert.Equal(t, config.Default().Plugins.Translate.Model, cfg.Plugins.Translate.Model)
}

func TestLoadServeConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir)

	cfg, source, err := loadServeConfig(path, 9999)
	require.NoError(t, err)
	assert.Equal(t, path, source)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, filepath.Join(dir, "card_config"), cfg.Paths.CardConfig())

	_, _, err = loadServeConfig(filepath.Join(dir, "missing.yaml"), 0)
	assert.Error(t, err)

	_, _, err = loadServeConfig(path, 70000)
	assert.Error(t, err, "flag override is validated")
}

func TestRunClean(t *testing.T) {
	dir := t.TempDir()
	configPath := writeConfig(t, dir)
	store := rules.NewFileStore(filepath.Join(dir, "card_config"))
	require.NoError(t, store.Save(rules.DefaultName, &rules.RuleSet{
		Name:  rules.DefaultName,
		Rules: []rules.Rule{{Pattern: "foo", Replacement: ""}},
	}))
	require.NoError(t, store.Save("alice", &rules.RuleSet{
		Name:  "alice",
		Rules: []rules.Rule{{Pattern: `\(.*?\)`, Replacement: ""}},
	}))

	tests := []struct {
		name  string
		args  []string
		stdin string
		want  string
	}{
		{"default card", []string{"--text", "foobar"}, "", "bar"},
		{"named card", []string{"--card", "alice", "--text", "hi (waves) there"}, "", "hi  there"},
		{"unknown card falls back", []string{"--card", "nobody", "--text", "foobar"}, "", "bar"},
		{"stdin", []string{}, "foobar\n", "bar"},
		{"garbage cleaned first", []string{"--text", "bar #FF00FF"}, "", "bar"},
		{"raw keeps garbage", []string{"--raw", "--text", "bar #FF00FF"}, "", "bar #FF00FF"},
		{"list cards", []string{"--list"}, "", "alice\ndefault"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			args := append([]string{"--config", configPath}, tt.args...)
			require.NoError(t, runClean(args, strings.NewReader(tt.stdin), &out))
			assert.Equal(t, tt.want+"\n", out.String())
		})
	}

	t.Run("empty input", func(t *testing.T) {
		var out bytes.Buffer
		err := runClean([]string{"--config", configPath}, strings.NewReader(""), &out)
		assert.Error(t, err)
	})
}

func TestRunInit(t *testing.T) {
	t.Setenv("SILICONFLOW_API_KEY", "")
	dir := t.TempDir()

	var out bytes.Buffer
	require.NoError(t, runInit([]string{"--dir", dir}, strings.NewReader("sk-typed\n"), &out))

	for _, p := range []string{"configs/config.yaml", "models.json", "card_config/default.yaml"} {
		_, err := os.Stat(filepath.Join(dir, p))
		assert.NoError(t, err, p)
	}
	for _, d := range []string{"voice", "output"} {
		info, err := os.Stat(filepath.Join(dir, d))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	rs, err := rules.NewFileStore(filepath.Join(dir, "card_config")).Load(rules.DefaultName)
	require.NoError(t, err)
	assert.Equal(t, rules.Default(), rs)

	env, err := os.ReadFile(filepath.Join(dir, ".env"))
	require.NoError(t, err)
	assert.Contains(t, string(env), `SILICONFLOW_API_KEY="sk-typed"`)

	// A second run keeps user edits and updates the key in place.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "models.json"), []byte(`{"alice":{}}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("OTHER=1\nSILICONFLOW_API_KEY=old\n"), 0o600))
	out.Reset()
	require.NoError(t, runInit([]string{"--dir", dir, "--api-key", "sk-flag"}, strings.NewReader(""), &out))

	models, err := os.ReadFile(filepath.Join(dir, "models.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"alice":{}}`, string(models))

	env, err = os.ReadFile(filepath.Join(dir, ".env"))
	require.NoError(t, err)
	assert.Contains(t, string(env), `SILICONFLOW_API_KEY="sk-flag"`)
	assert.Contains(t, string(env), "OTHER=1")
}

func TestRunInit_NoPromptSkipsKey(t *testing.T) {
	t.Setenv("SILICONFLOW_API_KEY", "")
	dir := t.TempDir()

	var out bytes.Buffer
	require.NoError(t, runInit([]string{"--dir", dir, "--no-prompt"}, strings.NewReader("ignored\n"), &out))
	_, err := os.Stat(filepath.Join(dir, ".env"))
	assert.True(t, os.IsNotExist(err))
}

func TestPromptSecret_NonTerminalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stdin")
	require.NoError(t, os.WriteFile(path, []byte("  sk-from-file \n"), 0o600))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out bytes.Buffer
	assert.Equal(t, "sk-from-file", promptSecret(f, &out, "key: "))
	assert.Equal(t, "key: ", out.String())
}

func TestPromptSecret_Reader(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, "", promptSecret(strings.NewReader("\n"), &out, "key: "), "Enter skips")
}
