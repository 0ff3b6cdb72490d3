package rules_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tavernvoice/tts-adapter/internal/rules"
)

func TestFileStore_Path(t *testing.T) {
	store := rules.NewFileStore("/cards")

	path, err := store.Path("alice")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/cards", "alice.yaml"), path)

	for _, key := range []string{"", ".", "..", "../etc", "a/b", `a\b`, "x..y", "nul\x00"} {
		_, err := store.Path(key)
		assert.ErrorIs(t, err, rules.ErrInvalidKey, "key %q", key)
	}
}

func TestFileStore_SaveAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "card_config")
	store := rules.NewFileStore(dir)

	assert.False(t, store.Exists("alice"))
	_, err := store.Load("alice")
	assert.ErrorIs(t, err, rules.ErrNotFound)

	rs := &rules.RuleSet{
		Name:    "alice",
		Enabled: true,
		Rules:   []rules.Rule{{Pattern: "foo", Replacement: ""}},
	}
	require.NoError(t, store.Save("alice", rs))
	assert.True(t, store.Exists("alice"))

	loaded, err := store.Load("alice")
	require.NoError(t, err)
	assert.Equal(t, rs, loaded)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileStore_ReReadsOnEveryLoad(t *testing.T) {
	store := rules.NewFileStore(t.TempDir())
	require.NoError(t, store.Save("bob", &rules.RuleSet{Name: "v1"}))

	path, err := store.Path("bob")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("name: v2\n"), 0o600))

	rs, err := store.Load("bob")
	require.NoError(t, err)
	assert.Equal(t, "v2", rs.Name)
}

func TestFileStore_CorruptFile(t *testing.T) {
	store := rules.NewFileStore(t.TempDir())
	path, err := store.Path("broken")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("rules: [unclosed"), 0o600))

	assert.True(t, store.Exists("broken"))
	_, err = store.Load("broken")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, rules.ErrNotFound)
}

func TestFileStore_EnsureDefault(t *testing.T) {
	store := rules.NewFileStore(filepath.Join(t.TempDir(), "nested"))

	require.NoError(t, store.EnsureDefault())
	rs, err := store.Load(rules.DefaultName)
	require.NoError(t, err)
	assert.Equal(t, rules.Default(), rs)

	// An operator-edited default is never overwritten.
	require.NoError(t, store.Save(rules.DefaultName, &rules.RuleSet{Name: "custom"}))
	require.NoError(t, store.EnsureDefault())
	rs, err = store.Load(rules.DefaultName)
	require.NoError(t, err)
	assert.Equal(t, "custom", rs.Name)
}

func TestFileStore_List(t *testing.T) {
	dir := t.TempDir()
	store := rules.NewFileStore(dir)

	keys, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, store.Save("alice", &rules.RuleSet{Name: "alice"}))
	require.NoError(t, store.Save("bob", &rules.RuleSet{Name: "bob"}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".alice.tmp.yaml"), nil, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o600))

	keys, err = store.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, keys)

	missing := rules.NewFileStore(filepath.Join(dir, "missing"))
	keys, err = missing.List()
	require.NoError(t, err)
	assert.Empty(t, keys)
}
