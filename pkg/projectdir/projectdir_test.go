package projectdir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/germanamz/promptchain/pkg/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDir_PathAccessors(t *testing.T) {
	d := New("/project/.promptchain")

	assert.Equal(t, "/project/.promptchain", d.Root())
	assert.Equal(t, "/project/.promptchain/config.yaml", d.ConfigPath())
	assert.Equal(t, "/project/.promptchain/prompts", d.PromptsDir())
	assert.Equal(t, "/project/.promptchain/local", d.LocalDir())
	assert.Equal(t, "/project/.promptchain/local/history.db", d.HistoryPath())
	assert.Equal(t, "/project/.promptchain/.gitignore", d.GitignorePath())
}

func TestDir_Exists(t *testing.T) {
	tmp := t.TempDir()

	assert.False(t, New(filepath.Join(tmp, "missing")).Exists())
	assert.True(t, New(tmp).Exists())
}

func TestDir_PromptFiles(t *testing.T) {
	d := New(t.TempDir())
	assert.Nil(t, d.PromptFiles())

	require.NoError(t, os.MkdirAll(d.PromptsDir(), 0o750))
	for _, name := range []string{"b.yaml", "a.yml", "notes.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(d.PromptsDir(), name), []byte("x"), 0o600))
	}

	assert.Equal(t, []string{
		filepath.Join(d.PromptsDir(), "a.yml"),
		filepath.Join(d.PromptsDir(), "b.yaml"),
	}, d.PromptFiles())
}

func TestEnsureStructure_Idempotent(t *testing.T) {
	root := filepath.Join(t.TempDir(), DefaultName)
	require.NoError(t, os.Mkdir(root, 0o750))

	d := New(root)
	require.NoError(t, EnsureStructure(d))

	info, err := os.Stat(d.LocalDir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	custom := "local/\ncustom-entry\n"
	require.NoError(t, os.WriteFile(d.GitignorePath(), []byte(custom), 0o600))
	require.NoError(t, EnsureStructure(d))

	data, err := os.ReadFile(d.GitignorePath())
	require.NoError(t, err)
	assert.Equal(t, custom, string(data))
}

func TestBootstrap(t *testing.T) {
	d := New(filepath.Join(t.TempDir(), DefaultName))
	require.NoError(t, Bootstrap(d))

	assert.True(t, d.Exists())
	assert.Equal(t, []string{filepath.Join(d.PromptsDir(), "default.yaml")}, d.PromptFiles())

	data, err := os.ReadFile(d.GitignorePath())
	require.NoError(t, err)
	assert.Equal(t, "local/\n", string(data))

	// The generated config must load, validate, and run offline.
	cfg, err := engine.LoadConfig(d.ConfigPath())
	require.NoError(t, err)

	eng, err := engine.New(cfg)
	require.NoError(t, err)
	defer func() { require.NoError(t, eng.Close()) }()

	store, ok := eng.Store()
	require.True(t, ok)
	assert.FileExists(t, d.HistoryPath())
	assert.Equal(t, engine.DefaultConversation, store.ConversationID())
}

func TestBootstrap_DoesNotOverwrite(t *testing.T) {
	d := New(filepath.Join(t.TempDir(), DefaultName))
	require.NoError(t, Bootstrap(d))

	custom := "custom: true\n"
	require.NoError(t, os.WriteFile(d.ConfigPath(), []byte(custom), 0o600))
	require.NoError(t, Bootstrap(d))

	data, err := os.ReadFile(d.ConfigPath())
	require.NoError(t, err)
	assert.Equal(t, custom, string(data))
}

func TestResolveConfigPath(t *testing.T) {
	d := New(filepath.Join(t.TempDir(), DefaultName))

	assert.Equal(t, "explicit.yaml", ResolveConfigPath("explicit.yaml", d))
	assert.Equal(t, "promptchain.yaml", ResolveConfigPath("", d))

	require.NoError(t, Bootstrap(d))
	assert.Equal(t, d.ConfigPath(), ResolveConfigPath("", d))
}
