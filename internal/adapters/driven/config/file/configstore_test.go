package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupConfigStore(t *testing.T) *ConfigStore {
	t.Helper()
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestNewConfigStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "config")
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	assert.DirExists(t, dir)
	assert.Equal(t, filepath.Join(dir, "config.toml"), store.Path())
}

func TestConfigStore_SetAndGet(t *testing.T) {
	store := setupConfigStore(t)

	require.NoError(t, store.Set("sync.interval_minutes", 30))
	require.NoError(t, store.Set("log.verbose", true))
	require.NoError(t, store.Set("data.dir", "/tmp/relaysync"))

	assert.Equal(t, 30, store.GetInt("sync.interval_minutes"))
	assert.True(t, store.GetBool("log.verbose"))
	assert.Equal(t, "/tmp/relaysync", store.GetString("data.dir"))

	_, ok := store.Get("missing.key")
	assert.False(t, ok)
}

func TestConfigStore_TypeMismatchReturnsZeroValue(t *testing.T) {
	store := setupConfigStore(t)

	require.NoError(t, store.Set("key", "a string"))

	assert.Equal(t, 0, store.GetInt("key"))
	assert.False(t, store.GetBool("key"))
	assert.Equal(t, "a string", store.GetString("key"))
}

func TestConfigStore_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set("sync.interval_minutes", 45))

	// A fresh instance reads the same file.
	reloaded, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, 45, reloaded.GetInt("sync.interval_minutes"))
}

func TestConfigStore_LoadFlattensNestedTables(t *testing.T) {
	dir := t.TempDir()
	content := "[sync]\ninterval_minutes = 15\n\n[providers.google]\nclient_id = \"abc\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600))

	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	assert.Equal(t, 15, store.GetInt("sync.interval_minutes"))
	assert.Equal(t, "abc", store.GetString("providers.google.client_id"))
}

func TestConfigStore_LoadMissingFileStartsEmpty(t *testing.T) {
	store := setupConfigStore(t)

	require.NoError(t, store.Load())
	_, ok := store.Get("anything")
	assert.False(t, ok)
}

func TestConfigStore_SaveWritesRestrictedPermissions(t *testing.T) {
	store := setupConfigStore(t)
	require.NoError(t, store.Set("key", "value"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}
