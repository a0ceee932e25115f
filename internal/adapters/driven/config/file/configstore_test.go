package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*ConfigStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	return store, dir
}

func TestNewConfigStore(t *testing.T) {
	t.Run("creates nested directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "chatlogs")

		store, err := NewConfigStore(dir)

		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "config.toml"), store.Path())
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
	})

	t.Run("default directory under home", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)

		store, err := NewConfigStore("")

		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, ".chatlogs", "config.toml"), store.Path())
	})

	t.Run("unusable directory", func(t *testing.T) {
		store, err := NewConfigStore("/dev/null/chatlogs")
		assert.Error(t, err)
		assert.Nil(t, store)
	})

	t.Run("missing file starts empty", func(t *testing.T) {
		store, _ := newTestStore(t)
		_, ok := store.Get("expiry.default")
		assert.False(t, ok)
	})

	t.Run("comment-only file starts empty", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("# nothing yet\n"), 0600))

		store, err := NewConfigStore(dir)

		require.NoError(t, err)
		_, ok := store.Get("expiry.default")
		assert.False(t, ok)
	})

	t.Run("corrupt file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[pipeline\nworkers = "), 0600))

		store, err := NewConfigStore(dir)

		assert.Error(t, err)
		assert.Nil(t, store)
	})
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store, _ := newTestStore(t)
	values := map[string]any{
		"expiry.default":           "1h",
		"pipeline.workers":         4,
		"pipeline.queue_size":      int64(128),
		"fetch.rate_per_second":    2.5,
		"scheduler.enabled":        true,
		"retry.max_attempts":       "5",
		"pagination.max_bytes":     "64 KiB",
		"expiry.tokens":            []string{"10min", "1h"},
		"storage.backend":          "pebble",
		"scheduler.enabled_string": "false",
	}
	for k, v := range values {
		require.NoError(t, store.Set(k, v))
	}

	assert.Equal(t, "1h", store.GetString("expiry.default"))
	assert.Empty(t, store.GetString("pipeline.workers"), "wrong type")
	assert.Empty(t, store.GetString("missing.key"))

	assert.Equal(t, 4, store.GetInt("pipeline.workers"))
	assert.Equal(t, 128, store.GetInt("pipeline.queue_size"))
	assert.Equal(t, 2, store.GetInt("fetch.rate_per_second"))
	assert.Equal(t, 5, store.GetInt("retry.max_attempts"))
	assert.Zero(t, store.GetInt("pagination.max_bytes"), "not an integer")
	assert.Zero(t, store.GetInt("missing.key"))

	assert.True(t, store.GetBool("scheduler.enabled"))
	assert.False(t, store.GetBool("scheduler.enabled_string"))
	assert.False(t, store.GetBool("pipeline.workers"), "wrong type")
	assert.False(t, store.GetBool("missing.key"))

	assert.Equal(t, []string{"10min", "1h"}, store.GetStringSlice("expiry.tokens"))
	assert.Nil(t, store.GetStringSlice("pipeline.workers"))
	assert.Nil(t, store.GetStringSlice("missing.key"))
}

func TestConfigStore_PersistsAcrossReload(t *testing.T) {
	store, dir := newTestStore(t)
	require.NoError(t, store.Set("expiry.default", "1d"))
	require.NoError(t, store.Set("pipeline.workers", 16))
	require.NoError(t, store.Set("scheduler.enabled", false))
	require.NoError(t, store.Set("fetch.rate_per_second", 0.5))
	require.NoError(t, store.Set("expiry.tokens", []string{"1h", "1d", "never"}))
	require.NoError(t, store.Set("expiry.default", "1w"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reloaded, err := NewConfigStore(dir)
	require.NoError(t, err)

	assert.Equal(t, "1w", reloaded.GetString("expiry.default"))
	assert.Equal(t, 16, reloaded.GetInt("pipeline.workers"))
	assert.False(t, reloaded.GetBool("scheduler.enabled"))
	rate, ok := reloaded.Get("fetch.rate_per_second")
	require.True(t, ok)
	assert.InDelta(t, 0.5, rate, 1e-9)
	assert.Equal(t, []string{"1h", "1d", "never"}, reloaded.GetStringSlice("expiry.tokens"))
}

func TestConfigStore_SaveFlushesData(t *testing.T) {
	store, dir := newTestStore(t)

	store.mu.Lock()
	store.data["storage.data_dir"] = "/var/lib/chatlogs"
	store.mu.Unlock()
	require.NoError(t, store.Save())

	reloaded, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/chatlogs", reloaded.GetString("storage.data_dir"))
}

func TestConfigStore_WriteErrors(t *testing.T) {
	t.Run("unencodable value", func(t *testing.T) {
		store, _ := newTestStore(t)
		assert.Error(t, store.Set("pipeline.workers", make(chan int)))
	})

	t.Run("path is a directory", func(t *testing.T) {
		store, _ := newTestStore(t)
		require.NoError(t, os.Mkdir(store.Path(), 0700))
		assert.Error(t, store.Set("pipeline.workers", 4))
	})
}

func TestConfigStore_LoadErrors(t *testing.T) {
	t.Run("file corrupted after open", func(t *testing.T) {
		store, _ := newTestStore(t)
		require.NoError(t, store.Set("pipeline.workers", 4))
		require.NoError(t, os.WriteFile(store.Path(), []byte("workers = ]["), 0600))

		assert.Error(t, store.Load())
	})

	t.Run("unreadable file", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("root ignores file permissions")
		}
		store, _ := newTestStore(t)
		require.NoError(t, store.Set("pipeline.workers", 4))
		require.NoError(t, os.Chmod(store.Path(), 0000))
		defer os.Chmod(store.Path(), 0600) //nolint:errcheck

		err := store.Load()
		assert.Error(t, err)
		assert.False(t, os.IsNotExist(err))
	})
}

func TestConfigStore_ConcurrentAccess(t *testing.T) {
	store, _ := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = store.Set("pipeline.workers", n)
			_ = store.GetInt("pipeline.workers")
			_ = store.Overrides()
		}(i)
	}
	wg.Wait()

	assert.GreaterOrEqual(t, store.GetInt("pipeline.workers"), 0)
}

func TestConfigStore_WritesNestedTables(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Set("pipeline.timeout_seconds", 30))
	require.NoError(t, store.Set("pipeline.workers", 4))
	require.NoError(t, store.Set("storage.backend", "pebble"))

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[pipeline]")
	assert.Contains(t, string(raw), "[storage]")

	reloaded, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, 30, reloaded.GetInt("pipeline.timeout_seconds"))
	assert.Equal(t, 4, reloaded.GetInt("pipeline.workers"))
	assert.Equal(t, "pebble", reloaded.GetString("storage.backend"))
}

func TestConfigStore_EnvironmentOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	require.NoError(t, store.Set("pipeline.timeout_seconds", 30))

	t.Setenv("CHATLOGS_PIPELINE_TIMEOUT_SECONDS", "90")
	t.Setenv("CHATLOGS_EXPIRY_TOKENS", "10min, 1h")
	require.NoError(t, store.Load())

	assert.Equal(t, 90, store.GetInt("pipeline.timeout_seconds"))
	assert.Equal(t, []string{"10min", "1h"}, store.GetStringSlice("expiry.tokens"))
	assert.Contains(t, store.Overrides(), "pipeline.timeout_seconds")

	// Overrides are never written back.
	require.NoError(t, store.Save())
	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "90")
	assert.NotContains(t, string(raw), "10min")
}

func TestConfigStore_DotEnvFile(t *testing.T) {
	tmpDir := t.TempDir()
	dotenv := "# local overrides\nCHATLOGS_STORAGE_BACKEND=memory\nCHATLOGS_SCHEDULER_ENABLED=false\nOTHER=ignored\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".env"), []byte(dotenv), 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "memory", store.GetString("storage.backend"))
	_, ok := store.Get("scheduler.enabled")
	assert.True(t, ok)
	assert.False(t, store.GetBool("scheduler.enabled"))

	// The process environment beats the .env file.
	t.Setenv("CHATLOGS_STORAGE_BACKEND", "sqlite")
	require.NoError(t, store.Load())
	assert.Equal(t, "sqlite", store.GetString("storage.backend"))
}

func TestConfigStore_MalformedDotEnv(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".env"), []byte("CHATLOGS_X='unterminated\n"), 0600))

	_, err := NewConfigStore(tmpDir)
	assert.Error(t, err)
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		name   string
		want   string
		wantOK bool
	}{
		{"CHATLOGS_PIPELINE_TIMEOUT_SECONDS", "pipeline.timeout_seconds", true},
		{"CHATLOGS_STORAGE_DATA_DIR", "storage.data_dir", true},
		{"CHATLOGS_FETCH_MAX_BYTES", "fetch.max_bytes", true},
		{"CHATLOGS_VERBOSE", "", false},
		{"CHATLOGS_", "", false},
		{"HOME", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := EnvKey(tt.name)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNestMap(t *testing.T) {
	nested := nestMap(map[string]any{"a.b": 1, "a.c": "x", "top": true})

	assert.Equal(t, map[string]any{"b": 1, "c": "x"}, nested["a"])
	assert.Equal(t, true, nested["top"])
	assert.Equal(t, map[string]any{"a.b": 1, "a.c": "x", "top": true}, flattenMap(nested, ""))
}
