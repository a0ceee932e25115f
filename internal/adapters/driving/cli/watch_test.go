package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchCmd_Use(t *testing.T) {
	assert.Equal(t, "watch <dir>", watchCmd.Use)
	assert.Contains(t, watchCmd.Long, "*.<type>.txt")
}

func TestWatchCmd_Flags(t *testing.T) {
	for _, name := range []string{"expires", "privacy", "guild", "owner", "privileged", "no-scan", "settle"} {
		assert.NotNil(t, watchCmd.Flags().Lookup(name), "%s flag should exist", name)
	}
	assert.Nil(t, watchCmd.Flags().Lookup("type"), "type comes from the file name")
}

func TestWatchCmd_ScansExistingFiles(t *testing.T) {
	env := setupTestServices(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(twoMessageJSON), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.irc.txt"), []byte("[10:00] <carol> hey\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.json"), []byte(`{"nope": true}`), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"watch", "--owner", "carol", dir})
	watchCmd.SetContext(ctx)
	require.NoError(t, rootCmd.ExecuteContext(ctx))

	out := buf.String()
	assert.Contains(t, out, "a.json -> ")
	assert.Contains(t, out, "b.irc.txt -> ")
	assert.Contains(t, out, "c.json: malformed content")
	assert.Contains(t, out, "Watching "+dir)

	records, err := env.logs.ListByOwner(context.Background(), "carol")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestWatchCmd_NoScan(t *testing.T) {
	env := setupTestServices(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(twoMessageJSON), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"watch", "--no-scan", "--owner", "carol", dir})
	watchCmd.SetContext(ctx)
	require.NoError(t, rootCmd.ExecuteContext(ctx))

	records, err := env.logs.ListByOwner(context.Background(), "carol")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestWatchCmd_SubmitsFileAfterSettle(t *testing.T) {
	env := setupTestServices(t)
	dir := t.TempDir()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		time.Sleep(150 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(dir, "late.json"), []byte(twoMessageJSON), 0o644)
	}()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"watch", "--no-scan", "--settle", "50ms", "--owner", "carol", dir})
	watchCmd.SetContext(ctx)
	require.NoError(t, rootCmd.ExecuteContext(ctx))

	assert.Contains(t, buf.String(), "late.json -> ")
	records, err := env.logs.ListByOwner(context.Background(), "carol")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestWatchCmd_MissingDirectory(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "watch", "/non/existent/path")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "root path error")
}
