package sqlite

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/chatlogs/internal/adapters/driven/storage/storetest"
	"github.com/custodia-labs/chatlogs/internal/core/domain"
	"github.com/custodia-labs/chatlogs/internal/core/ports/driven"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		assert.NoError(t, store.Close())
	}

	return store, cleanup
}

func TestLogStore_Contract(t *testing.T) {
	storetest.RunLogStoreTests(t, func(t *testing.T) driven.LogStore {
		store, cleanup := setupTestStore(t)
		t.Cleanup(cleanup)
		return store.LogStore()
	})
}

func TestNewStore_CreatesDatabase(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	assert.FileExists(t, store.Path())
	assert.Contains(t, store.Path(), "chatlogs.db")

	version, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestNewStore_ReopenKeepsLogs(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewStore(dir)
	require.NoError(t, err)
	_, _, err = store.LogStore().CreateIfAbsent(ctx, storetest.NewRecord("fp-persist", "owner-1", 2))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Migrations are not re-applied on reopen.
	reopened, err := NewStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	version, err := reopened.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	got, err := reopened.LogStore().GetByFingerprint(ctx, "fp-persist")
	require.NoError(t, err)
	assert.Len(t, got.Pages, 2)
	assert.Equal(t, 0, got.Pages[0].Index)
	assert.Equal(t, 1, got.Pages[1].Index)
}

func TestLogStore_DeleteExpiredCascadesPages(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	rec := storetest.NewRecord("fp-gone", "owner-1", 3)
	past := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	rec.ExpiresAt = &past
	_, _, err := store.LogStore().CreateIfAbsent(ctx, rec)
	require.NoError(t, err)

	n, err := store.LogStore().DeleteExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var pages int
	require.NoError(t, store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pages").Scan(&pages))
	assert.Zero(t, pages)
}

func TestLogStore_PreservesLargeNumbers(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	rec := storetest.NewRecord("fp-num", "owner-1", 1)
	rec.Metadata = map[string]any{"snowflake": json.Number("1234567890123456789")}
	rec.Pages[0].Messages[0].Embeds = []map[string]any{{"width": json.Number("9007199254740993")}}
	_, _, err := store.LogStore().CreateIfAbsent(ctx, rec)
	require.NoError(t, err)

	got, err := store.LogStore().GetByFingerprint(ctx, "fp-num")
	require.NoError(t, err)
	assert.Equal(t, json.Number("1234567890123456789"), got.Metadata["snowflake"])
	assert.Equal(t, json.Number("9007199254740993"), got.Pages[0].Messages[0].Embeds[0]["width"])
}

func TestLogStore_CreateIfAbsent_InvalidRecord(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, _, err := store.LogStore().CreateIfAbsent(context.Background(), &domain.LogRecord{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLogStore_CreateIfAbsent_CancelledContext(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := store.LogStore().CreateIfAbsent(ctx, storetest.NewRecord("fp-cancel", "owner-1", 1))
	require.Error(t, err)

	_, err = store.LogStore().GetByFingerprint(context.Background(), "fp-cancel")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNullableHelpers(t *testing.T) {
	assert.Nil(t, nullableString(nil))
	s := "g"
	assert.Equal(t, "g", nullableString(&s))

	assert.Nil(t, nullableUnixNano(nil))
	ts := time.Date(2024, 1, 1, 0, 0, 0, 5, time.UTC)
	assert.Equal(t, ts.UnixNano(), nullableUnixNano(&ts))
}
