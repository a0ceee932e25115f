// Package storetest holds behaviour tests shared by every LogStore and
// SchedulerStore implementation.
package storetest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
	"github.com/custodia-labs/chatlogs/internal/core/ports/driven"
)

// Factory returns a fresh, empty store for one test.
type Factory func(t *testing.T) driven.LogStore

// NewRecord builds a record with the given number of single-message pages.
func NewRecord(fp domain.Fingerprint, owner string, pages int) *domain.LogRecord {
	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	guild := "guild-1"
	ts := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	rec := &domain.LogRecord{
		Fingerprint:     fp,
		Type:            "list",
		Owner:           owner,
		Privacy:         domain.PrivacyGuild,
		GuildRef:        &guild,
		ExpiresAt:       &expires,
		CreatedAt:       time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		StageProvenance: []domain.StageName{domain.StageExtract, domain.StageNormalise, domain.StagePaginate},
		MessageCount:    pages,
		Metadata:        map[string]any{"source": "test"},
	}
	for i := 0; i < pages; i++ {
		rec.Pages = append(rec.Pages, domain.Page{
			ID:    fmt.Sprintf("%s-page-%d", fp, i),
			Index: i,
			Messages: []domain.Message{{
				Ordinal:     i,
				ID:          fmt.Sprintf("m%d", i),
				Author:      domain.Author{ID: "1", Name: "alice"},
				Timestamp:   &ts,
				Body:        fmt.Sprintf("message %d", i),
				Attachments: []domain.Attachment{{Filename: "a.png", URL: "https://cdn/a.png", Size: 10}},
				Reactions:   []domain.Reaction{{Emoji: "👍", Count: 2}},
				Embeds:      []map[string]any{},
			}},
		})
	}
	return rec
}

// RunLogStoreTests exercises the LogStore contract.
func RunLogStoreTests(t *testing.T, newStore Factory) {
	t.Run("GetMissing", func(t *testing.T) {
		store := newStore(t)
		_, err := store.GetByFingerprint(context.Background(), "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("CreateThenGet", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		rec := NewRecord("fp-1", "owner-1", 3)

		created, stored, err := store.CreateIfAbsent(ctx, rec)
		require.NoError(t, err)
		assert.True(t, created)
		require.NotNil(t, stored)
		assert.Equal(t, rec.Fingerprint, stored.Fingerprint)

		got, err := store.GetByFingerprint(ctx, "fp-1")
		require.NoError(t, err)
		assertSameRecord(t, rec, got)
	})

	t.Run("CreateIfAbsentKeepsFirst", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		first := NewRecord("fp-1", "owner-1", 2)
		second := NewRecord("fp-1", "owner-2", 5)

		_, _, err := store.CreateIfAbsent(ctx, first)
		require.NoError(t, err)

		created, existing, err := store.CreateIfAbsent(ctx, second)
		require.NoError(t, err)
		assert.False(t, created)
		require.NotNil(t, existing)
		assert.Equal(t, "owner-1", existing.Owner)
		assert.Len(t, existing.Pages, 2)
	})

	t.Run("ConcurrentCreateSingleWinner", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				created, rec, err := store.CreateIfAbsent(ctx, NewRecord("fp-race", fmt.Sprintf("owner-%d", i), 2))
				if !assert.NoError(t, err) {
					return
				}
				if created {
					wins.Add(1)
				}
				assert.Len(t, rec.Pages, 2)
			}(i)
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())

		got, err := store.GetByFingerprint(ctx, "fp-race")
		require.NoError(t, err)
		assert.Len(t, got.Pages, 2)
	})

	t.Run("NeverExpiresAndPublic", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		rec := NewRecord("fp-forever", "owner-1", 1)
		rec.ExpiresAt = nil
		rec.GuildRef = nil
		rec.Privacy = domain.PrivacyPublic
		rec.Metadata = nil

		_, _, err := store.CreateIfAbsent(ctx, rec)
		require.NoError(t, err)

		got, err := store.GetByFingerprint(ctx, "fp-forever")
		require.NoError(t, err)
		assert.Nil(t, got.ExpiresAt)
		assert.Nil(t, got.GuildRef)
		assert.Equal(t, domain.PrivacyPublic, got.Privacy)
	})

	t.Run("ListByOwner", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		older := NewRecord("fp-old", "owner-1", 1)
		newer := NewRecord("fp-new", "owner-1", 2)
		newer.CreatedAt = older.CreatedAt.Add(time.Hour)
		other := NewRecord("fp-other", "owner-2", 1)

		for _, r := range []*domain.LogRecord{older, newer, other} {
			_, _, err := store.CreateIfAbsent(ctx, r)
			require.NoError(t, err)
		}

		logs, err := store.ListByOwner(ctx, "owner-1")
		require.NoError(t, err)
		require.Len(t, logs, 2)
		assert.Equal(t, domain.Fingerprint("fp-new"), logs[0].Fingerprint)
		assert.Equal(t, domain.Fingerprint("fp-old"), logs[1].Fingerprint)
		assert.Empty(t, logs[0].Pages)
		assert.Equal(t, 2, logs[0].MessageCount)

		none, err := store.ListByOwner(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("DeleteExpired", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

		past := now.Add(-time.Minute)
		expired := NewRecord("fp-expired", "owner-1", 2)
		expired.ExpiresAt = &past

		exact := NewRecord("fp-exact", "owner-1", 1)
		exact.ExpiresAt = &now

		live := NewRecord("fp-live", "owner-1", 1)

		forever := NewRecord("fp-forever", "owner-1", 1)
		forever.ExpiresAt = nil

		for _, r := range []*domain.LogRecord{expired, exact, live, forever} {
			_, _, err := store.CreateIfAbsent(ctx, r)
			require.NoError(t, err)
		}

		n, err := store.DeleteExpired(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		_, err = store.GetByFingerprint(ctx, "fp-expired")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = store.GetByFingerprint(ctx, "fp-exact")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = store.GetByFingerprint(ctx, "fp-live")
		assert.NoError(t, err)
		_, err = store.GetByFingerprint(ctx, "fp-forever")
		assert.NoError(t, err)

		// A fingerprint freed by expiry can be created again.
		created, _, err := store.CreateIfAbsent(ctx, NewRecord("fp-expired", "owner-3", 1))
		require.NoError(t, err)
		assert.True(t, created)
	})

	t.Run("ReadsDuringSweepSeeWholeRecords", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		past := now.Add(-time.Minute)
		const pages = 30

		for round := 0; round < 5; round++ {
			fp := domain.Fingerprint(fmt.Sprintf("fp-sweep-%d", round))
			rec := NewRecord(fp, "owner-1", pages)
			rec.ExpiresAt = &past
			_, _, err := store.CreateIfAbsent(ctx, rec)
			require.NoError(t, err)

			var partial atomic.Int32
			stop := make(chan struct{})
			var wg sync.WaitGroup
			for r := 0; r < 4; r++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for {
						select {
						case <-stop:
							return
						default:
						}
						got, err := store.GetByFingerprint(ctx, fp)
						if err == nil && len(got.Pages) != pages {
							partial.Add(1)
						}
					}
				}()
			}

			n, err := store.DeleteExpired(ctx, now)
			close(stop)
			wg.Wait()

			require.NoError(t, err)
			assert.Equal(t, 1, n)
			assert.Zero(t, partial.Load(), "round %d returned records with missing pages", round)
		}
	})
}

// assertSameRecord compares records through their JSON form so pointer
// identity and time zones do not matter.
func assertSameRecord(t *testing.T, want, got *domain.LogRecord) {
	t.Helper()
	assert.Equal(t, want.Fingerprint, got.Fingerprint)
	assert.Equal(t, want.Type, got.Type)
	assert.Equal(t, want.Owner, got.Owner)
	assert.Equal(t, want.Privacy, got.Privacy)
	require.NotNil(t, got.GuildRef)
	assert.Equal(t, *want.GuildRef, *got.GuildRef)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, want.ExpiresAt.Equal(*got.ExpiresAt))
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, want.StageProvenance, got.StageProvenance)
	assert.Equal(t, want.MessageCount, got.MessageCount)
	assert.Equal(t, "test", got.Metadata["source"])

	w, err := json.Marshal(want.Pages)
	require.NoError(t, err)
	g, err := json.Marshal(got.Pages)
	require.NoError(t, err)
	assert.JSONEq(t, string(w), string(g))
}
