package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/chatlogs/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/chatlogs/internal/core/domain"
)

func testOutput() *domain.PipelineOutput {
	return &domain.PipelineOutput{
		Type: "json",
		Pages: []domain.Page{{
			ID:    "page-0",
			Index: 0,
			Messages: []domain.Message{
				{Ordinal: 0, Author: domain.Author{ID: "a", Name: "a"}, Body: "hi"},
			},
		}},
		MessageCount: 1,
		Stages: []domain.StageResult{
			{Stage: domain.StageExtract, Order: 0, Attempts: 1},
			{Stage: domain.StageNormalise, Order: 1, Attempts: 2},
			{Stage: domain.StagePaginate, Order: 2, Attempts: 1},
		},
	}
}

func TestMaterializer_Creates(t *testing.T) {
	store := memory.NewLogStore()
	m := NewMaterializer(store)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	expires := now.Add(time.Hour)
	guild := "g1"

	rec, err := m.Materialize(context.Background(), MaterializeInput{
		Fingerprint: "fp1",
		Owner:       domain.Owner{ID: "u1"},
		Policy:      domain.Policy{ExpiresAt: &expires, Privacy: domain.PrivacyGuild, GuildRef: &guild},
		Output:      testOutput(),
		Metadata:    map[string]any{"channel": "general"},
	})

	require.NoError(t, err)
	assert.Equal(t, domain.Fingerprint("fp1"), rec.Fingerprint)
	assert.Equal(t, "json", rec.Type)
	assert.Equal(t, "u1", rec.Owner)
	assert.Equal(t, domain.PrivacyGuild, rec.Privacy)
	assert.Equal(t, "g1", *rec.GuildRef)
	assert.Equal(t, expires, *rec.ExpiresAt)
	assert.Equal(t, now, rec.CreatedAt)
	assert.Equal(t, []domain.StageName{domain.StageExtract, domain.StageNormalise, domain.StagePaginate}, rec.StageProvenance)
	assert.Equal(t, 1, rec.MessageCount)
	assert.Len(t, rec.Pages, 1)
	assert.Equal(t, "general", rec.Metadata["channel"])
	assert.Equal(t, 1, store.Len())
}

func TestMaterializer_ExistingRecordWins(t *testing.T) {
	store := memory.NewLogStore()
	m := NewMaterializer(store)
	ctx := context.Background()

	first, err := m.Materialize(ctx, MaterializeInput{
		Fingerprint: "fp1",
		Owner:       domain.Owner{ID: "first"},
		Policy:      domain.Policy{Privacy: domain.PrivacyPublic},
		Output:      testOutput(),
	})
	require.NoError(t, err)

	second, err := m.Materialize(ctx, MaterializeInput{
		Fingerprint: "fp1",
		Owner:       domain.Owner{ID: "second"},
		Policy:      domain.Policy{Privacy: domain.PrivacyUnlisted},
		Output:      testOutput(),
	})

	assert.ErrorIs(t, err, domain.ErrDuplicateRace)
	require.NotNil(t, second)
	assert.Equal(t, first.Owner, second.Owner)
	assert.Equal(t, domain.PrivacyPublic, second.Privacy)
	assert.Equal(t, 1, store.Len())
}

func TestMaterializer_NoPages(t *testing.T) {
	store := memory.NewLogStore()
	m := NewMaterializer(store)

	out := testOutput()
	out.Pages = nil
	_, err := m.Materialize(context.Background(), MaterializeInput{Fingerprint: "fp1", Output: out})

	assert.ErrorIs(t, err, domain.ErrMalformedContent)
	assert.Zero(t, store.Len())
}

func TestMaterializer_CancelledContext(t *testing.T) {
	store := memory.NewLogStore()
	m := NewMaterializer(store)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Materialize(ctx, MaterializeInput{Fingerprint: "fp1", Output: testOutput()})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, store.Len())
}
