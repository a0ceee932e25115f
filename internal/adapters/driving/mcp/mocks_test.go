package mcp

import (
	"context"
	"time"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
)

// mockLogService is a mock implementation of driving.LogService.
type mockLogService struct {
	record  *domain.LogRecord
	records []domain.LogRecord
	err     error

	submitted []domain.RawSubmission
	listOwner string
}

func (m *mockLogService) Submit(_ context.Context, sub domain.RawSubmission) (*domain.LogRecord, error) {
	m.submitted = append(m.submitted, sub)
	return m.record, m.err
}

func (m *mockLogService) SubmitArchive(_ context.Context, _ string, sub domain.RawSubmission) (*domain.LogRecord, error) {
	m.submitted = append(m.submitted, sub)
	return m.record, m.err
}

func (m *mockLogService) Lookup(_ context.Context, fp domain.Fingerprint) (*domain.LogRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.record == nil || m.record.Fingerprint != fp {
		return nil, domain.ErrNotFound
	}
	return m.record, nil
}

func (m *mockLogService) ListByOwner(_ context.Context, ownerID string) ([]domain.LogRecord, error) {
	m.listOwner = ownerID
	return m.records, m.err
}

// sampleRecord returns a two-page guild log.
func sampleRecord() *domain.LogRecord {
	guild := "guild-1"
	expires := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &domain.LogRecord{
		Fingerprint: "abc123",
		Type:        "list",
		Owner:       "mcp",
		Privacy:     domain.PrivacyGuild,
		GuildRef:    &guild,
		ExpiresAt:   &expires,
		CreatedAt:   expires.Add(-30 * time.Minute),
		StageProvenance: []domain.StageName{
			domain.StageExtract, domain.StageNormalise, domain.StagePaginate,
		},
		MessageCount: 3,
		Pages: []domain.Page{
			{ID: "p0", Index: 0, Messages: []domain.Message{
				{Ordinal: 0, Author: domain.Author{ID: "1", Name: "ana"}, Body: "hello"},
				{Ordinal: 1, Author: domain.Author{ID: "2", Name: "bo"}, Body: "hi"},
			}},
			{ID: "p1", Index: 1, Messages: []domain.Message{
				{Ordinal: 2, Author: domain.Author{ID: "1", Name: "ana"}, Body: "bye"},
			}},
		},
	}
}
