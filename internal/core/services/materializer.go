package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
	"github.com/custodia-labs/chatlogs/internal/core/ports/driven"
)

// Materializer assembles and persists the final log record.
// All writes to the log store go through it.
type Materializer struct {
	store driven.LogStore
	now   func() time.Time
}

// NewMaterializer creates a materializer over the given store.
func NewMaterializer(store driven.LogStore) *Materializer {
	return &Materializer{store: store, now: time.Now}
}

// MaterializeInput is everything needed to build a record.
type MaterializeInput struct {
	Fingerprint domain.Fingerprint
	Owner       domain.Owner
	Policy      domain.Policy
	Output      *domain.PipelineOutput
	Metadata    map[string]any
}

// Materialize stores a new record unless one already exists for the
// fingerprint. When another submission got there first it returns the
// existing record together with domain.ErrDuplicateRace.
func (m *Materializer) Materialize(ctx context.Context, in MaterializeInput) (*domain.LogRecord, error) {
	if in.Output == nil || len(in.Output.Pages) == 0 {
		return nil, fmt.Errorf("%w: pipeline produced no pages", domain.ErrMalformedContent)
	}
	// A deadline passing here must not leave a record behind.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	record := &domain.LogRecord{
		Fingerprint:     in.Fingerprint,
		Type:            in.Output.Type,
		Owner:           in.Owner.ID,
		Privacy:         in.Policy.Privacy,
		GuildRef:        in.Policy.GuildRef,
		ExpiresAt:       in.Policy.ExpiresAt,
		CreatedAt:       m.now().UTC(),
		StageProvenance: in.Output.Provenance(),
		MessageCount:    in.Output.MessageCount,
		Pages:           in.Output.Pages,
		Metadata:        in.Metadata,
	}

	created, stored, err := m.store.CreateIfAbsent(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("store log %s: %w", in.Fingerprint.Short(), err)
	}
	if !created {
		return stored, domain.ErrDuplicateRace
	}
	return stored, nil
}
