package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
)

// LogStore persists log records and their pages, keyed by fingerprint.
// Backed by SQLite by default; Pebble and memory are alternatives.
type LogStore interface {
	// GetByFingerprint retrieves a record and its pages.
	// Returns domain.ErrNotFound if no record exists.
	GetByFingerprint(ctx context.Context, fp domain.Fingerprint) (*domain.LogRecord, error)

	// CreateIfAbsent stores the record and its pages as one atomic unit,
	// unless a record with the same fingerprint already exists.
	// Returns created=false and the existing record in that case.
	CreateIfAbsent(ctx context.Context, record *domain.LogRecord) (bool, *domain.LogRecord, error)

	// ListByOwner returns an owner's records, newest first, without pages.
	ListByOwner(ctx context.Context, ownerID string) ([]domain.LogRecord, error)

	// DeleteExpired removes records whose expiry is at or before now.
	// Returns the number of records removed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
