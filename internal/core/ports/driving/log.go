package driving

import (
	"context"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
)

// LogService is the entry point for creating and reading logs.
type LogService interface {
	// Submit fingerprints the content, returns the existing log when the
	// content was seen before, and otherwise validates the policy, runs
	// the pipeline and materialises a new log.
	Submit(ctx context.Context, sub domain.RawSubmission) (*domain.LogRecord, error)

	// SubmitArchive fetches a JSON array of messages from url and submits
	// it as a message list. sub.Content is ignored.
	SubmitArchive(ctx context.Context, url string, sub domain.RawSubmission) (*domain.LogRecord, error)

	// Lookup returns the log with the given fingerprint.
	// Returns domain.ErrNotFound if it does not exist.
	Lookup(ctx context.Context, fp domain.Fingerprint) (*domain.LogRecord, error)

	// ListByOwner returns an owner's logs without pages.
	ListByOwner(ctx context.Context, ownerID string) ([]domain.LogRecord, error)
}
