package driven

import (
	"time"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
)

// PipelineObserver receives pipeline events for metrics.
// Implementations must be safe for concurrent use.
type PipelineObserver interface {
	// StageCompleted is called after each stage attempt sequence finishes.
	StageCompleted(stage domain.StageName, attempts int, elapsed time.Duration, err error)

	// SubmissionCompleted is called once per submission with its outcome:
	// "created", "deduplicated", "race_lost", or "failed".
	SubmissionCompleted(outcome string, elapsed time.Duration)
}
