package driven

import (
	"context"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
)

// Pipeline runs extract, normalise and paginate for one submission.
type Pipeline interface {
	// Run executes the stages in order and returns their combined output.
	// Stage failures are reported as *domain.StageError. A passed
	// deadline is reported as domain.ErrPipelineTimeout.
	Run(ctx context.Context, in domain.PipelineInput) (*domain.PipelineOutput, error)
}
