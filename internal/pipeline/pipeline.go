package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
	"github.com/custodia-labs/chatlogs/internal/core/ports/driven"
	"github.com/custodia-labs/chatlogs/internal/logger"
	"github.com/custodia-labs/chatlogs/internal/retry"
)

// Ensure Pipeline implements the interface.
var _ driven.Pipeline = (*Pipeline)(nil)

// Pipeline chains extract, normalise and paginate for one submission at a
// time per call. Calls for different submissions may run concurrently.
type Pipeline struct {
	exec      *Executor
	extract   *Extractor
	normalise *Normaliser
	paginate  *Paginator
	timeout   time.Duration
	retry     retry.Config
	observer  driven.PipelineObserver
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithObserver reports stage outcomes to an observer.
func WithObserver(o driven.PipelineObserver) Option {
	return func(p *Pipeline) {
		if o != nil {
			p.observer = o
		}
	}
}

// New creates a pipeline whose stages run on exec.
func New(exec *Executor, parsers driven.ParserRegistry, cfg domain.PipelineConfig, opts ...Option) *Pipeline {
	p := &Pipeline{
		exec:      exec,
		extract:   NewExtractor(parsers),
		normalise: NewNormaliser(),
		paginate:  NewPaginatorFromConfig(cfg.Pagination),
		timeout:   cfg.Timeout,
		retry: retry.Config{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.InitialDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
			Multiplier:   cfg.Retry.Multiplier,
			AddJitter:    true,
		},
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the three stages in order. Stage N+1 is only queued once
// stage N has produced its value. On any failure nothing is returned
// but the error; a stage failure is wrapped in *domain.StageError. When
// the pipeline deadline passes the error is domain.ErrPipelineTimeout.
func (p *Pipeline) Run(ctx context.Context, in domain.PipelineInput) (*domain.PipelineOutput, error) {
	runCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	r := &run{p: p, fp: in.Fingerprint}

	ext, err := runStage(runCtx, r, domain.StageExtract, func(ctx context.Context) (domain.Extraction, error) {
		return p.extract.Extract(ctx, in.DeclaredType, in.Content)
	})
	if err != nil {
		return nil, p.stageFailure(ctx, runCtx, err)
	}

	msgs, err := runStage(runCtx, r, domain.StageNormalise, func(ctx context.Context) ([]domain.Message, error) {
		return p.normalise.Normalise(ctx, ext)
	})
	if err != nil {
		return nil, p.stageFailure(ctx, runCtx, err)
	}

	pages, err := runStage(runCtx, r, domain.StagePaginate, func(ctx context.Context) ([]domain.Page, error) {
		return p.paginate.Paginate(ctx, in.Fingerprint, msgs)
	})
	if err != nil {
		return nil, p.stageFailure(ctx, runCtx, err)
	}

	return &domain.PipelineOutput{
		Type:         ext.Type,
		Pages:        pages,
		MessageCount: len(msgs),
		Stages:       r.results(),
	}, nil
}

// stageFailure turns a deadline hit inside the pipeline into
// ErrPipelineTimeout, leaving the caller's own cancellation untouched.
func (p *Pipeline) stageFailure(parent, runCtx context.Context, err error) error {
	if parent.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrPipelineTimeout, err)
	}
	return err
}

// run tracks provenance for one submission.
type run struct {
	p  *Pipeline
	fp domain.Fingerprint

	mu     sync.Mutex
	stages []domain.StageResult
}

func (r *run) record(stage domain.StageName, attempts int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, domain.StageResult{
		Stage:    stage,
		Order:    len(r.stages),
		Attempts: attempts,
	})
}

func (r *run) results() []domain.StageResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.StageResult, len(r.stages))
	copy(out, r.stages)
	return out
}

// runStage runs fn as one executor job, retrying transient failures
// inside the job. Provenance is recorded as soon as the stage succeeds.
func runStage[T any](ctx context.Context, r *run, stage domain.StageName, fn func(context.Context) (T, error)) (T, error) {
	var (
		mu       sync.Mutex
		out      T
		attempts int
	)
	start := time.Now()

	// The job may outlive Run when ctx ends mid-stage, so its results
	// are only read under mu.
	err := r.p.exec.Run(ctx, func(ctx context.Context) error {
		n, err := retry.Do(ctx, r.p.retry, func(ctx context.Context) error {
			v, err := fn(ctx)
			if err != nil {
				if domain.IsTransient(err) {
					logger.Debug("stage %s for %s failed, retrying: %v", stage, r.fp.Short(), err)
					return err
				}
				return retry.Permanent(err)
			}
			mu.Lock()
			out = v
			mu.Unlock()
			return nil
		})
		mu.Lock()
		attempts = n
		mu.Unlock()
		return err
	})

	mu.Lock()
	result, tries := out, attempts
	mu.Unlock()

	r.p.observer.StageCompleted(stage, tries, time.Since(start), err)

	if err != nil {
		var zero T
		return zero, &domain.StageError{Stage: stage, Err: err}
	}

	r.record(stage, tries)
	logger.Debug("stage %s for %s done after %d attempt(s)", stage, r.fp.Short(), tries)
	return result, nil
}

type nopObserver struct{}

func (nopObserver) StageCompleted(domain.StageName, int, time.Duration, error) {}

func (nopObserver) SubmissionCompleted(string, time.Duration) {}
