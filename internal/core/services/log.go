package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
	"github.com/custodia-labs/chatlogs/internal/core/ports/driven"
	"github.com/custodia-labs/chatlogs/internal/core/ports/driving"
	"github.com/custodia-labs/chatlogs/internal/logger"
	"github.com/custodia-labs/chatlogs/internal/retry"
)

// Ensure LogService implements the interface.
var _ driving.LogService = (*LogService)(nil)

// Submission outcomes reported to the observer.
const (
	OutcomeCreated      = "created"
	OutcomeDeduplicated = "deduplicated"
	OutcomeRaceLost     = "race_lost"
	OutcomeFailed       = "failed"
)

// LogService ties fingerprinting, deduplication, policy, the pipeline
// and materialisation into the single submit entry point.
type LogService struct {
	store        driven.LogStore
	pipeline     driven.Pipeline
	fetcher      driven.Fetcher
	gate         *PolicyGate
	materializer *Materializer
	observer     driven.PipelineObserver
	fetchRetry   retry.Config
}

// LogServiceOption configures a LogService.
type LogServiceOption func(*LogService)

// WithFetcher enables archive submissions.
func WithFetcher(f driven.Fetcher) LogServiceOption {
	return func(s *LogService) {
		s.fetcher = f
	}
}

// WithSubmissionObserver reports submission outcomes.
func WithSubmissionObserver(o driven.PipelineObserver) LogServiceOption {
	return func(s *LogService) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithFetchRetry sets the retry policy for transient fetch failures.
func WithFetchRetry(cfg retry.Config) LogServiceOption {
	return func(s *LogService) {
		s.fetchRetry = cfg
	}
}

// NewLogService creates a log service.
func NewLogService(
	store driven.LogStore,
	pipeline driven.Pipeline,
	policy domain.PolicyConfig,
	opts ...LogServiceOption,
) *LogService {
	s := &LogService{
		store:        store,
		pipeline:     pipeline,
		gate:         NewPolicyGate(policy),
		materializer: NewMaterializer(store),
		observer:     nopObserver{},
		fetchRetry:   retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit returns the log for the submitted content, creating it on first
// submission. A resubmission returns the stored log unchanged; its
// expiry and pages are not recomputed.
func (s *LogService) Submit(ctx context.Context, sub domain.RawSubmission) (*domain.LogRecord, error) {
	start := time.Now()

	record, outcome, err := s.submit(ctx, sub)
	if err != nil {
		s.observer.SubmissionCompleted(OutcomeFailed, time.Since(start))
		return nil, err
	}

	s.observer.SubmissionCompleted(outcome, time.Since(start))
	return record, nil
}

func (s *LogService) submit(ctx context.Context, sub domain.RawSubmission) (*domain.LogRecord, string, error) {
	if err := sub.Validate(); err != nil {
		return nil, "", fmt.Errorf("%w: content is empty or missing a declared type", err)
	}

	fp, err := Fingerprint(sub.Content)
	if err != nil {
		return nil, "", err
	}

	existing, err := s.store.GetByFingerprint(ctx, fp)
	switch {
	case err == nil:
		logger.Debug("log %s already exists, skipping pipeline", fp.Short())
		return existing, OutcomeDeduplicated, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, "", fmt.Errorf("lookup %s: %w", fp.Short(), err)
	}

	policy, err := s.gate.Evaluate(sub)
	if err != nil {
		return nil, "", err
	}

	runID := ulid.Make()
	logger.Debug("run %s: processing %s", runID, fp.Short())

	out, err := s.pipeline.Run(ctx, domain.PipelineInput{
		Fingerprint:  fp,
		DeclaredType: sub.DeclaredType,
		Content:      sub.Content,
	})
	if err != nil {
		logger.Debug("run %s: pipeline failed: %v", runID, err)
		return nil, "", err
	}

	record, err := s.materializer.Materialize(ctx, MaterializeInput{
		Fingerprint: fp,
		Owner:       sub.Owner,
		Policy:      policy,
		Output:      out,
		Metadata:    sub.Metadata,
	})
	if errors.Is(err, domain.ErrDuplicateRace) {
		logger.Debug("run %s: lost create race for %s, returning winner", runID, fp.Short())
		return record, OutcomeRaceLost, nil
	}
	if err != nil {
		return nil, "", err
	}

	logger.Debug("run %s: created %s with %d page(s)", runID, fp.Short(), len(record.Pages))
	return record, OutcomeCreated, nil
}

// SubmitArchive fetches a JSON array of messages and submits it as a
// message list. Transient fetch failures are retried.
func (s *LogService) SubmitArchive(ctx context.Context, url string, sub domain.RawSubmission) (*domain.LogRecord, error) {
	if s.fetcher == nil {
		return nil, fmt.Errorf("%w: archive fetching is not configured", domain.ErrInvalidInput)
	}
	if url == "" {
		return nil, fmt.Errorf("%w: archive url is empty", domain.ErrInvalidInput)
	}

	start := time.Now()
	var data []byte
	attempts, err := retry.Do(ctx, s.fetchRetry, func(ctx context.Context) error {
		b, err := s.fetcher.Fetch(ctx, url)
		if err != nil {
			if domain.IsTransient(err) {
				return err
			}
			return retry.Permanent(err)
		}
		data = b
		return nil
	})
	if err != nil {
		s.observer.SubmissionCompleted(OutcomeFailed, time.Since(start))
		return nil, err
	}
	logger.Debug("fetched %s in %d attempt(s), %d bytes", url, attempts, len(data))

	msgs, err := domain.DecodeMessageList(data)
	if err != nil {
		s.observer.SubmissionCompleted(OutcomeFailed, time.Since(start))
		return nil, fmt.Errorf("archive %s: %w", url, err)
	}

	sub.Content = domain.MessageContent(msgs)
	return s.Submit(ctx, sub)
}

// Lookup returns the log with the given fingerprint.
func (s *LogService) Lookup(ctx context.Context, fp domain.Fingerprint) (*domain.LogRecord, error) {
	if fp == "" {
		return nil, domain.ErrNotFound
	}
	return s.store.GetByFingerprint(ctx, fp)
}

// ListByOwner returns an owner's logs without pages.
func (s *LogService) ListByOwner(ctx context.Context, ownerID string) ([]domain.LogRecord, error) {
	return s.store.ListByOwner(ctx, ownerID)
}

// ExpiryTokens lists the expiry tokens an owner of the given tier may use.
func (s *LogService) ExpiryTokens(tier domain.Tier) []string {
	return s.gate.ExpiryTokens(tier)
}

type nopObserver struct{}

func (nopObserver) StageCompleted(domain.StageName, int, time.Duration, error) {}

func (nopObserver) SubmissionCompleted(string, time.Duration) {}
