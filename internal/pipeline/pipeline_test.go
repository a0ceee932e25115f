package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
	"github.com/custodia-labs/chatlogs/internal/parsers"
)

// flakyParser fails transiently a fixed number of times before succeeding.
type flakyParser struct {
	failures int32
	calls    atomic.Int32
	block    chan struct{}
}

func (f *flakyParser) Type() string { return "flaky" }

func (f *flakyParser) Parse(ctx context.Context, _ string) ([]domain.ExtractedMessage, error) {
	n := f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if n <= f.failures {
		return nil, &domain.FetchError{URL: "backend", Temporary: true, Err: errors.New("unavailable")}
	}
	return []domain.ExtractedMessage{
		{Ordinal: 0, HasOrdinal: true, Source: "flaky", Fields: map[string]any{"author": "a", "body": "ok"}},
	}, nil
}

type recordingObserver struct {
	mu     sync.Mutex
	stages []domain.StageName
	errs   []error
}

func (r *recordingObserver) StageCompleted(stage domain.StageName, _ int, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stage)
	r.errs = append(r.errs, err)
}

func (r *recordingObserver) SubmissionCompleted(string, time.Duration) {}

func testConfig() domain.PipelineConfig {
	cfg := domain.DefaultPipelineConfig()
	cfg.Retry.InitialDelay = time.Millisecond
	cfg.Retry.MaxDelay = 5 * time.Millisecond
	return cfg
}

func newTestPipeline(t *testing.T, cfg domain.PipelineConfig, reg *parsers.Registry, opts ...Option) *Pipeline {
	t.Helper()
	exec := startExecutor(t, cfg.Workers, cfg.QueueSize)
	return New(exec, reg, cfg, opts...)
}

func TestPipeline_RunList(t *testing.T) {
	obs := &recordingObserver{}
	p := newTestPipeline(t, testConfig(), parsers.NewDefaultRegistry(), WithObserver(obs))

	out, err := p.Run(context.Background(), domain.PipelineInput{
		Fingerprint: "fp",
		Content: domain.MessageContent([]map[string]any{
			{"author": "a", "body": "hi"},
			{"author": "b", "body": "yo"},
		}),
	})
	require.NoError(t, err)

	assert.Equal(t, ListType, out.Type)
	assert.Equal(t, 2, out.MessageCount)
	require.Len(t, out.Pages, 1)
	require.Len(t, out.Pages[0].Messages, 2)
	assert.Equal(t, "hi", out.Pages[0].Messages[0].Body)
	assert.Equal(t, "yo", out.Pages[0].Messages[1].Body)

	assert.Equal(t, []domain.StageName{domain.StageExtract, domain.StageNormalise, domain.StagePaginate}, out.Provenance())
	for i, s := range out.Stages {
		assert.Equal(t, i, s.Order)
		assert.Equal(t, 1, s.Attempts)
	}
	assert.Equal(t, out.Provenance(), obs.stages)
}

func TestPipeline_RunText(t *testing.T) {
	p := newTestPipeline(t, testConfig(), parsers.NewDefaultRegistry())

	out, err := p.Run(context.Background(), domain.PipelineInput{
		Fingerprint:  "fp",
		DeclaredType: "irc",
		Content:      domain.TextContent("[10:00] <alice> one\n[10:01] <bob> two\n[10:02] <alice> three"),
	})
	require.NoError(t, err)
	assert.Equal(t, "irc", out.Type)
	assert.Equal(t, 3, out.MessageCount)
	assert.Equal(t, "bob", out.Pages[0].Messages[1].Author.Name)
}

func TestPipeline_UnsupportedTypeStopsChain(t *testing.T) {
	obs := &recordingObserver{}
	p := newTestPipeline(t, testConfig(), parsers.NewDefaultRegistry(), WithObserver(obs))

	out, err := p.Run(context.Background(), domain.PipelineInput{
		Fingerprint:  "fp",
		DeclaredType: "unknown-format",
		Content:      domain.TextContent("hello"),
	})
	assert.Nil(t, out)
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	var stageErr *domain.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, domain.StageExtract, stageErr.Stage)
	assert.Equal(t, []domain.StageName{domain.StageExtract}, obs.stages)
}

func TestPipeline_SchemaViolationAtNormalise(t *testing.T) {
	p := newTestPipeline(t, testConfig(), parsers.NewDefaultRegistry())

	_, err := p.Run(context.Background(), domain.PipelineInput{
		Fingerprint: "fp",
		Content:     domain.MessageContent([]map[string]any{{"body": "no author"}}),
	})
	assert.ErrorIs(t, err, domain.ErrSchemaViolation)

	var stageErr *domain.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, domain.StageNormalise, stageErr.Stage)
}

func TestPipeline_RetriesTransientFailure(t *testing.T) {
	reg := parsers.NewRegistry()
	flaky := &flakyParser{failures: 2}
	reg.Register(flaky)
	p := newTestPipeline(t, testConfig(), reg)

	out, err := p.Run(context.Background(), domain.PipelineInput{
		Fingerprint:  "fp",
		DeclaredType: "flaky",
		Content:      domain.TextContent("anything"),
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), flaky.calls.Load())
	assert.Equal(t, 3, out.Stages[0].Attempts)
	assert.Equal(t, 1, out.Stages[1].Attempts)
}

func TestPipeline_TransientFailureExhaustsRetries(t *testing.T) {
	reg := parsers.NewRegistry()
	flaky := &flakyParser{failures: 10}
	reg.Register(flaky)
	p := newTestPipeline(t, testConfig(), reg)

	_, err := p.Run(context.Background(), domain.PipelineInput{
		Fingerprint:  "fp",
		DeclaredType: "flaky",
		Content:      domain.TextContent("anything"),
	})
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
	assert.Equal(t, int32(3), flaky.calls.Load())
}

func TestPipeline_Timeout(t *testing.T) {
	reg := parsers.NewRegistry()
	reg.Register(&flakyParser{block: make(chan struct{})})

	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond
	p := newTestPipeline(t, cfg, reg)

	out, err := p.Run(context.Background(), domain.PipelineInput{
		Fingerprint:  "fp",
		DeclaredType: "flaky",
		Content:      domain.TextContent("anything"),
	})
	assert.Nil(t, out)
	assert.ErrorIs(t, err, domain.ErrPipelineTimeout)
}

func TestPipeline_CallerCancellation(t *testing.T) {
	reg := parsers.NewRegistry()
	flaky := &flakyParser{block: make(chan struct{})}
	reg.Register(flaky)
	p := newTestPipeline(t, testConfig(), reg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for flaky.calls.Load() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	_, err := p.Run(ctx, domain.PipelineInput{
		Fingerprint:  "fp",
		DeclaredType: "flaky",
		Content:      domain.TextContent("anything"),
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrPipelineTimeout)
}

func TestPipeline_ConcurrentRunsKeepOwnProvenance(t *testing.T) {
	cfg := testConfig()
	cfg.Workers = 3
	p := newTestPipeline(t, cfg, parsers.NewDefaultRegistry())

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := p.Run(context.Background(), domain.PipelineInput{
				Fingerprint: domain.Fingerprint(string(rune('a' + i))),
				Content:     domain.MessageContent([]map[string]any{{"author": "a", "body": "x"}}),
			})
			if err != nil {
				errs <- err
				return
			}
			if len(out.Stages) != 3 || out.Stages[0].Stage != domain.StageExtract ||
				out.Stages[2].Stage != domain.StagePaginate {
				errs <- errors.New("provenance out of order")
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
