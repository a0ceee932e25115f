package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	attempts, err := Do(context.Background(), fastConfig(3), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestDo_AllAttemptsFail(t *testing.T) {
	cause := errors.New("still down")
	attempts, err := Do(context.Background(), fastConfig(3), func(context.Context) error {
		return cause
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, 3, attempts)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	cause := errors.New("bad input")
	calls := 0
	attempts, err := Do(context.Background(), fastConfig(5), func(context.Context) error {
		calls++
		return Permanent(cause)
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, attempts)
	assert.Same(t, cause, err)
	assert.False(t, IsPermanent(err))
}

func TestDo_ContextCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	attempts, err := Do(ctx, fastConfig(3), func(context.Context) error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, attempts)
	assert.Equal(t, 0, calls)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxAttempts: 5, InitialDelay: time.Second, MaxDelay: time.Second}

	calls := 0
	_, err := Do(ctx, cfg, func(context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	attempts, err := Do(context.Background(), Config{}, func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestPermanent_Nil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}

func TestJitter_Bounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := jitter(100 * time.Millisecond)
		assert.GreaterOrEqual(t, d, 75*time.Millisecond)
		assert.LessOrEqual(t, d, 125*time.Millisecond)
	}
}
