// Package retry provides exponential backoff for transient stage and fetch failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

var (
	randMu     sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // jitter only
)

// PermanentError wraps errors that must not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Config controls backoff between attempts.
type Config struct {
	MaxAttempts  int           // Total attempts; values below 1 mean a single attempt
	InitialDelay time.Duration // Delay before the second attempt
	MaxDelay     time.Duration // Upper bound on any delay
	Multiplier   float64       // Growth factor between delays
	AddJitter    bool          // Randomise delays by up to 25%
}

// DefaultConfig returns 3 attempts with 100ms-5s backoff.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

// Do runs fn until it succeeds, returns a permanent error, runs out of
// attempts, or ctx is done. It returns the number of attempts made.
// The returned error unwraps to fn's last error, without the
// PermanentError wrapper.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) (int, error) {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = cfg.InitialDelay
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 2.0
	}

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return attempt - 1, fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
			return attempt - 1, err
		}

		err := fn(ctx)
		if err == nil {
			return attempt, nil
		}
		var pe *PermanentError
		if errors.As(err, &pe) {
			return attempt, pe.Err
		}
		lastErr = err

		if attempt == cfg.MaxAttempts {
			break
		}

		sleep := delay
		if cfg.AddJitter {
			sleep = jitter(delay)
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
		case <-timer.C:
		}

		next := time.Duration(float64(delay) * cfg.Multiplier)
		if next > cfg.MaxDelay || next <= 0 {
			next = cfg.MaxDelay
		}
		delay = next
	}

	return cfg.MaxAttempts, fmt.Errorf("failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// jitter returns d adjusted by a random amount in [-25%, +25%].
func jitter(d time.Duration) time.Duration {
	randMu.Lock()
	f := randSource.Float64()
	randMu.Unlock()
	return time.Duration(float64(d) * (0.75 + f*0.5))
}
