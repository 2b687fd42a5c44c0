// Package retry runs an operation with exponential backoff and jitter.
package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

// Config controls exponential backoff.
type Config struct {
	MaxRetries int           // retry attempts after the first (0 = no retry, <0 = until ctx is done)
	BaseDelay  time.Duration // initial backoff delay (default 1s)
	MaxDelay   time.Duration // maximum backoff delay (default 30s)

	// Retryable decides whether an error is worth another attempt.
	// Nil retries every error.
	Retryable func(error) bool
}

// DefaultConfig returns the backoff used for stream reattach.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 5,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, runs out of
// retries or ctx is done. It returns the number of attempts made and the
// last error.
func Do(ctx context.Context, cfg Config, fn func(context.Context) error) (attempts int, err error) {
	base, max := cfg.BaseDelay, cfg.MaxDelay
	if base <= 0 {
		base = time.Second
	}
	if max <= 0 {
		max = 30 * time.Second
	}

	for attempt := 0; ; attempt++ {
		if err = fn(ctx); err == nil {
			return attempt + 1, nil
		}
		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return attempt + 1, err
		}
		if cfg.MaxRetries >= 0 && attempt >= cfg.MaxRetries {
			return attempt + 1, err
		}

		t := time.NewTimer(Backoff(base, max, attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return attempt + 1, ctx.Err()
		case <-t.C:
		}
	}
}

// Backoff computes delay = min(base * 2^attempt, max) + jitter(±25%).
func Backoff(base, max time.Duration, attempt int) time.Duration {
	delay := max
	if attempt < 32 {
		if d := base << uint(attempt); d > 0 && d < max {
			delay = d
		}
	}

	quarter := delay / 4
	if quarter > 0 {
		delay += time.Duration(rand.Int64N(int64(quarter*2))) - quarter
	}
	return delay
}
