package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls attempt-aware retries with a fixed backoff between
// attempts and a per-attempt deadline that grows linearly with the attempt
// number.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts (including the first try).
	// A value of 1 means no retries. Default: 5.
	MaxAttempts int

	// Backoff is the fixed delay slept after a failed attempt. Default: 3s.
	Backoff time.Duration

	// BaseTimeout is the deadline of the first attempt; attempt n gets
	// n*BaseTimeout. Zero leaves the caller's context untouched.
	BaseTimeout time.Duration

	// ShouldRetry optionally overrides the default transient-error check.
	// If nil, IsTransient is used.
	ShouldRetry func(err error) bool

	// OnRetry is called before each backoff sleep with attempt number and error.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig returns the acquisition retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		Backoff:     3 * time.Second,
		BaseTimeout: 30 * time.Second,
	}
}

// AttemptTimeout returns the deadline granted to the given 1-based attempt.
func (c RetryConfig) AttemptTimeout(attempt int) time.Duration {
	return c.BaseTimeout * time.Duration(attempt)
}

// DoVal executes fn with retry logic according to cfg and returns the value of
// the successful call. fn receives the 1-based attempt number. When every
// attempt fails with a retryable error, DoVal returns an *ExhaustedError.
// Context cancellation stops retries immediately.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	cfg = applyDefaults(cfg)

	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		val, err := runAttempt(ctx, cfg, attempt, fn)
		if err == nil {
			return val, nil
		}
		lastErr = err

		// Don't retry on context cancellation.
		if ctx.Err() != nil {
			return zero, lastErr
		}

		// Don't retry non-transient errors.
		if !shouldRetry(lastErr) {
			return zero, lastErr
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, lastErr)
		}

		timer := time.NewTimer(cfg.Backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}

	return zero, &ExhaustedError{Attempts: cfg.MaxAttempts, Err: lastErr}
}

func runAttempt[T any](ctx context.Context, cfg RetryConfig, attempt int, fn func(context.Context, int) (T, error)) (T, error) {
	if cfg.BaseTimeout <= 0 {
		return fn(ctx, attempt)
	}
	actx, cancel := context.WithTimeout(ctx, cfg.AttemptTimeout(attempt))
	defer cancel()
	return fn(actx, attempt)
}

func applyDefaults(cfg RetryConfig) RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = 0
	}
	return cfg
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
