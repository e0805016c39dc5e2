// Package retry provides exponential-backoff retry for flaky external calls.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	odferrors "github.com/odfkit/odfkit/internal/errors"
)

// Config holds retry configuration.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Name         string
	RetryIf      func(error) bool
}

// Option is a functional option for retry configuration.
type Option func(*Config)

// WithExponentialBackoff executes the operation with exponential backoff retry.
// It retries the operation up to MaxRetries times, with exponentially increasing
// delays between attempts. Context cancellation is respected throughout.
//
// Errors wrapped with Fatal() are never retried. When a RetryIf predicate is
// configured, errors it rejects are not retried either.
func WithExponentialBackoff(ctx context.Context, operation func() error, opts ...Option) error {
	cfg := &Config{
		MaxRetries:   5,
		InitialDelay: 5 * time.Second,
		MaxDelay:     80 * time.Second,
		Multiplier:   2.0,
		Name:         "operation",
	}

	for _, opt := range opts {
		opt(cfg)
	}

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		lastErr = err

		if IsFatal(err) {
			return fmt.Errorf("%s hit fatal error (not retrying): %w", cfg.Name, err)
		}
		if cfg.RetryIf != nil && !cfg.RetryIf(err) {
			return fmt.Errorf("%s failed with non-retryable error: %w", cfg.Name, err)
		}

		if attempt < cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s cancelled after %d attempts: %w", cfg.Name, attempt+1, ctx.Err())
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * cfg.Multiplier)
				if delay > cfg.MaxDelay {
					delay = cfg.MaxDelay
				}
			}
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", cfg.Name, cfg.MaxRetries+1, lastErr)
}

// OnFlaky retries the named operation only while it fails with an error
// classified as retryable (external command failures, elapsed poll
// budgets, transient connection errors). Wrong-status and configuration
// errors surface immediately.
func OnFlaky(ctx context.Context, name string, operation func() error, opts ...Option) error {
	merged := append([]Option{WithName(name), WithRetryIf(odferrors.IsRetryable)}, opts...)
	return WithExponentialBackoff(ctx, operation, merged...)
}

// WithMaxRetries sets the maximum number of retries.
func WithMaxRetries(n int) Option {
	return func(c *Config) {
		c.MaxRetries = n
	}
}

// WithInitialDelay sets the initial delay between retries.
func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) {
		c.InitialDelay = d
	}
}

// WithMaxDelay sets the maximum delay between retries.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) {
		c.MaxDelay = d
	}
}

// WithMultiplier sets the backoff multiplier.
func WithMultiplier(m float64) Option {
	return func(c *Config) {
		c.Multiplier = m
	}
}

// WithName sets the operation name used in error messages.
func WithName(name string) Option {
	return func(c *Config) {
		c.Name = name
	}
}

// WithRetryIf sets a predicate deciding whether an error is retried.
func WithRetryIf(fn func(error) bool) Option {
	return func(c *Config) {
		c.RetryIf = fn
	}
}

// FatalError wraps an error to mark it as fatal (non-retryable).
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal marks an error as fatal (non-retryable).
// Operations that encounter fatal errors will not be retried.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal checks if an error is fatal (non-retryable).
func IsFatal(err error) bool {
	var fatalErr *FatalError
	return errors.As(err, &fatalErr)
}
