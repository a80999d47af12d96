// Package retry runs an operation again with capped exponential backoff.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Config describes how often and how patiently an operation is retried.
type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	JitterFactor   float64
	// Retryable reports whether err is worth another attempt. Nil retries every error.
	Retryable func(error) bool
	// OnRetry runs before each wait with the number of the attempt that failed.
	OnRetry func(attempt int, err error, wait time.Duration)
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 10 * time.Second
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	if c.JitterFactor <= 0 {
		c.JitterFactor = 0.2
	}
	return c
}

// Backoff is the un-jittered wait after the given failed attempt (1-based).
func (c Config) Backoff(attempt int) time.Duration {
	c = c.withDefaults()
	wait := c.InitialBackoff
	for i := 1; i < attempt && wait < c.MaxBackoff; i++ {
		wait *= 2
	}
	if wait > c.MaxBackoff {
		wait = c.MaxBackoff
	}
	return wait
}

func (c Config) retryable(err error) bool {
	return c.Retryable == nil || c.Retryable(err)
}

// Do calls fn until it succeeds, returns a non-retryable error, runs out of
// attempts or ctx is done. The last error from fn is returned.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	cfg = cfg.withDefaults()

	var lastErr error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return errors.Join(lastErr, err)
			}
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt >= cfg.MaxAttempts || !cfg.retryable(lastErr) {
			return lastErr
		}

		wait := jitter(cfg.Backoff(attempt), cfg.JitterFactor)
		if wait > cfg.MaxBackoff {
			wait = cfg.MaxBackoff
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, lastErr, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(lastErr, ctx.Err())
		case <-timer.C:
		}
	}
}

func jitter(d time.Duration, factor float64) time.Duration {
	delta := int64(float64(d) * factor)
	if delta <= 0 {
		return d
	}
	return d + time.Duration(rand.Int63n(2*delta)-delta)
}
