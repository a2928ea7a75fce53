package resilience

import (
	"context"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig controls the exponential backoff applied to network and timeout errors.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Default: 3
	MaxAttempts uint64

	// InitialInterval is the wait after the first failed attempt.
	// Default: 1 second
	InitialInterval time.Duration

	// Multiplier scales the wait after each further failure.
	// Default: 2
	Multiplier float64

	// MaxInterval caps a single wait before jitter.
	// Default: 4 seconds
	MaxInterval time.Duration

	// MaxJitter is the upper bound of random time added to each wait.
	// Default: 200ms
	MaxJitter time.Duration
}

// DefaultRetryConfig returns the fixed retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialInterval: 1 * time.Second,
		Multiplier:      2,
		MaxInterval:     4 * time.Second,
		MaxJitter:       200 * time.Millisecond,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	defaults := DefaultRetryConfig()
	if c.MaxAttempts == 0 {
		c.MaxAttempts = defaults.MaxAttempts
	}
	if c.InitialInterval == 0 {
		c.InitialInterval = defaults.InitialInterval
	}
	if c.Multiplier == 0 {
		c.Multiplier = defaults.Multiplier
	}
	if c.MaxInterval == 0 {
		c.MaxInterval = defaults.MaxInterval
	}
	return c
}

// newBackOff builds the backoff for one logical attempt. The context stops
// the sequence as soon as the request ceiling elapses.
func (c RetryConfig) newBackOff(ctx context.Context) backoff.BackOffContext {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.InitialInterval
	bo.Multiplier = c.Multiplier
	bo.MaxInterval = c.MaxInterval
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0 // Unlimited, attempts are bounded by WithMaxRetries

	var b backoff.BackOff = &jitterBackOff{BackOff: bo, maxJitter: c.MaxJitter}
	b = backoff.WithMaxRetries(b, c.MaxAttempts-1)
	return backoff.WithContext(b, ctx)
}

// jitterBackOff adds up to maxJitter of random time to every wait.
type jitterBackOff struct {
	backoff.BackOff
	maxJitter time.Duration
}

func (b *jitterBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next == backoff.Stop || b.maxJitter <= 0 {
		return next
	}
	return next + time.Duration(rand.Int64N(int64(b.maxJitter)+1))
}

// RateLimitConfig controls handling of HTTP 429 responses.
type RateLimitConfig struct {
	// DefaultRetryAfter is used when Retry-After is absent or unparsable.
	// Default: 5 seconds
	DefaultRetryAfter time.Duration
}

// DefaultRateLimitConfig returns the default rate-limit policy.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		DefaultRetryAfter: 5 * time.Second,
	}
}

// retryAfter reads a Retry-After header expressed in whole seconds.
func retryAfter(h http.Header, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(h.Get("Retry-After"))
	if value == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
