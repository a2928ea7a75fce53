// Package resilience provides the transport used for upstream endpoint calls:
// a shared HTTP client with fixed timeouts, per-endpoint circuit breakers,
// exponential retry on transient errors and one-shot rate-limit handling.
package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig holds configuration for a per-endpoint circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	// Default: 5
	FailureThreshold uint32

	// Cooldown is the period of open state before a single half-open trial call is allowed.
	// Default: 60 seconds
	Cooldown time.Duration

	// OnStateChange is called when a breaker changes state.
	// It runs while the breaker holds its lock and must not call back into it.
	OnStateChange func(endpoint string, from gobreaker.State, to gobreaker.State)
}

// DefaultBreakerConfig returns the default breaker thresholds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		Cooldown:         60 * time.Second,
	}
}

// Breaker gates calls to a single endpoint.
type Breaker struct {
	name     string
	cooldown time.Duration
	cb       *gobreaker.CircuitBreaker[*Response]

	mu       sync.Mutex
	openedAt time.Time
}

// NewBreaker creates a circuit breaker for the named endpoint.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	defaults := DefaultBreakerConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = defaults.FailureThreshold
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = defaults.Cooldown
	}

	b := &Breaker{
		name:     name,
		cooldown: cfg.Cooldown,
	}

	threshold := cfg.FailureThreshold
	b.cb = gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name: name,
		// A single trial call is admitted while half-open.
		MaxRequests: 1,
		Interval:    0,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			b.recordTransition(to)
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from, to)
			}
		},
	})

	return b
}

// Execute runs fn if the circuit admits the call. Any error returned by fn is
// counted as a failure and returned unchanged. A rejected call returns a
// *CircuitOpenError without invoking fn.
func (b *Breaker) Execute(fn func() (*Response, error)) (*Response, error) {
	resp, err := b.cb.Execute(fn)
	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		return nil, &CircuitOpenError{Endpoint: b.name, Until: b.CooldownUntil()}
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, &CircuitOpenError{Endpoint: b.name, HalfOpen: true}
	}
	return resp, err
}

// Name returns the endpoint name the breaker guards.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current circuit state. An open circuit whose cooldown has
// elapsed reports half-open.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Counts returns the current failure/success counters.
func (b *Breaker) Counts() gobreaker.Counts {
	return b.cb.Counts()
}

// CooldownUntil returns when the current open period ends, or the zero time
// if the circuit has not been opened since it last closed.
func (b *Breaker) CooldownUntil() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openedAt.IsZero() {
		return time.Time{}
	}
	return b.openedAt.Add(b.cooldown)
}

func (b *Breaker) recordTransition(to gobreaker.State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch to {
	case gobreaker.StateOpen:
		b.openedAt = time.Now()
	case gobreaker.StateClosed:
		b.openedAt = time.Time{}
	}
}
