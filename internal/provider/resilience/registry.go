package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// EndpointHealth represents the health status of an upstream endpoint.
type EndpointHealth struct {
	// Name is the endpoint identifier.
	Name string

	// CircuitState is the current circuit breaker state.
	CircuitState gobreaker.State

	// Counts contains circuit breaker statistics.
	Counts gobreaker.Counts

	// CooldownUntil is when the current open period ends, if any.
	CooldownUntil time.Time

	// LastSuccessAt is the timestamp of the last successful request.
	LastSuccessAt *time.Time

	// LastFailureAt is the timestamp of the last failed request.
	LastFailureAt *time.Time

	// LastError is the most recent error message, if any.
	LastError string
}

// IsHealthy returns true if the endpoint is considered healthy.
func (h *EndpointHealth) IsHealthy() bool {
	return h.CircuitState == gobreaker.StateClosed
}

// IsDegraded returns true if the endpoint is in a degraded state (half-open).
func (h *EndpointHealth) IsDegraded() bool {
	return h.CircuitState == gobreaker.StateHalfOpen
}

// IsUnhealthy returns true if the endpoint is unhealthy (circuit open).
func (h *EndpointHealth) IsUnhealthy() bool {
	return h.CircuitState == gobreaker.StateOpen
}

// Registry owns one circuit breaker per endpoint name and tracks endpoint
// health. A registry is shared by every client that talks to the same
// upstream so breaker state persists across retrievals in one process.
type Registry struct {
	cfg BreakerConfig

	mu        sync.RWMutex
	endpoints map[string]*trackedEndpoint
}

type trackedEndpoint struct {
	breaker *Breaker

	mu            sync.Mutex
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates a new endpoint registry whose breakers use cfg.
func NewRegistry(cfg BreakerConfig) *Registry {
	return &Registry{
		cfg:       cfg,
		endpoints: make(map[string]*trackedEndpoint),
	}
}

// Breaker returns the breaker for name, creating it on first use.
func (r *Registry) Breaker(name string) *Breaker {
	return r.endpoint(name).breaker
}

func (r *Registry) endpoint(name string) *trackedEndpoint {
	r.mu.RLock()
	e, ok := r.endpoints[name]
	r.mu.RUnlock()
	if ok {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.endpoints[name]; ok {
		return e
	}
	e = &trackedEndpoint{breaker: NewBreaker(name, r.cfg)}
	r.endpoints[name] = e
	return e
}

// RecordSuccess records a successful request for an endpoint.
func (r *Registry) RecordSuccess(name string) {
	e := r.endpoint(name)
	e.mu.Lock()
	defer e.mu.Unlock()
	now := time.Now()
	e.lastSuccessAt = &now
}

// RecordFailure records a failed request for an endpoint.
func (r *Registry) RecordFailure(name string, err error) {
	e := r.endpoint(name)
	e.mu.Lock()
	defer e.mu.Unlock()
	now := time.Now()
	e.lastFailureAt = &now
	if err != nil {
		e.lastError = err.Error()
	}
}

// GetHealth returns the health status of a specific endpoint, or nil if the
// endpoint has never been used.
func (r *Registry) GetHealth(name string) *EndpointHealth {
	r.mu.RLock()
	e, ok := r.endpoints[name]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return e.health(name)
}

// GetAllHealth returns the health status of all endpoints sorted by name.
func (r *Registry) GetAllHealth() []*EndpointHealth {
	names := r.EndpointNames()
	health := make([]*EndpointHealth, 0, len(names))
	for _, name := range names {
		if h := r.GetHealth(name); h != nil {
			health = append(health, h)
		}
	}
	return health
}

// EndpointNames returns the sorted names of all known endpoints.
func (r *Registry) EndpointNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *trackedEndpoint) health(name string) *EndpointHealth {
	e.mu.Lock()
	defer e.mu.Unlock()
	return &EndpointHealth{
		Name:          name,
		CircuitState:  e.breaker.State(),
		Counts:        e.breaker.Counts(),
		CooldownUntil: e.breaker.CooldownUntil(),
		LastSuccessAt: e.lastSuccessAt,
		LastFailureAt: e.lastFailureAt,
		LastError:     e.lastError,
	}
}
