package resilience_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odaudit/odaudit/internal/provider/resilience"
)

func TestRegistry_BreakerCreatedOnFirstUse(t *testing.T) {
	registry := resilience.NewRegistry(resilience.DefaultBreakerConfig())

	assert.Empty(t, registry.EndpointNames())
	assert.Nil(t, registry.GetHealth("allergies"))

	breaker := registry.Breaker("allergies")
	require.NotNil(t, breaker)
	assert.Equal(t, "allergies", breaker.Name())
	assert.Same(t, breaker, registry.Breaker("allergies"))
	assert.Len(t, registry.EndpointNames(), 1)

	health := registry.GetHealth("allergies")
	require.NotNil(t, health)
	assert.Equal(t, "allergies", health.Name)
	assert.Equal(t, gobreaker.StateClosed, health.CircuitState)
	assert.True(t, health.IsHealthy())
	assert.False(t, health.IsDegraded())
	assert.False(t, health.IsUnhealthy())
	assert.True(t, health.CooldownUntil.IsZero())
}

func TestRegistry_RecordSuccess(t *testing.T) {
	registry := resilience.NewRegistry(resilience.DefaultBreakerConfig())
	registry.Breaker("diseases")

	health := registry.GetHealth("diseases")
	require.NotNil(t, health)
	assert.Nil(t, health.LastSuccessAt)

	registry.RecordSuccess("diseases")

	health = registry.GetHealth("diseases")
	require.NotNil(t, health)
	require.NotNil(t, health.LastSuccessAt)
	assert.WithinDuration(t, time.Now(), *health.LastSuccessAt, time.Second)
}

func TestRegistry_RecordFailure(t *testing.T) {
	registry := resilience.NewRegistry(resilience.DefaultBreakerConfig())

	registry.RecordFailure("diseases", errors.New("network error: connection failed"))

	health := registry.GetHealth("diseases")
	require.NotNil(t, health)
	require.NotNil(t, health.LastFailureAt)
	assert.WithinDuration(t, time.Now(), *health.LastFailureAt, time.Second)
	assert.Equal(t, "network error: connection failed", health.LastError)
}

func TestRegistry_GetAllHealthSorted(t *testing.T) {
	registry := resilience.NewRegistry(resilience.DefaultBreakerConfig())

	for _, name := range []string{"vital_signs", "allergies", "procedurelogs"} {
		registry.Breaker(name)
	}

	assert.Equal(t, []string{"allergies", "procedurelogs", "vital_signs"}, registry.EndpointNames())

	all := registry.GetAllHealth()
	require.Len(t, all, 3)
	assert.Equal(t, "allergies", all[0].Name)
	assert.Equal(t, "vital_signs", all[2].Name)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	registry := resilience.NewRegistry(resilience.DefaultBreakerConfig())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b := registry.Breaker("medicationpats")
			registry.RecordSuccess(b.Name())
			registry.RecordFailure(b.Name(), errors.New("boom"))
			_ = registry.GetAllHealth()
		}()
	}
	wg.Wait()

	assert.Len(t, registry.EndpointNames(), 1)
}

func TestRegistry_SharedStateAcrossClients(t *testing.T) {
	registry := resilience.NewRegistry(resilience.BreakerConfig{FailureThreshold: 1, Cooldown: time.Minute})

	first := resilience.NewClient(resilience.ClientConfig{BaseURL: "http://127.0.0.1:1", Registry: registry})
	second := resilience.NewClient(resilience.ClientConfig{BaseURL: "http://127.0.0.1:1", Registry: registry})

	_, _ = registry.Breaker("allergies").Execute(func() (*resilience.Response, error) {
		return nil, errors.New("boom")
	})

	assert.Same(t, first.Registry(), second.Registry())
	assert.True(t, second.Registry().GetHealth("allergies").IsUnhealthy())
}
