package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthAndReadinessOnFreshEngine(t *testing.T) {
	e := newTestEngine(t)

	health := e.Health()
	assert.Equal(t, "healthy", health.Status)

	readiness := e.Readiness()
	assert.Equal(t, "ready", readiness.Status)
}

func TestReadinessNotReadyWhenBreakerTripped(t *testing.T) {
	e := newTestEngine(t)

	failing := errors.New("durable tier unreachable")
	for i := 0; i < 5; i++ {
		_ = e.breaker.Execute(context.Background(), func(ctx context.Context) error {
			return failing
		})
	}

	readiness := e.Readiness()
	assert.Equal(t, "not_ready", readiness.Status)
	assert.Contains(t, readiness.Components["circuit_breaker"], "not ready")

	health := e.Health()
	assert.Equal(t, "unhealthy", health.Status)
}
