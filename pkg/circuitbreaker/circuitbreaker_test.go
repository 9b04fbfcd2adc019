package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/memoryengine/pkg/memerr"
)

func TestExecuteReturnsUnderlyingErrorWhenClosed(t *testing.T) {
	b := New(Config{})
	boom := errors.New("boom")
	err := b.Execute(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateClosed, b.State())
}

func TestExecuteSucceedsWhenClosed(t *testing.T) {
	b := New(Config{})
	err := b.Execute(context.Background(), func(context.Context) error { return nil })
	require.NoError(t, err)
}

func TestExecuteTripsOpenAfterConsecutiveFailures(t *testing.T) {
	b := New(Config{FailureThreshold: 2, OpenTimeout: time.Hour})
	boom := errors.New("boom")

	_ = b.Execute(context.Background(), func(context.Context) error { return boom })
	_ = b.Execute(context.Background(), func(context.Context) error { return boom })
	assert.Equal(t, StateOpen, b.State())

	err := b.Execute(context.Background(), func(context.Context) error { return nil })
	assert.True(t, memerr.KindIs(err, memerr.KindCircuitOpen))
}

func TestExecuteClosesAgainAfterHalfOpenProbesSucceed(t *testing.T) {
	b := New(Config{FailureThreshold: 1, OpenTimeout: 10 * time.Millisecond, HalfOpenProbes: 2})
	boom := errors.New("boom")

	_ = b.Execute(context.Background(), func(context.Context) error { return boom })
	require.Equal(t, StateOpen, b.State())

	time.Sleep(20 * time.Millisecond)

	require.NoError(t, b.Execute(context.Background(), func(context.Context) error { return nil }))
	require.NoError(t, b.Execute(context.Background(), func(context.Context) error { return nil }))
	assert.Equal(t, StateClosed, b.State())
}

func TestCountsReflectConsecutiveOutcomes(t *testing.T) {
	b := New(Config{})
	require.NoError(t, b.Execute(context.Background(), func(context.Context) error { return nil }))
	require.NoError(t, b.Execute(context.Background(), func(context.Context) error { return nil }))

	successes, failures := b.Counts()
	assert.Equal(t, uint32(2), successes)
	assert.Equal(t, uint32(0), failures)
}
