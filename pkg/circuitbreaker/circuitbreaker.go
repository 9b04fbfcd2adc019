/*
Package circuitbreaker wraps sony/gobreaker to shield the durable storage
tier from repeated failures. It exposes the Closed/Open/HalfOpen state
machine from the memory engine's storage contract directly, rather than
gobreaker's generic counts, so callers and metrics can report on it without
reaching into the underlying library's types.
*/
package circuitbreaker

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/cuemby/memoryengine/pkg/memerr"
	"github.com/cuemby/memoryengine/pkg/metrics"
)

// State mirrors the three states a caller cares about.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Config controls the failure_threshold / open_timeout / half_open_probes
// contract.
type Config struct {
	// Name identifies the protected resource in metrics (e.g. "durable").
	Name string
	// FailureThreshold is the number of consecutive failures in Closed
	// that trips the breaker open.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays Open before admitting
	// probes in HalfOpen.
	OpenTimeout time.Duration
	// HalfOpenProbes is the number of consecutive successes required in
	// HalfOpen to close the breaker, and also the max concurrent probes
	// admitted while HalfOpen.
	HalfOpenProbes uint32
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.OpenTimeout == 0 {
		c.OpenTimeout = 30 * time.Second
	}
	if c.HalfOpenProbes == 0 {
		c.HalfOpenProbes = 3
	}
	if c.Name == "" {
		c.Name = "durable"
	}
	return c
}

// Breaker fail-fast wraps calls against the durable tier.
type Breaker struct {
	cfg Config
	cb  *gobreaker.CircuitBreaker[any]
}

// New builds a breaker per cfg. Consecutive successes in Closed reset the
// failure counter, consecutive failures trip it; gobreaker's ReadyToTrip
// and interval-free Settings give us exactly that consecutive-count
// semantics when Interval is left at zero (counts never reset on a timer,
// only on a state change).
func New(cfg Config) *Breaker {
	cfg = cfg.withDefaults()
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenProbes,
		Interval:    0,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateGauge(toState(to)))
		},
	}
	return &Breaker{cfg: cfg, cb: gobreaker.NewCircuitBreaker[any](settings)}
}

func stateGauge(s State) float64 {
	switch s {
	case StateOpen:
		return 1
	case StateHalfOpen:
		return 0.5
	default:
		return 0
	}
}

func toState(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// State reports the breaker's current state.
func (b *Breaker) State() State { return toState(b.cb.State()) }

// Execute runs fn if the breaker is Closed or admitting a HalfOpen probe;
// otherwise it returns CircuitOpen without calling fn. Any error returned
// by fn (including context deadline/cancellation) counts as a failure.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn(ctx)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return memerr.CircuitOpen()
	}
	return err
}

// Counts exposes the raw consecutive success/failure counters for
// diagnostics and the engine's status summary.
func (b *Breaker) Counts() (successes, failures uint32) {
	c := b.cb.Counts()
	return c.ConsecutiveSuccesses, c.ConsecutiveFailures
}
