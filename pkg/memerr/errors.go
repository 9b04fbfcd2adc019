// Package memerr defines the closed set of error kinds the memory engine
// returns. Every fallible operation returns one of these wrapped in an
// *Error rather than an ad-hoc error string, so callers can branch on Kind
// with errors.As instead of matching messages.
package memerr

import (
	"errors"
	"fmt"
)

// Kind enumerates the categorized error conditions the engine can surface.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindCycleDetected     Kind = "cycle_detected"
	KindCapacityExceeded  Kind = "capacity_exceeded"
	KindLowQuality        Kind = "low_quality"
	KindStorageUnavailable Kind = "storage_unavailable"
	KindCircuitOpen       Kind = "circuit_open"
	KindPoolExhausted     Kind = "pool_exhausted"
	KindTimeout           Kind = "timeout"
	KindQueueFull         Kind = "queue_full"
	KindInvalidInput      Kind = "invalid_input"
	KindInvalidBatch      Kind = "invalid_batch"
	KindSerialization     Kind = "serialization"
	KindInternalInvariant Kind = "internal_invariant"
)

// Error is the single concrete error type returned by the engine. Entity/ID
// and Field/Reason are populated selectively depending on Kind.
type Error struct {
	Kind   Kind
	Entity string
	ID     string
	Field  string
	Reason string
	Tier   string
	MS     int64
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
	case KindConflict:
		return fmt.Sprintf("%s conflict on %s: %s", e.Entity, e.ID, e.Reason)
	case KindCycleDetected:
		return fmt.Sprintf("cycle detected adding edge %s", e.ID)
	case KindCapacityExceeded:
		return fmt.Sprintf("capacity exceeded for %s", e.Entity)
	case KindLowQuality:
		return fmt.Sprintf("episode quality too low: %s", e.Reason)
	case KindStorageUnavailable:
		return fmt.Sprintf("storage unavailable: tier=%s", e.Tier)
	case KindCircuitOpen:
		return "circuit breaker open"
	case KindPoolExhausted:
		return "connection pool exhausted"
	case KindTimeout:
		return fmt.Sprintf("operation timed out after %dms", e.MS)
	case KindQueueFull:
		return "extraction queue full"
	case KindInvalidInput:
		return fmt.Sprintf("invalid input: field=%s reason=%s", e.Field, e.Reason)
	case KindInvalidBatch:
		return fmt.Sprintf("invalid batch: %s", e.Reason)
	case KindSerialization:
		return fmt.Sprintf("serialization error: %s", e.Reason)
	case KindInternalInvariant:
		return fmt.Sprintf("internal invariant violated: %s", e.Reason)
	default:
		return fmt.Sprintf("memory engine error: %s", e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, memerr.NotFound("", "")) style matching against
// another *Error by comparing Kind alone (ID/Entity/Reason are context, not
// identity). To test a bare Kind, use KindIs.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

func NotFound(entity, id string) error {
	return &Error{Kind: KindNotFound, Entity: entity, ID: id}
}

func Conflict(entity, id, reason string) error {
	return &Error{Kind: KindConflict, Entity: entity, ID: id, Reason: reason}
}

func CycleDetected(edge string) error {
	return &Error{Kind: KindCycleDetected, ID: edge}
}

func CapacityExceeded(kind string) error {
	return &Error{Kind: KindCapacityExceeded, Entity: kind}
}

func LowQuality(score, threshold float64) error {
	return &Error{Kind: KindLowQuality, Reason: fmt.Sprintf("score=%.3f threshold=%.3f", score, threshold)}
}

func StorageUnavailable(tier string, cause error) error {
	return &Error{Kind: KindStorageUnavailable, Tier: tier, Err: cause}
}

func CircuitOpen() error {
	return &Error{Kind: KindCircuitOpen}
}

func PoolExhausted() error {
	return &Error{Kind: KindPoolExhausted}
}

func Timeout(ms int64) error {
	return &Error{Kind: KindTimeout, MS: ms}
}

func QueueFull() error {
	return &Error{Kind: KindQueueFull}
}

func InvalidInput(field, reason string) error {
	return &Error{Kind: KindInvalidInput, Field: field, Reason: reason}
}

func InvalidBatch(reason string) error {
	return &Error{Kind: KindInvalidBatch, Reason: reason}
}

func Serialization(reason string, cause error) error {
	return &Error{Kind: KindSerialization, Reason: reason, Err: cause}
}

func InternalInvariant(reason string) error {
	return &Error{Kind: KindInternalInvariant, Reason: reason}
}

// Of reports the Kind of err if it is (or wraps) an *Error.
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// KindIs reports whether err is categorized as kind.
func KindIs(err error, kind Kind) bool {
	k, ok := Of(err)
	return ok && k == kind
}
