package model

import "time"

// CircuitState is the per-source breaker state.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// BreakerMetrics is a point-in-time snapshot of one source's breaker,
// exposed through the service health endpoint.
type BreakerMetrics struct {
	Source       SourceID
	State        CircuitState
	FailureCount int
	SuccessCount int
	LastFailure  time.Time
	OpenedAt     time.Time
}

// CircuitBrokenEvent is mirrored to the state store when a breaker opens.
type CircuitBrokenEvent struct {
	Source   SourceID
	Failures int
	OpenedAt time.Time
}

// CircuitRecoveredEvent is mirrored when a breaker closes after half-open
// probing.
type CircuitRecoveredEvent struct {
	Source      SourceID
	ProbeCount  int
	RecoverTime time.Duration
}
