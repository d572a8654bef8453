// Package model holds the domain types shared between the biz and data layers.
package model

import (
	"context"
	"time"
)

// SourceID identifies one external data provider.
type SourceID string

// Capability names an operation one or more sources can serve,
// e.g. "top_prospects". Failover happens between sources sharing a capability.
type Capability string

func (s SourceID) String() string   { return string(s) }
func (c Capability) String() string { return string(c) }

// FetchArgs carries the opaque arguments of a fetch call through to the
// provider's fetch function. The core never inspects them.
type FetchArgs map[string]string

// FetchFunc performs one call against a provider for the named capability
// and returns its raw result. Payload parsing is the integration's concern,
// not the core's.
type FetchFunc func(ctx context.Context, capability Capability, args FetchArgs) (any, error)

// FailureClassifier decides whether an error from a fetch function counts
// against the source's circuit breaker. Not-found style errors must return
// false: they are valid negative results, not provider malfunctions.
type FailureClassifier func(err error) bool

// RateLimitConfig is the per-source spacing configuration.
// MaxCalls calls per Period translates to a minimum inter-dispatch gap of
// Period/MaxCalls.
type RateLimitConfig struct {
	MaxCalls int
	Period   time.Duration
}

// MinInterval returns the minimum spacing between two dispatches.
func (c RateLimitConfig) MinInterval() time.Duration {
	if c.MaxCalls <= 0 {
		return c.Period
	}
	return c.Period / time.Duration(c.MaxCalls)
}

// BreakerConfig is the per-source circuit breaker tuning.
type BreakerConfig struct {
	// FailureThreshold consecutive classified failures open the breaker.
	FailureThreshold int
	// RecoveryTimeout is the cooldown before a single probe is let through.
	RecoveryTimeout time.Duration
	// SuccessThreshold consecutive half-open successes re-close the breaker.
	SuccessThreshold int
}

// Source describes one registered external data provider. Sources are
// registered once at startup and immutable thereafter; the failover
// orchestrator owns the registry.
type Source struct {
	ID           SourceID
	Capabilities []Capability
	Fetch        FetchFunc
	RateLimit    RateLimitConfig
	Breaker      BreakerConfig
	// Classify overrides the default failure classification when set.
	Classify FailureClassifier

	// Compliance metadata audited by the scheduler.
	Attribution   string
	TermsAccepted bool
	CostPerCall   float64
}

// HasCapability reports whether the source serves the named capability.
func (s *Source) HasCapability(c Capability) bool {
	for _, have := range s.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}
