package model

import "time"

// OutcomeKind classifies the result of one fetch attempt.
type OutcomeKind string

const (
	OutcomeSuccess     OutcomeKind = "success"
	OutcomeRateLimited OutcomeKind = "rate_limited"
	OutcomeCircuitOpen OutcomeKind = "circuit_open"
	OutcomeNotFound    OutcomeKind = "not_found"
	OutcomeTransport   OutcomeKind = "transport_error"
	OutcomeHTTPError   OutcomeKind = "http_error"
	OutcomeCancelled   OutcomeKind = "cancelled"
)

// IsSuccess reports whether the kind represents a successful fetch.
func (k OutcomeKind) IsSuccess() bool { return k == OutcomeSuccess }

// FetchOutcome is an immutable record of one fetch attempt against one source.
// Created by the failover orchestrator, consumed by the pipeline monitor and
// the durable outcome archive.
type FetchOutcome struct {
	ID         string
	Source     SourceID
	Capability Capability
	Kind       OutcomeKind
	// HTTPStatus is set only for http_error outcomes.
	HTTPStatus int
	Detail     string
	Timestamp  time.Time
}

// FreshnessRecord tracks how recently a source last produced data.
type FreshnessRecord struct {
	Source        SourceID
	LastSuccess   time.Time
	LastAttempt   time.Time
	FailureStreak int
	// Totals since process start, used by the cost threshold audit.
	TotalAttempts  int64
	TotalSuccesses int64
}
