package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinel errors for registry and schedule lookups. Lookup misses are
// explicit errors, never silent nils.
var (
	ErrUnknownSource     = errors.New("unknown source")
	ErrUnknownCapability = errors.New("unknown capability")
	ErrUnknownCheck      = errors.New("unknown check")
)

// NotFoundError marks a valid negative result from a provider. It does not
// count against the circuit breaker.
type NotFoundError struct {
	Source SourceID
	Detail string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found at %s: %s", e.Source, e.Detail)
}

// ProviderRateLimitedError reports that the provider refused service with a
// rate limit response. It counts against the breaker.
type ProviderRateLimitedError struct {
	Source     SourceID
	RetryAfter time.Duration
}

func (e *ProviderRateLimitedError) Error() string {
	return fmt.Sprintf("provider %s rate limited (retry after %s)", e.Source, e.RetryAfter)
}

// HTTPStatusError reports a non-2xx provider response that is neither a 404
// nor a 429.
type HTTPStatusError struct {
	Source SourceID
	Status int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("provider %s returned HTTP %d", e.Source, e.Status)
}

// CircuitOpenError is the local short-circuit signal: the wrapped call was
// never invoked. It is never counted as a new failure.
type CircuitOpenError struct {
	Source     SourceID
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open for %s (retry after %s)", e.Source, e.RetryAfter)
}

// SourceFailure is one per-source reason inside an ExhaustedError.
type SourceFailure struct {
	Source SourceID
	Kind   OutcomeKind
	Reason string
}

// ExhaustedError is returned by Fetch only after every registered source for
// the capability has failed or was open. It carries the per-source reasons
// for diagnosis.
type ExhaustedError struct {
	Capability Capability
	Failures   []SourceFailure
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d sources exhausted for capability %q", len(e.Failures), e.Capability)
}

// ClassifyError maps a fetch error to its outcome kind. Context errors are
// not special-cased here: a provider-side timeout surfaces as
// deadline-exceeded too, so attributing cancellation to the caller is
// ClassifyOutcome's job.
func ClassifyError(err error) OutcomeKind {
	if err == nil {
		return OutcomeSuccess
	}
	var (
		notFound    *NotFoundError
		rateLimited *ProviderRateLimitedError
		httpErr     *HTTPStatusError
		circuitOpen *CircuitOpenError
	)
	switch {
	case errors.As(err, &notFound):
		return OutcomeNotFound
	case errors.As(err, &rateLimited):
		return OutcomeRateLimited
	case errors.As(err, &circuitOpen):
		return OutcomeCircuitOpen
	case errors.As(err, &httpErr):
		return OutcomeHTTPError
	default:
		return OutcomeTransport
	}
}

// ClassifyOutcome maps a fetch error to its outcome kind, attributing
// cancellation to the caller: an error is Cancelled only when the caller's
// own context is done. A provider timeout also carries deadline-exceeded but
// leaves the caller's context live, so it classifies as a transport failure.
func ClassifyOutcome(ctx context.Context, err error) OutcomeKind {
	if err != nil && ctx.Err() != nil {
		return OutcomeCancelled
	}
	return ClassifyError(err)
}

// DefaultClassifier is the failure classification applied when a source does
// not supply its own: transport errors, timeouts, provider rate limits and
// 5xx count as failures; not-found does not. Caller cancellation never
// reaches the classifier, the breaker filters it on the context first.
func DefaultClassifier(err error) bool {
	switch ClassifyError(err) {
	case OutcomeSuccess, OutcomeNotFound, OutcomeCircuitOpen:
		return false
	default:
		return true
	}
}

// ErrorFromStatus converts a provider HTTP status into the matching domain
// error, or nil for 2xx.
func ErrorFromStatus(source SourceID, status int, detail string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return &NotFoundError{Source: source, Detail: detail}
	case status == http.StatusTooManyRequests:
		return &ProviderRateLimitedError{Source: source, RetryAfter: time.Minute}
	default:
		return &HTTPStatusError{Source: source, Status: status}
	}
}
