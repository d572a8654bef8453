package model

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want OutcomeKind
	}{
		{"nil is success", nil, OutcomeSuccess},
		{"context canceled", context.Canceled, OutcomeTransport},
		{"deadline exceeded", context.DeadlineExceeded, OutcomeTransport},
		{"not found", &NotFoundError{Source: "fangraphs"}, OutcomeNotFound},
		{"provider rate limited", &ProviderRateLimitedError{Source: "fangraphs"}, OutcomeRateLimited},
		{"circuit open", &CircuitOpenError{Source: "fangraphs"}, OutcomeCircuitOpen},
		{"http status", &HTTPStatusError{Source: "fangraphs", Status: 502}, OutcomeHTTPError},
		{"plain transport error", errors.New("connection refused"), OutcomeTransport},
		{"wrapped not found", fmt.Errorf("fetch: %w", &NotFoundError{Source: "fangraphs"}), OutcomeNotFound},
		{"wrapped deadline", fmt.Errorf("fetch: %w", context.DeadlineExceeded), OutcomeTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

func TestClassifyOutcome(t *testing.T) {
	t.Run("caller cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.Equal(t, OutcomeCancelled, ClassifyOutcome(ctx, ctx.Err()))
	})

	t.Run("provider timeout with live caller", func(t *testing.T) {
		err := fmt.Errorf("fetch: %w", context.DeadlineExceeded)
		assert.Equal(t, OutcomeTransport, ClassifyOutcome(context.Background(), err))
	})

	t.Run("nil error is success", func(t *testing.T) {
		assert.Equal(t, OutcomeSuccess, ClassifyOutcome(context.Background(), nil))
	})

	t.Run("not found with live caller", func(t *testing.T) {
		err := &NotFoundError{Source: "fangraphs"}
		assert.Equal(t, OutcomeNotFound, ClassifyOutcome(context.Background(), err))
	})
}

func TestDefaultClassifier(t *testing.T) {
	assert.False(t, DefaultClassifier(nil))
	assert.False(t, DefaultClassifier(&NotFoundError{Source: "fangraphs"}))
	assert.False(t, DefaultClassifier(&CircuitOpenError{Source: "fangraphs"}))

	assert.True(t, DefaultClassifier(context.DeadlineExceeded))
	assert.True(t, DefaultClassifier(errors.New("connection refused")))
	assert.True(t, DefaultClassifier(&ProviderRateLimitedError{Source: "fangraphs"}))
	assert.True(t, DefaultClassifier(&HTTPStatusError{Source: "fangraphs", Status: 500}))
}

func TestErrorFromStatus(t *testing.T) {
	assert.NoError(t, ErrorFromStatus("fangraphs", 200, ""))
	assert.NoError(t, ErrorFromStatus("fangraphs", 204, ""))

	var notFound *NotFoundError
	assert.ErrorAs(t, ErrorFromStatus("fangraphs", 404, "/players/1"), &notFound)
	assert.Equal(t, SourceID("fangraphs"), notFound.Source)

	var rateLimited *ProviderRateLimitedError
	assert.ErrorAs(t, ErrorFromStatus("fangraphs", 429, ""), &rateLimited)

	var httpErr *HTTPStatusError
	assert.ErrorAs(t, ErrorFromStatus("fangraphs", 503, ""), &httpErr)
	assert.Equal(t, 503, httpErr.Status)
	assert.ErrorAs(t, ErrorFromStatus("fangraphs", 401, ""), &httpErr)
}

func TestRateLimitConfig_MinInterval(t *testing.T) {
	assert.Equal(t, 2*time.Second, RateLimitConfig{MaxCalls: 1, Period: 2 * time.Second}.MinInterval())
	assert.Equal(t, 500*time.Millisecond, RateLimitConfig{MaxCalls: 2, Period: time.Second}.MinInterval())
	assert.Equal(t, time.Minute, RateLimitConfig{MaxCalls: 0, Period: time.Minute}.MinInterval())
}

func TestExhaustedError_Message(t *testing.T) {
	err := &ExhaustedError{
		Capability: "top_prospects",
		Failures: []SourceFailure{
			{Source: "fangraphs", Kind: OutcomeTransport, Reason: "connection refused"},
			{Source: "mlb_statsapi", Kind: OutcomeCircuitOpen, Reason: "circuit open, source skipped"},
		},
	}
	assert.Contains(t, err.Error(), "top_prospects")
	assert.Contains(t, err.Error(), "2")
}

func TestSourceHasCapability(t *testing.T) {
	src := &Source{
		ID:           "fangraphs",
		Capabilities: []Capability{"top_prospects", "player_stats"},
	}
	assert.True(t, src.HasCapability("top_prospects"))
	assert.False(t, src.HasCapability("schedule"))
}
