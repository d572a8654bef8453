package biz

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ScoutFeed/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(t *testing.T) (*CircuitBreaker, *mockStateMirror) {
	t.Helper()
	mirror := &mockStateMirror{}
	cb := NewCircuitBreaker(mirror, testLogger())
	cb.Register(&model.Source{
		ID: "fangraphs",
		Breaker: model.BreakerConfig{
			FailureThreshold: 3,
			RecoveryTimeout:  5 * time.Minute,
			SuccessThreshold: 2,
		},
	})
	return cb, mirror
}

func failingOp(err error) Operation {
	return func(ctx context.Context) (any, error) { return nil, err }
}

func succeedingOp(result any) Operation {
	return func(ctx context.Context) (any, error) { return result, nil }
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb, mirror := newTestBreaker(t)
	ctx := context.Background()
	transportErr := errors.New("connection refused")

	for i := 0; i < 2; i++ {
		_, err := cb.Call(ctx, "fangraphs", failingOp(transportErr))
		assert.Equal(t, transportErr, err)
		assert.False(t, cb.IsOpen("fangraphs"))
	}

	// Third consecutive failure crosses the threshold.
	_, err := cb.Call(ctx, "fangraphs", failingOp(transportErr))
	assert.Equal(t, transportErr, err)
	assert.True(t, cb.IsOpen("fangraphs"))
	assert.Equal(t, 1, mirror.brokenCount())

	// While open the wrapped call is never invoked.
	invoked := false
	_, err = cb.Call(ctx, "fangraphs", func(ctx context.Context) (any, error) {
		invoked = true
		return nil, nil
	})
	var openErr *model.CircuitOpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, model.SourceID("fangraphs"), openErr.Source)
	assert.Greater(t, openErr.RetryAfter, time.Duration(0))
	assert.False(t, invoked)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(t)
	ctx := context.Background()
	transportErr := errors.New("connection refused")

	_, _ = cb.Call(ctx, "fangraphs", failingOp(transportErr))
	_, _ = cb.Call(ctx, "fangraphs", failingOp(transportErr))

	result, err := cb.Call(ctx, "fangraphs", succeedingOp("ok"))
	require.NoError(t, err)
	assert.Equal(t, "ok", result)

	// The streak restarted, so two more failures do not open the breaker.
	_, _ = cb.Call(ctx, "fangraphs", failingOp(transportErr))
	_, _ = cb.Call(ctx, "fangraphs", failingOp(transportErr))
	assert.False(t, cb.IsOpen("fangraphs"))

	metrics, err := cb.Metrics("fangraphs")
	require.NoError(t, err)
	assert.Equal(t, model.CircuitClosed, metrics.State)
	assert.Equal(t, 2, metrics.FailureCount)
}

func TestCircuitBreaker_NotFoundDoesNotCount(t *testing.T) {
	cb, _ := newTestBreaker(t)
	ctx := context.Background()
	notFound := &model.NotFoundError{Source: "fangraphs", Detail: "player 12345"}

	for i := 0; i < 10; i++ {
		_, err := cb.Call(ctx, "fangraphs", failingOp(notFound))
		assert.Equal(t, notFound, err)
	}

	assert.False(t, cb.IsOpen("fangraphs"))
	metrics, err := cb.Metrics("fangraphs")
	require.NoError(t, err)
	assert.Equal(t, 0, metrics.FailureCount)
}

func TestCircuitBreaker_CancellationIsNeutral(t *testing.T) {
	cb, _ := newTestBreaker(t)

	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 5; i++ {
		_, err := cb.Call(ctx, "fangraphs", func(ctx context.Context) (any, error) {
			cancel()
			return nil, ctx.Err()
		})
		assert.ErrorIs(t, err, context.Canceled)
		ctx, cancel = context.WithCancel(context.Background())
	}
	cancel()

	assert.False(t, cb.IsOpen("fangraphs"))
	metrics, err := cb.Metrics("fangraphs")
	require.NoError(t, err)
	assert.Equal(t, 0, metrics.FailureCount)
}

func TestCircuitBreaker_ProviderTimeoutCounts(t *testing.T) {
	cb, _ := newTestBreaker(t)
	ctx := context.Background()
	// An http.Client timeout surfaces as a wrapped context.DeadlineExceeded
	// while the caller's context stays live. That is a provider failure,
	// not a cancellation.
	timeoutErr := fmt.Errorf("Get \"https://fangraphs.test/prospects\": %w", context.DeadlineExceeded)

	for i := 0; i < 3; i++ {
		_, err := cb.Call(ctx, "fangraphs", failingOp(timeoutErr))
		assert.Equal(t, timeoutErr, err)
	}

	assert.True(t, cb.IsOpen("fangraphs"))
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb, mirror := newTestBreaker(t)
	ctx := context.Background()
	transportErr := errors.New("connection refused")

	current := time.Now()
	cb.now = func() time.Time { return current }

	for i := 0; i < 3; i++ {
		_, _ = cb.Call(ctx, "fangraphs", failingOp(transportErr))
	}
	require.True(t, cb.IsOpen("fangraphs"))

	// Within the cooldown the breaker still rejects.
	current = current.Add(time.Minute)
	_, err := cb.Call(ctx, "fangraphs", succeedingOp("ok"))
	var openErr *model.CircuitOpenError
	require.ErrorAs(t, err, &openErr)

	// After the cooldown the next call becomes the probe. Two successes
	// are required before the breaker closes again.
	current = current.Add(5 * time.Minute)
	assert.False(t, cb.IsOpen("fangraphs"))

	result, err := cb.Call(ctx, "fangraphs", succeedingOp("probe-1"))
	require.NoError(t, err)
	assert.Equal(t, "probe-1", result)

	metrics, err := cb.Metrics("fangraphs")
	require.NoError(t, err)
	assert.Equal(t, model.CircuitHalfOpen, metrics.State)

	_, err = cb.Call(ctx, "fangraphs", succeedingOp("probe-2"))
	require.NoError(t, err)

	metrics, err = cb.Metrics("fangraphs")
	require.NoError(t, err)
	assert.Equal(t, model.CircuitClosed, metrics.State)
	assert.Equal(t, 1, mirror.recoveredCount())
}

func TestCircuitBreaker_ProbeFailureReopens(t *testing.T) {
	cb, mirror := newTestBreaker(t)
	ctx := context.Background()
	transportErr := errors.New("connection refused")

	current := time.Now()
	cb.now = func() time.Time { return current }

	for i := 0; i < 3; i++ {
		_, _ = cb.Call(ctx, "fangraphs", failingOp(transportErr))
	}
	require.True(t, cb.IsOpen("fangraphs"))

	current = current.Add(6 * time.Minute)
	_, err := cb.Call(ctx, "fangraphs", failingOp(transportErr))
	assert.Equal(t, transportErr, err)

	assert.True(t, cb.IsOpen("fangraphs"))
	assert.Equal(t, 2, mirror.brokenCount())
}

func TestCircuitBreaker_SingleProbeInHalfOpen(t *testing.T) {
	cb, _ := newTestBreaker(t)
	ctx := context.Background()
	transportErr := errors.New("connection refused")

	current := time.Now()
	cb.now = func() time.Time { return current }

	for i := 0; i < 3; i++ {
		_, _ = cb.Call(ctx, "fangraphs", failingOp(transportErr))
	}
	current = current.Add(6 * time.Minute)

	// Hold the probe in flight while a second caller arrives.
	release := make(chan struct{})
	probeStarted := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := cb.Call(ctx, "fangraphs", func(ctx context.Context) (any, error) {
			close(probeStarted)
			<-release
			return "ok", nil
		})
		done <- err
	}()

	<-probeStarted
	_, err := cb.Call(ctx, "fangraphs", succeedingOp("ok"))
	var openErr *model.CircuitOpenError
	assert.ErrorAs(t, err, &openErr)

	close(release)
	require.NoError(t, <-done)
}

func TestCircuitBreaker_ResetForcesClosed(t *testing.T) {
	cb, _ := newTestBreaker(t)
	ctx := context.Background()
	transportErr := errors.New("connection refused")

	for i := 0; i < 3; i++ {
		_, _ = cb.Call(ctx, "fangraphs", failingOp(transportErr))
	}
	require.True(t, cb.IsOpen("fangraphs"))

	require.NoError(t, cb.Reset("fangraphs"))
	assert.False(t, cb.IsOpen("fangraphs"))

	metrics, err := cb.Metrics("fangraphs")
	require.NoError(t, err)
	assert.Equal(t, model.CircuitClosed, metrics.State)
	assert.Equal(t, 0, metrics.FailureCount)

	// Resetting a closed breaker is a no-op with the same end state.
	require.NoError(t, cb.Reset("fangraphs"))
	assert.False(t, cb.IsOpen("fangraphs"))
}

func TestCircuitBreaker_UnknownSource(t *testing.T) {
	cb, _ := newTestBreaker(t)

	_, err := cb.Call(context.Background(), "nonexistent", succeedingOp("ok"))
	assert.ErrorIs(t, err, model.ErrUnknownSource)

	assert.ErrorIs(t, cb.Reset("nonexistent"), model.ErrUnknownSource)

	_, err = cb.Metrics("nonexistent")
	assert.ErrorIs(t, err, model.ErrUnknownSource)
}

func TestCircuitBreaker_IndependentPerSource(t *testing.T) {
	mirror := &mockStateMirror{}
	cb := NewCircuitBreaker(mirror, testLogger())
	for _, id := range []model.SourceID{"fangraphs", "mlb_statsapi"} {
		cb.Register(&model.Source{
			ID: id,
			Breaker: model.BreakerConfig{
				FailureThreshold: 2,
				RecoveryTimeout:  time.Minute,
				SuccessThreshold: 1,
			},
		})
	}
	ctx := context.Background()
	transportErr := errors.New("connection refused")

	_, _ = cb.Call(ctx, "fangraphs", failingOp(transportErr))
	_, _ = cb.Call(ctx, "fangraphs", failingOp(transportErr))

	assert.True(t, cb.IsOpen("fangraphs"))
	assert.False(t, cb.IsOpen("mlb_statsapi"))

	result, err := cb.Call(ctx, "mlb_statsapi", succeedingOp("ok"))
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}
