package biz

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"ScoutFeed/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, period time.Duration) *RateLimiter {
	t.Helper()
	l := NewRateLimiter(testLogger())
	l.Register(&model.Source{
		ID:        "fangraphs",
		RateLimit: model.RateLimitConfig{MaxCalls: 1, Period: period},
	})
	return l
}

func TestRateLimiter_EnforcesMinimumSpacing(t *testing.T) {
	l := newTestLimiter(t, 30*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.AwaitPermit(ctx, "fangraphs"))
	}
	elapsed := time.Since(start)

	// First permit is immediate, the next two each wait a full interval.
	assert.GreaterOrEqual(t, elapsed, 55*time.Millisecond)
}

func TestRateLimiter_ConcurrentWaitersStaySpaced(t *testing.T) {
	const (
		waiters  = 5
		interval = 30 * time.Millisecond
	)
	l := newTestLimiter(t, interval)
	ctx := context.Background()

	var (
		mu     sync.Mutex
		stamps []time.Time
		wg     sync.WaitGroup
	)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, l.AwaitPermit(ctx, "fangraphs"))
			now := time.Now()
			mu.Lock()
			stamps = append(stamps, now)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, stamps, waiters)
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })

	// Consecutive dispatches keep at least the configured spacing no matter
	// how many callers are waiting. The small epsilon absorbs timestamping
	// jitter between the permit and the clock read.
	const epsilon = 10 * time.Millisecond
	for i := 1; i < len(stamps); i++ {
		gap := stamps[i].Sub(stamps[i-1])
		assert.GreaterOrEqual(t, gap, interval-epsilon, "gap between permits %d and %d", i-1, i)
	}
	assert.GreaterOrEqual(t, stamps[len(stamps)-1].Sub(stamps[0]), (waiters-1)*interval-epsilon)
}

func TestRateLimiter_MaxCallsPerPeriod(t *testing.T) {
	l := NewRateLimiter(testLogger())
	l.Register(&model.Source{
		ID:        "mlb_statsapi",
		RateLimit: model.RateLimitConfig{MaxCalls: 2, Period: 40 * time.Millisecond},
	})

	interval, err := l.MinInterval("mlb_statsapi")
	require.NoError(t, err)
	assert.Equal(t, 20*time.Millisecond, interval)
}

func TestRateLimiter_LastDispatch(t *testing.T) {
	l := newTestLimiter(t, 10*time.Millisecond)
	ctx := context.Background()

	last, err := l.LastDispatch("fangraphs")
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	before := time.Now()
	require.NoError(t, l.AwaitPermit(ctx, "fangraphs"))

	last, err = l.LastDispatch("fangraphs")
	require.NoError(t, err)
	assert.False(t, last.IsZero())
	assert.False(t, last.Before(before))
}

func TestRateLimiter_CancelledWhileWaiting(t *testing.T) {
	l := newTestLimiter(t, time.Minute)
	ctx := context.Background()

	// Consume the initial permit so the next caller has to wait.
	require.NoError(t, l.AwaitPermit(ctx, "fangraphs"))

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := l.AwaitPermit(waitCtx, "fangraphs")
	assert.Error(t, err)
}

func TestRateLimiter_UnknownSource(t *testing.T) {
	l := newTestLimiter(t, time.Second)

	assert.ErrorIs(t, l.AwaitPermit(context.Background(), "nonexistent"), model.ErrUnknownSource)

	_, err := l.LastDispatch("nonexistent")
	assert.ErrorIs(t, err, model.ErrUnknownSource)

	_, err = l.MinInterval("nonexistent")
	assert.ErrorIs(t, err, model.ErrUnknownSource)
}

func TestRateLimiter_RegisterTwiceKeepsFirst(t *testing.T) {
	l := newTestLimiter(t, 30*time.Millisecond)
	l.Register(&model.Source{
		ID:        "fangraphs",
		RateLimit: model.RateLimitConfig{MaxCalls: 1, Period: time.Hour},
	})

	interval, err := l.MinInterval("fangraphs")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Millisecond, interval)
}

func TestRateLimiter_IndependentPerSource(t *testing.T) {
	l := NewRateLimiter(testLogger())
	l.Register(&model.Source{
		ID:        "fangraphs",
		RateLimit: model.RateLimitConfig{MaxCalls: 1, Period: time.Minute},
	})
	l.Register(&model.Source{
		ID:        "mlb_statsapi",
		RateLimit: model.RateLimitConfig{MaxCalls: 1, Period: time.Millisecond},
	})
	ctx := context.Background()

	// Exhaust fangraphs; mlb_statsapi permits are unaffected.
	require.NoError(t, l.AwaitPermit(ctx, "fangraphs"))

	start := time.Now()
	require.NoError(t, l.AwaitPermit(ctx, "mlb_statsapi"))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}
