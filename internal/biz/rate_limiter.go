package biz

import (
	"context"
	"sync"
	"time"

	"ScoutFeed/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/time/rate"
)

// RateLimiter enforces a minimum inter-dispatch spacing per source. One
// instance is shared by every concurrent caller targeting the same source;
// waiters are released in FIFO order, so spacing is measured between
// successive dispatches regardless of how many callers are queued.
type RateLimiter struct {
	mu       sync.RWMutex
	limiters map[model.SourceID]*sourceLimiter
	logger   *log.Helper
}

type sourceLimiter struct {
	limiter *rate.Limiter
	mu      sync.Mutex
	// lastDispatch is the moment the most recent permit was granted,
	// exposed for the health endpoint and the rate-limit compliance audit.
	lastDispatch time.Time
	interval     time.Duration
}

// NewRateLimiter creates an empty rate limiter. Sources are added through
// Register at startup.
func NewRateLimiter(logger log.Logger) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[model.SourceID]*sourceLimiter),
		logger:   log.NewHelper(logger),
	}
}

// Register creates the limiter state for a source. Registering the same
// source twice keeps the first configuration.
func (l *RateLimiter) Register(src *model.Source) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.limiters[src.ID]; ok {
		return
	}

	interval := src.RateLimit.MinInterval()
	l.limiters[src.ID] = &sourceLimiter{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
	}
	l.logger.Debugw("rate limiter registered",
		"source", src.ID,
		"min_interval", interval)
}

// AwaitPermit suspends the calling goroutine until it is safe to issue the
// next call to the source, then returns. It fails only when the source is
// unknown or the context is cancelled while waiting.
func (l *RateLimiter) AwaitPermit(ctx context.Context, id model.SourceID) error {
	l.mu.RLock()
	sl, ok := l.limiters[id]
	l.mu.RUnlock()
	if !ok {
		return model.ErrUnknownSource
	}

	if err := sl.limiter.Wait(ctx); err != nil {
		// Context cancelled or deadline too short for the wait.
		return err
	}

	sl.mu.Lock()
	sl.lastDispatch = time.Now()
	sl.mu.Unlock()

	return nil
}

// LastDispatch returns when the source was last granted a permit. The zero
// time means no call has been dispatched yet.
func (l *RateLimiter) LastDispatch(id model.SourceID) (time.Time, error) {
	l.mu.RLock()
	sl, ok := l.limiters[id]
	l.mu.RUnlock()
	if !ok {
		return time.Time{}, model.ErrUnknownSource
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.lastDispatch, nil
}

// MinInterval returns the configured spacing for a source.
func (l *RateLimiter) MinInterval(id model.SourceID) (time.Duration, error) {
	l.mu.RLock()
	sl, ok := l.limiters[id]
	l.mu.RUnlock()
	if !ok {
		return 0, model.ErrUnknownSource
	}
	return sl.interval, nil
}
