package biz

import (
	"context"
	"sync"
	"time"

	"ScoutFeed/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// Operation is one wrapped provider call executed under breaker control.
type Operation func(ctx context.Context) (any, error)

// StateMirror receives breaker transitions and freshness updates for
// external dashboards. Implementations are best-effort and must not block.
type StateMirror interface {
	MirrorCircuitBroken(ctx context.Context, event *model.CircuitBrokenEvent)
	MirrorCircuitRecovered(ctx context.Context, event *model.CircuitRecoveredEvent)
	MirrorFreshness(ctx context.Context, record *model.FreshnessRecord)
}

// CircuitBreaker holds one failure-detecting state machine per source.
// Cross-source state is fully independent: each source has its own mutex and
// counters, mutated only here in response to call outcomes.
type CircuitBreaker struct {
	mu     sync.RWMutex
	states map[model.SourceID]*breakerState
	mirror StateMirror
	logger *log.Helper

	// now is replaceable in tests.
	now func() time.Time
}

type breakerState struct {
	mu       sync.Mutex
	cfg      model.BreakerConfig
	classify model.FailureClassifier

	state       model.CircuitState
	failures    int
	successes   int
	lastFailure time.Time
	openedAt    time.Time

	// probing guards the half-open window: exactly one probe call is in
	// flight at a time, everyone else is short-circuited.
	probing bool
	probes  int
}

// NewCircuitBreaker creates an empty breaker set. Sources are added through
// Register at startup.
func NewCircuitBreaker(mirror StateMirror, logger log.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		states: make(map[model.SourceID]*breakerState),
		mirror: mirror,
		logger: log.NewHelper(logger),
		now:    time.Now,
	}
}

// Register creates breaker state for a source, starting Closed with zero
// counters. Registering the same source twice keeps the first configuration.
func (cb *CircuitBreaker) Register(src *model.Source) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if _, ok := cb.states[src.ID]; ok {
		return
	}

	classify := src.Classify
	if classify == nil {
		classify = model.DefaultClassifier
	}
	cb.states[src.ID] = &breakerState{
		cfg:      src.Breaker,
		classify: classify,
		state:    model.CircuitClosed,
	}
	cb.logger.Debugw("circuit breaker registered",
		"source", src.ID,
		"failure_threshold", src.Breaker.FailureThreshold,
		"recovery_timeout", src.Breaker.RecoveryTimeout,
		"success_threshold", src.Breaker.SuccessThreshold)
}

// Call runs op under breaker control. When the breaker is open and the
// recovery timeout has not elapsed, op is never invoked and a
// CircuitOpenError is returned. Otherwise op's result passes through
// unchanged after its outcome is classified and counted.
//
// A call cancelled by the caller's context is counted neither for nor
// against the breaker: the provider's behavior is unknown.
func (cb *CircuitBreaker) Call(ctx context.Context, id model.SourceID, op Operation) (any, error) {
	st, err := cb.lookup(id)
	if err != nil {
		return nil, err
	}

	now := cb.now()

	st.mu.Lock()
	switch st.state {
	case model.CircuitOpen:
		remaining := st.openedAt.Add(st.cfg.RecoveryTimeout).Sub(now)
		if remaining > 0 {
			st.mu.Unlock()
			return nil, &model.CircuitOpenError{Source: id, RetryAfter: remaining}
		}
		// Cooldown elapsed: this call becomes the half-open probe.
		st.state = model.CircuitHalfOpen
		st.successes = 0
		st.probes = 0
		st.probing = true
		cb.logger.Infow("circuit breaker half-open, probing", "source", id)
	case model.CircuitHalfOpen:
		if st.probing {
			// A probe is already in flight; don't let a recovery herd through.
			st.mu.Unlock()
			return nil, &model.CircuitOpenError{Source: id, RetryAfter: st.cfg.RecoveryTimeout}
		}
		st.probing = true
	}
	st.mu.Unlock()

	result, opErr := op(ctx)

	if opErr != nil && ctx.Err() != nil {
		cb.clearProbe(st)
		return result, opErr
	}

	switch {
	case opErr == nil:
		cb.onSuccess(ctx, id, st)
	case st.classify(opErr):
		cb.onFailure(ctx, id, st)
	default:
		// Valid negative result (e.g. not-found): no counter moves.
		cb.clearProbe(st)
	}

	return result, opErr
}

// IsOpen reports whether calls to the source would currently be
// short-circuited. It returns false once the recovery timeout has elapsed,
// so a caller that skips open sources still attempts the probe.
func (cb *CircuitBreaker) IsOpen(id model.SourceID) bool {
	st, err := cb.lookup(id)
	if err != nil {
		return false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return st.state == model.CircuitOpen && cb.now().Before(st.openedAt.Add(st.cfg.RecoveryTimeout))
}

// Reset is the administrative override: it forces the breaker Closed with
// zero counters. Calling it on an already-closed breaker is a no-op with the
// same end state.
func (cb *CircuitBreaker) Reset(id model.SourceID) error {
	st, err := cb.lookup(id)
	if err != nil {
		return err
	}

	st.mu.Lock()
	wasOpen := st.state != model.CircuitClosed
	st.state = model.CircuitClosed
	st.failures = 0
	st.successes = 0
	st.probing = false
	st.probes = 0
	st.openedAt = time.Time{}
	st.mu.Unlock()

	if wasOpen {
		cb.logger.Infow("circuit breaker reset by operator", "source", id)
	}
	return nil
}

// Metrics returns the current state, counters and timestamps for one source.
func (cb *CircuitBreaker) Metrics(id model.SourceID) (*model.BreakerMetrics, error) {
	st, err := cb.lookup(id)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return &model.BreakerMetrics{
		Source:       id,
		State:        st.state,
		FailureCount: st.failures,
		SuccessCount: st.successes,
		LastFailure:  st.lastFailure,
		OpenedAt:     st.openedAt,
	}, nil
}

func (cb *CircuitBreaker) lookup(id model.SourceID) (*breakerState, error) {
	cb.mu.RLock()
	st, ok := cb.states[id]
	cb.mu.RUnlock()
	if !ok {
		return nil, model.ErrUnknownSource
	}
	return st, nil
}

func (cb *CircuitBreaker) clearProbe(st *breakerState) {
	st.mu.Lock()
	st.probing = false
	st.mu.Unlock()
}

func (cb *CircuitBreaker) onSuccess(ctx context.Context, id model.SourceID, st *breakerState) {
	st.mu.Lock()
	switch st.state {
	case model.CircuitClosed:
		st.failures = 0
	case model.CircuitHalfOpen:
		st.successes++
		st.probes++
		st.probing = false
		if st.successes >= st.cfg.SuccessThreshold {
			recoverTime := cb.now().Sub(st.openedAt)
			probes := st.probes
			st.state = model.CircuitClosed
			st.failures = 0
			st.successes = 0
			st.probes = 0
			st.openedAt = time.Time{}
			st.mu.Unlock()

			cb.logger.Infow("circuit breaker recovered",
				"source", id,
				"probes", probes,
				"recover_time", recoverTime)
			cb.mirror.MirrorCircuitRecovered(ctx, &model.CircuitRecoveredEvent{
				Source:      id,
				ProbeCount:  probes,
				RecoverTime: recoverTime,
			})
			return
		}
	}
	st.mu.Unlock()
}

func (cb *CircuitBreaker) onFailure(ctx context.Context, id model.SourceID, st *breakerState) {
	now := cb.now()

	st.mu.Lock()
	st.lastFailure = now
	switch st.state {
	case model.CircuitClosed:
		st.failures++
		if st.failures < st.cfg.FailureThreshold {
			st.mu.Unlock()
			return
		}
		failures := st.failures
		st.state = model.CircuitOpen
		st.openedAt = now
		st.mu.Unlock()

		cb.logger.Warnw("circuit breaker opened",
			"source", id,
			"consecutive_failures", failures)
		cb.mirror.MirrorCircuitBroken(ctx, &model.CircuitBrokenEvent{
			Source:   id,
			Failures: failures,
			OpenedAt: now,
		})
	case model.CircuitHalfOpen:
		// A single probe failure reopens immediately.
		st.state = model.CircuitOpen
		st.openedAt = now
		st.successes = 0
		st.probing = false
		st.mu.Unlock()

		cb.logger.Warnw("circuit breaker reopened after failed probe", "source", id)
		cb.mirror.MirrorCircuitBroken(ctx, &model.CircuitBrokenEvent{
			Source:   id,
			OpenedAt: now,
		})
	default:
		st.mu.Unlock()
	}
}
