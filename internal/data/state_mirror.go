package data

import (
	"context"
	"fmt"
	"time"

	"ScoutFeed/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// Mirror key TTL: dashboard state is advisory, stale entries expire on
// their own.
const mirrorTTL = 48 * time.Hour

// StateMirrorRepo implements biz.StateMirror: a best-effort redis mirror of
// circuit transitions and freshness timestamps for external dashboards.
// Every write degrades to a warning log when redis is unavailable; the
// acquisition core never depends on the mirror being up.
type StateMirrorRepo struct {
	rdb    *redis.Client
	logger *log.Helper
}

// NewStateMirror creates a new state mirror repository.
func NewStateMirror(rdb *redis.Client, logger log.Logger) *StateMirrorRepo {
	return &StateMirrorRepo{
		rdb:    rdb,
		logger: log.NewHelper(logger),
	}
}

// MirrorCircuitBroken records that a source's breaker opened.
func (r *StateMirrorRepo) MirrorCircuitBroken(ctx context.Context, event *model.CircuitBrokenEvent) {
	if r.rdb == nil {
		return
	}

	key := circuitKey(event.Source)
	fields := map[string]any{
		"state":     string(model.CircuitOpen),
		"failures":  event.Failures,
		"opened_at": event.OpenedAt.Format(time.RFC3339),
	}
	if err := r.hset(ctx, key, fields); err != nil {
		r.logger.Warnw("failed to mirror circuit broken (degraded mode)",
			"source", event.Source,
			"error", err)
	}
}

// MirrorCircuitRecovered records that a source's breaker closed again.
func (r *StateMirrorRepo) MirrorCircuitRecovered(ctx context.Context, event *model.CircuitRecoveredEvent) {
	if r.rdb == nil {
		return
	}

	key := circuitKey(event.Source)
	fields := map[string]any{
		"state":        string(model.CircuitClosed),
		"failures":     0,
		"probes":       event.ProbeCount,
		"recover_time": event.RecoverTime.String(),
	}
	if err := r.hset(ctx, key, fields); err != nil {
		r.logger.Warnw("failed to mirror circuit recovered (degraded mode)",
			"source", event.Source,
			"error", err)
	}
}

// MirrorFreshness records the source's freshness timestamps.
func (r *StateMirrorRepo) MirrorFreshness(ctx context.Context, record *model.FreshnessRecord) {
	if r.rdb == nil {
		return
	}

	key := freshnessKey(record.Source)
	fields := map[string]any{
		"last_attempt":   record.LastAttempt.Format(time.RFC3339),
		"failure_streak": record.FailureStreak,
		"total_attempts": record.TotalAttempts,
	}
	if !record.LastSuccess.IsZero() {
		fields["last_success"] = record.LastSuccess.Format(time.RFC3339)
	}
	if err := r.hset(ctx, key, fields); err != nil {
		r.logger.Warnw("failed to mirror freshness (degraded mode)",
			"source", record.Source,
			"error", err)
	}
}

// GetFreshness reads a mirrored freshness entry. Dashboards use this; the
// core itself reads only its in-memory records.
func (r *StateMirrorRepo) GetFreshness(ctx context.Context, id model.SourceID) (map[string]string, error) {
	if r.rdb == nil {
		return nil, fmt.Errorf("state mirror unavailable")
	}
	return r.rdb.HGetAll(ctx, freshnessKey(id)).Result()
}

// GetCircuitState reads a mirrored circuit entry.
func (r *StateMirrorRepo) GetCircuitState(ctx context.Context, id model.SourceID) (map[string]string, error) {
	if r.rdb == nil {
		return nil, fmt.Errorf("state mirror unavailable")
	}
	return r.rdb.HGetAll(ctx, circuitKey(id)).Result()
}

func (r *StateMirrorRepo) hset(ctx context.Context, key string, fields map[string]any) error {
	if err := r.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return err
	}
	return r.rdb.Expire(ctx, key, mirrorTTL).Err()
}

func circuitKey(id model.SourceID) string {
	return fmt.Sprintf("circuit:%s", id)
}

func freshnessKey(id model.SourceID) string {
	return fmt.Sprintf("freshness:%s", id)
}
