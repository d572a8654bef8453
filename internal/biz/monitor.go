package biz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ScoutFeed/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	lru "github.com/hashicorp/golang-lru/v2"
)

// AlertSink is the external notification collaborator. The transport that
// actually delivers alerts (email, Slack, webhook) lives outside this core.
type AlertSink interface {
	SendAlert(ctx context.Context, alert *model.Alert) error
}

// OutcomeArchive is the durable audit trail collaborator. Writes are
// best-effort; PurgeBefore backs the retention cleanup audit.
type OutcomeArchive interface {
	ArchiveOutcome(ctx context.Context, outcome *model.FetchOutcome)
	ArchiveAlert(ctx context.Context, alert *model.Alert)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// MonitorConfig tunes the pipeline monitor.
type MonitorConfig struct {
	// FailureStreakAlert raises a warning alert when a source reaches this
	// many consecutive failures, and an error alert at twice that.
	FailureStreakAlert int
	// FreshnessMaxAge is the default staleness bound for the full audit.
	FreshnessMaxAge time.Duration
	// AlertHistorySize bounds the in-memory recent-alert history.
	AlertHistorySize int
}

// PipelineMonitor records every fetch outcome, tracks per-source freshness
// and raises alerts. It is the single owner of the in-memory freshness
// records; everything durable is delegated to the archive collaborator.
type PipelineMonitor struct {
	mu        sync.Mutex
	freshness map[model.SourceID]*model.FreshnessRecord

	cfg     MonitorConfig
	sink    AlertSink
	archive OutcomeArchive
	mirror  StateMirror
	history *lru.Cache[int64, *model.Alert]
	seq     int64
	logger  *log.Helper

	now func() time.Time
}

// NewPipelineMonitor creates a monitor with an empty freshness table.
func NewPipelineMonitor(cfg MonitorConfig, sink AlertSink, archive OutcomeArchive, mirror StateMirror, logger log.Logger) (*PipelineMonitor, error) {
	size := cfg.AlertHistorySize
	if size <= 0 {
		size = 100
	}
	history, err := lru.New[int64, *model.Alert](size)
	if err != nil {
		return nil, err
	}

	return &PipelineMonitor{
		freshness: make(map[model.SourceID]*model.FreshnessRecord),
		cfg:       cfg,
		sink:      sink,
		archive:   archive,
		mirror:    mirror,
		history:   history,
		logger:    log.NewHelper(logger),
		now:       time.Now,
	}, nil
}

// Register creates an empty freshness record for a source so that freshness
// queries distinguish "never fetched" from "unknown source".
func (m *PipelineMonitor) Register(src *model.Source) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.freshness[src.ID]; !ok {
		m.freshness[src.ID] = &model.FreshnessRecord{Source: src.ID}
	}
}

// RecordOutcome folds one fetch outcome into the source's freshness record,
// archives it, and raises a streak alert when the source crosses the
// configured consecutive-failure threshold.
func (m *PipelineMonitor) RecordOutcome(ctx context.Context, outcome *model.FetchOutcome) {
	m.mu.Lock()
	rec, ok := m.freshness[outcome.Source]
	if !ok {
		rec = &model.FreshnessRecord{Source: outcome.Source}
		m.freshness[outcome.Source] = rec
	}

	rec.LastAttempt = outcome.Timestamp
	rec.TotalAttempts++
	switch {
	case outcome.Kind.IsSuccess():
		rec.LastSuccess = outcome.Timestamp
		rec.TotalSuccesses++
		rec.FailureStreak = 0
	case outcome.Kind == model.OutcomeCancelled:
		// Neither success nor failure: the streak is untouched.
	default:
		rec.FailureStreak++
	}
	streak := rec.FailureStreak
	snapshot := *rec
	m.mu.Unlock()

	m.archive.ArchiveOutcome(ctx, outcome)
	m.mirror.MirrorFreshness(ctx, &snapshot)

	if t := m.cfg.FailureStreakAlert; t > 0 {
		switch streak {
		case t:
			m.SendAlert(ctx, "pipeline_monitor", model.SeverityWarning, outcome.Source,
				fmt.Sprintf("source has failed %d consecutive fetches", streak))
		case 2 * t:
			m.SendAlert(ctx, "pipeline_monitor", model.SeverityError, outcome.Source,
				fmt.Sprintf("source has failed %d consecutive fetches and may be down", streak))
		}
	}
}

// CheckFreshness reports whether the source produced a successful fetch
// within maxAge. A source that never succeeded is stale.
func (m *PipelineMonitor) CheckFreshness(id model.SourceID, maxAge time.Duration) (bool, error) {
	m.mu.Lock()
	rec, ok := m.freshness[id]
	if !ok {
		m.mu.Unlock()
		return false, model.ErrUnknownSource
	}
	last := rec.LastSuccess
	m.mu.Unlock()

	if last.IsZero() {
		return false, nil
	}
	return m.now().Sub(last) <= maxAge, nil
}

// Freshness returns a copy of the source's freshness record.
func (m *PipelineMonitor) Freshness(id model.SourceID) (*model.FreshnessRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.freshness[id]
	if !ok {
		return nil, model.ErrUnknownSource
	}
	snapshot := *rec
	return &snapshot, nil
}

// AllFreshness returns copies of every freshness record.
func (m *PipelineMonitor) AllFreshness() []*model.FreshnessRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*model.FreshnessRecord, 0, len(m.freshness))
	for _, rec := range m.freshness {
		snapshot := *rec
		out = append(out, &snapshot)
	}
	return out
}

// SendAlert forwards an alert to the external sink and keeps it in the
// bounded history. A sink transport failure is logged locally and never
// propagated: alerting must not crash the pipeline it is observing.
func (m *PipelineMonitor) SendAlert(ctx context.Context, component string, severity model.Severity, source model.SourceID, message string) {
	alert := &model.Alert{
		Severity:  severity,
		Message:   message,
		Source:    source,
		Component: component,
		Timestamp: m.now(),
	}

	m.logger.Infow("alert raised",
		"severity", severity,
		"source", source,
		"component", component,
		"message", message)

	m.mu.Lock()
	m.seq++
	seq := m.seq
	m.mu.Unlock()
	m.history.Add(seq, alert)

	m.archive.ArchiveAlert(ctx, alert)

	if err := m.sink.SendAlert(ctx, alert); err != nil {
		m.logger.Errorw("alert sink delivery failed",
			"severity", severity,
			"source", source,
			"error", err)
	}
}

// RecentAlerts returns the retained alert history, oldest first.
func (m *PipelineMonitor) RecentAlerts() []*model.Alert {
	keys := m.history.Keys()
	out := make([]*model.Alert, 0, len(keys))
	for _, k := range keys {
		if a, ok := m.history.Peek(k); ok {
			out = append(out, a)
		}
	}
	return out
}
