package biz

import (
	"context"
	"os"
	"sync"
	"time"

	"ScoutFeed/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

func testLogger() log.Logger {
	return log.NewStdLogger(os.Stdout)
}

// mockStateMirror records breaker transitions and freshness writes.
type mockStateMirror struct {
	mu        sync.Mutex
	broken    []*model.CircuitBrokenEvent
	recovered []*model.CircuitRecoveredEvent
	freshness []*model.FreshnessRecord
}

func (m *mockStateMirror) MirrorCircuitBroken(_ context.Context, event *model.CircuitBrokenEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broken = append(m.broken, event)
}

func (m *mockStateMirror) MirrorCircuitRecovered(_ context.Context, event *model.CircuitRecoveredEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recovered = append(m.recovered, event)
}

func (m *mockStateMirror) MirrorFreshness(_ context.Context, record *model.FreshnessRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.freshness = append(m.freshness, record)
}

func (m *mockStateMirror) brokenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.broken)
}

func (m *mockStateMirror) recoveredCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recovered)
}

// mockAlertSink records delivered alerts and can simulate transport failure.
type mockAlertSink struct {
	mu     sync.Mutex
	alerts []*model.Alert
	err    error
}

func (m *mockAlertSink) SendAlert(_ context.Context, alert *model.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.alerts = append(m.alerts, alert)
	return nil
}

func (m *mockAlertSink) delivered() []*model.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Alert, len(m.alerts))
	copy(out, m.alerts)
	return out
}

// mockArchive keeps outcomes and alerts in memory.
type mockArchive struct {
	mu       sync.Mutex
	outcomes []*model.FetchOutcome
	alerts   []*model.Alert
	purged   []time.Time
	purgeErr error
}

func (m *mockArchive) ArchiveOutcome(_ context.Context, outcome *model.FetchOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *mockArchive) ArchiveAlert(_ context.Context, alert *model.Alert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, alert)
}

func (m *mockArchive) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.purgeErr != nil {
		return 0, m.purgeErr
	}
	m.purged = append(m.purged, cutoff)
	return 0, nil
}

func (m *mockArchive) outcomeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.outcomes)
}
