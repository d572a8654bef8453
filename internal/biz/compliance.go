package biz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ScoutFeed/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
)

// CheckFunc performs one compliance check and reports the severity of its
// findings. A non-nil error means the check itself could not run.
type CheckFunc func(ctx context.Context) (model.Severity, string, error)

// ComplianceConfig tunes the scheduler and its standard checks.
type ComplianceConfig struct {
	// Intervals overrides the default per-check interval.
	Intervals map[model.CheckID]time.Duration
	// RetentionMaxAge is how long archived outcomes and alerts are kept.
	RetentionMaxAge time.Duration
	// CostBudget caps the accumulated fetch spend before the cost check
	// escalates.
	CostBudget float64
	// CheckTimeout bounds a single check run.
	CheckTimeout time.Duration
}

var defaultCheckIntervals = map[model.CheckID]time.Duration{
	model.CheckRateLimitCompliance: 15 * time.Minute,
	model.CheckAttribution:         6 * time.Hour,
	model.CheckTermsOfService:      24 * time.Hour,
	model.CheckRetentionCleanup:    24 * time.Hour,
	model.CheckCostThreshold:       time.Hour,
	model.CheckFullAudit:           time.Hour,
}

type scheduledCheck struct {
	// mu serializes runs of this one check: a named check never runs
	// concurrently with itself.
	mu       sync.Mutex
	interval time.Duration
	lastRun  time.Time
	fn       CheckFunc
}

// ComplianceScheduler runs named periodic checks on independent intervals and
// routes findings through the pipeline monitor's alerting path. A cron tick
// fires every minute; each tick runs the checks whose interval has elapsed.
type ComplianceScheduler struct {
	mu      sync.Mutex
	checks  map[model.CheckID]*scheduledCheck
	order   []model.CheckID
	running bool
	cron    *cron.Cron

	cfg     ComplianceConfig
	monitor *PipelineMonitor
	logger  *log.Helper

	now func() time.Time
}

// NewComplianceScheduler creates the scheduler and registers the standard
// check set against the supplied collaborators.
func NewComplianceScheduler(
	cfg ComplianceConfig,
	registry *SourceRegistry,
	limiter *RateLimiter,
	breaker *CircuitBreaker,
	monitor *PipelineMonitor,
	archive OutcomeArchive,
	logger log.Logger,
) (*ComplianceScheduler, error) {
	s := &ComplianceScheduler{
		checks:  make(map[model.CheckID]*scheduledCheck),
		cfg:     cfg,
		monitor: monitor,
		logger:  log.NewHelper(logger),
		now:     time.Now,
	}

	standard := map[model.CheckID]CheckFunc{
		model.CheckRateLimitCompliance: checkRateLimitCompliance(registry, limiter),
		model.CheckAttribution:         checkAttribution(registry),
		model.CheckTermsOfService:      checkTermsOfService(registry),
		model.CheckRetentionCleanup:    checkRetentionCleanup(archive, cfg.RetentionMaxAge, s.now),
		model.CheckCostThreshold:       checkCostThreshold(registry, monitor, cfg.CostBudget),
		model.CheckFullAudit:           checkFullAudit(registry, breaker, monitor),
	}

	for _, id := range []model.CheckID{
		model.CheckRateLimitCompliance,
		model.CheckAttribution,
		model.CheckTermsOfService,
		model.CheckRetentionCleanup,
		model.CheckCostThreshold,
		model.CheckFullAudit,
	} {
		interval := defaultCheckIntervals[id]
		if override, ok := cfg.Intervals[id]; ok && override > 0 {
			interval = override
		}
		if err := s.RegisterCheck(id, interval, standard[id]); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// RegisterCheck adds a named check to the schedule table.
func (s *ComplianceScheduler) RegisterCheck(id model.CheckID, interval time.Duration, fn CheckFunc) error {
	if interval <= 0 {
		return fmt.Errorf("check %q: interval must be positive", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.checks[id]; ok {
		return fmt.Errorf("check %q already registered", id)
	}
	s.checks[id] = &scheduledCheck{interval: interval, fn: fn}
	s.order = append(s.order, id)
	return nil
}

// Start begins the minute tick. Starting an already-running scheduler is a
// no-op with a warning.
func (s *ComplianceScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Warn("compliance scheduler already running, start ignored")
		return
	}

	c := cron.New(cron.WithSeconds())
	_, err := c.AddFunc("0 * * * * *", func() {
		s.Tick(context.Background())
	})
	if err != nil {
		s.logger.Errorw("failed to register compliance tick", "error", err)
		return
	}
	c.Start()
	s.cron = c
	s.running = true
	s.logger.Infow("compliance scheduler started", "checks", len(s.checks))
}

// Stop halts the tick. Stopping an already-stopped scheduler is a no-op.
func (s *ComplianceScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cron.Stop()
	s.cron = nil
	s.running = false
	s.logger.Info("compliance scheduler stopped")
}

// Tick runs every registered check whose interval has elapsed. Each due
// check's last-run time advances regardless of outcome, so a failing check
// waits a full interval before its next run.
func (s *ComplianceScheduler) Tick(ctx context.Context) {
	now := s.now()

	type due struct {
		id model.CheckID
		sc *scheduledCheck
	}
	var dueChecks []due

	s.mu.Lock()
	for _, id := range s.order {
		sc := s.checks[id]
		if now.Sub(sc.lastRun) >= sc.interval {
			sc.lastRun = now
			dueChecks = append(dueChecks, due{id: id, sc: sc})
		}
	}
	s.mu.Unlock()

	for _, d := range dueChecks {
		result := s.runCheck(ctx, d.id, d.sc)
		s.alert(ctx, result)
	}
}

// RunManualCheck bypasses the schedule for on-demand execution and returns a
// structured result instead of only alerting.
func (s *ComplianceScheduler) RunManualCheck(ctx context.Context, id model.CheckID) (*model.CheckResult, error) {
	s.mu.Lock()
	sc, ok := s.checks[id]
	s.mu.Unlock()
	if !ok {
		return nil, model.ErrUnknownCheck
	}

	result := s.runCheck(ctx, id, sc)
	s.alert(ctx, result)
	return result, nil
}

// UpdateCheckInterval mutates the schedule table. Unknown names and
// non-positive intervals are errors.
func (s *ComplianceScheduler) UpdateCheckInterval(id model.CheckID, minutes int) error {
	if minutes <= 0 {
		return fmt.Errorf("check %q: interval minutes must be positive", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.checks[id]
	if !ok {
		return model.ErrUnknownCheck
	}
	sc.interval = time.Duration(minutes) * time.Minute
	s.logger.Infow("check interval updated", "check", id, "interval_minutes", minutes)
	return nil
}

// Status answers the monitoring status query.
func (s *ComplianceScheduler) Status() *model.MonitoringStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := &model.MonitoringStatus{
		IsRunning: s.running,
		LastRuns:  make(map[model.CheckID]time.Time, len(s.checks)),
		Intervals: make(map[model.CheckID]time.Duration, len(s.checks)),
	}
	for id, sc := range s.checks {
		status.LastRuns[id] = sc.lastRun
		status.Intervals[id] = sc.interval
	}
	status.RecentAlerts = s.monitor.RecentAlerts()
	return status
}

// runCheck executes one check under its per-check lock. Panics and errors are
// captured in the result; one failing check never prevents the others.
func (s *ComplianceScheduler) runCheck(ctx context.Context, id model.CheckID, sc *scheduledCheck) (result *model.CheckResult) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if s.cfg.CheckTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.CheckTimeout)
		defer cancel()
	}

	start := s.now()
	result = &model.CheckResult{Check: id}

	defer func() {
		result.Duration = s.now().Sub(start)
		if r := recover(); r != nil {
			s.logger.Errorw("compliance check panicked", "check", id, "panic", r)
			result.Status = model.CheckFailed
			result.Severity = model.SeverityError
			result.Error = fmt.Sprintf("check panicked: %v", r)
		}
	}()

	severity, detail, err := sc.fn(ctx)
	if err != nil {
		result.Status = model.CheckFailed
		result.Severity = model.SeverityError
		result.Error = err.Error()
		return result
	}

	result.Severity = severity
	result.Detail = detail
	switch severity {
	case model.SeverityInfo:
		result.Status = model.CheckPassed
	case model.SeverityWarning:
		result.Status = model.CheckWarning
	default:
		result.Status = model.CheckFailed
	}
	return result
}

func (s *ComplianceScheduler) alert(ctx context.Context, result *model.CheckResult) {
	message := result.Detail
	if result.Error != "" {
		message = fmt.Sprintf("check %s failed: %s", result.Check, result.Error)
	}
	if message == "" {
		message = fmt.Sprintf("check %s %s", result.Check, result.Status)
	}
	s.monitor.SendAlert(ctx, "compliance_scheduler", result.Severity, "", message)
}
