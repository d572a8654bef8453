package model

import "time"

// CheckID names one registered compliance check.
type CheckID string

func (c CheckID) String() string { return string(c) }

// Registered compliance check names.
const (
	CheckRateLimitCompliance CheckID = "rate_limit_compliance"
	CheckAttribution         CheckID = "attribution"
	CheckTermsOfService      CheckID = "tos_acceptance"
	CheckRetentionCleanup    CheckID = "retention_cleanup"
	CheckCostThreshold       CheckID = "cost_threshold"
	CheckFullAudit           CheckID = "full_audit"
)

// CheckStatus is the coarse result of one check run.
type CheckStatus string

const (
	CheckPassed  CheckStatus = "passed"
	CheckWarning CheckStatus = "warning"
	CheckFailed  CheckStatus = "failed"
)

// CheckResult is the structured result of a manual or scheduled check run.
type CheckResult struct {
	Check    CheckID
	Status   CheckStatus
	Severity Severity
	Detail   string
	Duration time.Duration
	Error    string
}

// CheckSchedule is the per-check schedule entry exposed by the status query.
type CheckSchedule struct {
	Check    CheckID
	Interval time.Duration
	LastRun  time.Time
}

// MonitoringStatus is the aggregate answer to the status query interface.
type MonitoringStatus struct {
	IsRunning    bool
	LastRuns     map[CheckID]time.Time
	Intervals    map[CheckID]time.Duration
	RecentAlerts []*Alert
}

// ServiceHealth is the per-source answer to the health query interface.
type ServiceHealth struct {
	Source              SourceID
	CircuitState        CircuitState
	FailureCount        int
	RateLimiterLastCall time.Time
	SourceActive        bool
}
