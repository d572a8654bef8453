// Package biz contains the resilient data-acquisition core: rate limiting,
// circuit breaking, failover orchestration, pipeline monitoring and the
// compliance scheduler.
package biz

import (
	"time"

	"ScoutFeed/internal/conf"
	"ScoutFeed/internal/data"
	"ScoutFeed/internal/model"

	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewSourceRegistry,
	NewRateLimiter,
	NewCircuitBreaker,
	NewPipelineMonitor,
	NewFailoverOrchestrator,
	NewComplianceScheduler,
	NewMonitorConfig,
	NewComplianceConfig,
	// Import data layer providers
	data.NewOutcomeArchive,
	data.NewStateMirror,
	data.NewLogAlertSink,
	// Bind data layer implementations to biz layer interfaces
	wire.Bind(new(OutcomeArchive), new(*data.OutcomeArchiveRepo)),
	wire.Bind(new(StateMirror), new(*data.StateMirrorRepo)),
	wire.Bind(new(AlertSink), new(*data.LogAlertSink)),
)

// NewMonitorConfig derives the monitor tuning from bootstrap configuration.
func NewMonitorConfig(c *conf.Pipeline) MonitorConfig {
	cfg := MonitorConfig{
		FailureStreakAlert: 5,
		FreshnessMaxAge:    24 * time.Hour,
		AlertHistorySize:   100,
	}
	if c == nil || c.Monitor == nil {
		return cfg
	}
	if c.Monitor.FailureStreakAlert > 0 {
		cfg.FailureStreakAlert = int(c.Monitor.FailureStreakAlert)
	}
	if c.Monitor.FreshnessMaxAge != nil && c.Monitor.FreshnessMaxAge.AsDuration() > 0 {
		cfg.FreshnessMaxAge = c.Monitor.FreshnessMaxAge.AsDuration()
	}
	if c.Monitor.AlertHistorySize > 0 {
		cfg.AlertHistorySize = int(c.Monitor.AlertHistorySize)
	}
	return cfg
}

// NewComplianceConfig derives the scheduler tuning from bootstrap
// configuration.
func NewComplianceConfig(c *conf.Pipeline) ComplianceConfig {
	cfg := ComplianceConfig{
		Intervals:       make(map[model.CheckID]time.Duration),
		RetentionMaxAge: 90 * 24 * time.Hour,
		CheckTimeout:    5 * time.Minute,
	}
	if c == nil || c.Compliance == nil {
		return cfg
	}
	if c.Compliance.RetentionMaxAge != nil && c.Compliance.RetentionMaxAge.AsDuration() > 0 {
		cfg.RetentionMaxAge = c.Compliance.RetentionMaxAge.AsDuration()
	}
	cfg.CostBudget = c.Compliance.CostBudget
	for name, minutes := range c.Compliance.CheckIntervalMinutes {
		if minutes > 0 {
			cfg.Intervals[model.CheckID(name)] = time.Duration(minutes) * time.Minute
		}
	}
	return cfg
}
