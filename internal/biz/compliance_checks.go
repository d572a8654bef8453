package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ScoutFeed/internal/model"
)

// checkRateLimitCompliance verifies every registered source carries an
// enforceable rate limit and that observed dispatch spacing matches it.
// A source without a limit risks violating the provider's terms.
func checkRateLimitCompliance(registry *SourceRegistry, limiter *RateLimiter) CheckFunc {
	return func(ctx context.Context) (model.Severity, string, error) {
		var unlimited []string
		for _, src := range registry.All() {
			if src.RateLimit.MaxCalls <= 0 || src.RateLimit.Period <= 0 {
				unlimited = append(unlimited, src.ID.String())
				continue
			}
			if _, err := limiter.MinInterval(src.ID); err != nil {
				return model.SeverityError, "", fmt.Errorf("source %s has no limiter state: %w", src.ID, err)
			}
		}

		if len(unlimited) > 0 {
			return model.SeverityWarning,
				"sources without an enforced rate limit: " + strings.Join(unlimited, ", "), nil
		}
		return model.SeverityInfo,
			fmt.Sprintf("all %d sources rate limited", len(registry.All())), nil
	}
}

// checkAttribution flags sources whose required attribution text is missing.
func checkAttribution(registry *SourceRegistry) CheckFunc {
	return func(ctx context.Context) (model.Severity, string, error) {
		var missing []string
		for _, src := range registry.All() {
			if strings.TrimSpace(src.Attribution) == "" {
				missing = append(missing, src.ID.String())
			}
		}

		if len(missing) > 0 {
			return model.SeverityWarning,
				"sources missing attribution: " + strings.Join(missing, ", "), nil
		}
		return model.SeverityInfo, "attribution complete for all sources", nil
	}
}

// checkTermsOfService escalates to critical when any source is used without
// accepted terms. This is a legal condition, not an operational one.
func checkTermsOfService(registry *SourceRegistry) CheckFunc {
	return func(ctx context.Context) (model.Severity, string, error) {
		var unaccepted []string
		for _, src := range registry.All() {
			if !src.TermsAccepted {
				unaccepted = append(unaccepted, src.ID.String())
			}
		}

		if len(unaccepted) > 0 {
			return model.SeverityCritical,
				"terms of service not accepted for: " + strings.Join(unaccepted, ", "), nil
		}
		return model.SeverityInfo, "terms of service accepted for all sources", nil
	}
}

// checkRetentionCleanup purges archived outcomes and alerts older than the
// configured retention window.
func checkRetentionCleanup(archive OutcomeArchive, maxAge time.Duration, now func() time.Time) CheckFunc {
	return func(ctx context.Context) (model.Severity, string, error) {
		if maxAge <= 0 {
			return model.SeverityWarning, "retention window not configured, nothing purged", nil
		}

		purged, err := archive.PurgeBefore(ctx, now().Add(-maxAge))
		if err != nil {
			return model.SeverityError, "", fmt.Errorf("retention purge failed: %w", err)
		}
		return model.SeverityInfo, fmt.Sprintf("retention cleanup purged %d records", purged), nil
	}
}

// checkCostThreshold estimates accumulated fetch spend from per-source
// attempt totals and escalates as the budget is approached or exceeded.
func checkCostThreshold(registry *SourceRegistry, monitor *PipelineMonitor, budget float64) CheckFunc {
	return func(ctx context.Context) (model.Severity, string, error) {
		var spend float64
		for _, src := range registry.All() {
			rec, err := monitor.Freshness(src.ID)
			if err != nil {
				continue
			}
			spend += float64(rec.TotalAttempts) * src.CostPerCall
		}

		if budget <= 0 {
			return model.SeverityInfo, fmt.Sprintf("accumulated spend %.2f (no budget configured)", spend), nil
		}

		detail := fmt.Sprintf("accumulated spend %.2f of budget %.2f", spend, budget)
		switch {
		case spend >= budget:
			return model.SeverityCritical, detail, nil
		case spend >= 0.8*budget:
			return model.SeverityWarning, detail, nil
		default:
			return model.SeverityInfo, detail, nil
		}
	}
}

// checkFullAudit surveys breaker state and freshness across every source.
// Stale data is a warning; an open breaker means a provider is down and
// escalates to error.
func checkFullAudit(registry *SourceRegistry, breaker *CircuitBreaker, monitor *PipelineMonitor) CheckFunc {
	return func(ctx context.Context) (model.Severity, string, error) {
		var stale, open []string
		for _, src := range registry.All() {
			metrics, err := breaker.Metrics(src.ID)
			if err != nil {
				return model.SeverityError, "", fmt.Errorf("source %s has no breaker state: %w", src.ID, err)
			}
			if metrics.State == model.CircuitOpen {
				open = append(open, src.ID.String())
			}

			fresh, err := monitor.CheckFreshness(src.ID, monitor.cfg.FreshnessMaxAge)
			if err != nil {
				return model.SeverityError, "", fmt.Errorf("source %s has no freshness record: %w", src.ID, err)
			}
			if !fresh {
				stale = append(stale, src.ID.String())
			}
		}

		switch {
		case len(open) > 0:
			return model.SeverityError,
				"open circuit breakers: " + strings.Join(open, ", "), nil
		case len(stale) > 0:
			return model.SeverityWarning,
				"stale sources: " + strings.Join(stale, ", "), nil
		default:
			return model.SeverityInfo, "full audit passed for all sources", nil
		}
	}
}
