// Package service exposes the acquisition core over HTTP: fetch, health and
// monitoring queries, and the administrative operations.
package service

import (
	"context"
	"errors"
	"time"

	"ScoutFeed/internal/biz"
	"ScoutFeed/internal/model"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/wire"
)

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(NewPipelineService)

// PipelineService is the HTTP facade over the orchestrator, monitor and
// compliance scheduler.
type PipelineService struct {
	orchestrator *biz.FailoverOrchestrator
	scheduler    *biz.ComplianceScheduler
	monitor      *biz.PipelineMonitor
	logger       *log.Helper
}

// NewPipelineService creates a new PipelineService instance.
func NewPipelineService(
	orchestrator *biz.FailoverOrchestrator,
	scheduler *biz.ComplianceScheduler,
	monitor *biz.PipelineMonitor,
	logger log.Logger,
) *PipelineService {
	return &PipelineService{
		orchestrator: orchestrator,
		scheduler:    scheduler,
		monitor:      monitor,
		logger:       log.NewHelper(logger),
	}
}

// RegisterHTTP wires the service routes onto the kratos HTTP server.
func (s *PipelineService) RegisterHTTP(srv *http.Server) {
	r := srv.Route("/api/v1")
	r.POST("/fetch/{capability}", s.handleFetch)
	r.GET("/sources/{source}/health", s.handleSourceHealth)
	r.POST("/sources/{source}/circuit-breaker/reset", s.handleResetBreaker)
	r.GET("/monitoring/status", s.handleMonitoringStatus)
	r.POST("/checks/{check}/run", s.handleRunCheck)
	r.PUT("/checks/{check}/interval", s.handleUpdateInterval)
}

// FetchRequest is the body of POST /fetch/{capability}.
type FetchRequest struct {
	Args map[string]string `json:"args"`
}

// FetchResponse carries the raw fetched payload.
type FetchResponse struct {
	Capability string `json:"capability"`
	Data       string `json:"data"`
}

func (s *PipelineService) handleFetch(ctx http.Context) error {
	capability := model.Capability(ctx.Vars().Get("capability"))

	var req FetchRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}

	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		result, err := s.orchestrator.Fetch(c, capability, model.FetchArgs(req.Args))
		if err != nil {
			return nil, mapFetchError(err)
		}
		return &FetchResponse{
			Capability: capability.String(),
			Data:       encodePayload(result),
		}, nil
	})

	out, err := h(ctx, &req)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

// SourceHealthResponse answers GET /sources/{source}/health.
type SourceHealthResponse struct {
	Source              string `json:"source"`
	CircuitState        string `json:"circuit_state"`
	FailureCount        int    `json:"failure_count"`
	RateLimiterLastCall string `json:"rate_limiter_last_call,omitempty"`
	SourceActive        bool   `json:"source_active"`
}

func (s *PipelineService) handleSourceHealth(ctx http.Context) error {
	source := model.SourceID(ctx.Vars().Get("source"))

	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		health, err := s.orchestrator.ServiceHealth(source)
		if err != nil {
			return nil, mapLookupError(err)
		}

		resp := &SourceHealthResponse{
			Source:       health.Source.String(),
			CircuitState: string(health.CircuitState),
			FailureCount: health.FailureCount,
			SourceActive: health.SourceActive,
		}
		if !health.RateLimiterLastCall.IsZero() {
			resp.RateLimiterLastCall = health.RateLimiterLastCall.Format(time.RFC3339)
		}
		return resp, nil
	})

	out, err := h(ctx, nil)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

func (s *PipelineService) handleResetBreaker(ctx http.Context) error {
	source := model.SourceID(ctx.Vars().Get("source"))

	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		if err := s.orchestrator.ResetBreaker(source); err != nil {
			return nil, mapLookupError(err)
		}
		s.logger.Infow("circuit breaker reset via admin API", "source", source)
		return map[string]string{"status": "reset"}, nil
	})

	out, err := h(ctx, nil)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

// AlertView is one entry of the recent alert history.
type AlertView struct {
	Severity  string `json:"severity"`
	Message   string `json:"message"`
	Source    string `json:"source,omitempty"`
	Component string `json:"component"`
	Timestamp string `json:"timestamp"`
}

// MonitoringStatusResponse answers GET /monitoring/status.
type MonitoringStatusResponse struct {
	IsRunning            bool              `json:"is_running"`
	LastRunTimesByCheck  map[string]string `json:"last_run_times_by_check"`
	CheckIntervalMinutes map[string]int64  `json:"check_interval_minutes"`
	RecentAlertHistory   []*AlertView      `json:"recent_alert_history"`
}

func (s *PipelineService) handleMonitoringStatus(ctx http.Context) error {
	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		status := s.scheduler.Status()

		resp := &MonitoringStatusResponse{
			IsRunning:            status.IsRunning,
			LastRunTimesByCheck:  make(map[string]string, len(status.LastRuns)),
			CheckIntervalMinutes: make(map[string]int64, len(status.Intervals)),
		}
		for check, lastRun := range status.LastRuns {
			if lastRun.IsZero() {
				resp.LastRunTimesByCheck[check.String()] = ""
				continue
			}
			resp.LastRunTimesByCheck[check.String()] = lastRun.Format(time.RFC3339)
		}
		for check, interval := range status.Intervals {
			resp.CheckIntervalMinutes[check.String()] = int64(interval / time.Minute)
		}
		for _, alert := range status.RecentAlerts {
			resp.RecentAlertHistory = append(resp.RecentAlertHistory, &AlertView{
				Severity:  string(alert.Severity),
				Message:   alert.Message,
				Source:    alert.Source.String(),
				Component: alert.Component,
				Timestamp: alert.Timestamp.Format(time.RFC3339),
			})
		}
		return resp, nil
	})

	out, err := h(ctx, nil)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

// CheckRunResponse answers POST /checks/{check}/run.
type CheckRunResponse struct {
	Check           string  `json:"check"`
	Status          string  `json:"status"`
	Severity        string  `json:"severity"`
	Detail          string  `json:"detail,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
	Error           string  `json:"error,omitempty"`
}

func (s *PipelineService) handleRunCheck(ctx http.Context) error {
	check := model.CheckID(ctx.Vars().Get("check"))

	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		result, err := s.scheduler.RunManualCheck(c, check)
		if err != nil {
			return nil, mapLookupError(err)
		}
		return &CheckRunResponse{
			Check:           result.Check.String(),
			Status:          string(result.Status),
			Severity:        string(result.Severity),
			Detail:          result.Detail,
			DurationSeconds: result.Duration.Seconds(),
			Error:           result.Error,
		}, nil
	})

	out, err := h(ctx, nil)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

// UpdateIntervalRequest is the body of PUT /checks/{check}/interval.
type UpdateIntervalRequest struct {
	Minutes int `json:"minutes"`
}

func (s *PipelineService) handleUpdateInterval(ctx http.Context) error {
	check := model.CheckID(ctx.Vars().Get("check"))

	var req UpdateIntervalRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}

	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		if err := s.scheduler.UpdateCheckInterval(check, req.Minutes); err != nil {
			if errors.Is(err, model.ErrUnknownCheck) {
				return nil, mapLookupError(err)
			}
			return nil, kerrors.BadRequest("INVALID_INTERVAL", err.Error())
		}
		return map[string]string{"status": "updated"}, nil
	})

	out, err := h(ctx, &req)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

// encodePayload renders an opaque fetch result for the HTTP response.
func encodePayload(result any) string {
	switch v := result.(type) {
	case nil:
		return ""
	case []byte:
		return string(v)
	case string:
		return v
	default:
		return ""
	}
}

// mapFetchError translates domain fetch errors to transport errors.
func mapFetchError(err error) error {
	var exhausted *model.ExhaustedError
	if errors.As(err, &exhausted) {
		ke := kerrors.New(503, "ALL_SOURCES_EXHAUSTED", exhausted.Error())
		md := make(map[string]string, len(exhausted.Failures))
		for _, f := range exhausted.Failures {
			md[f.Source.String()] = string(f.Kind) + ": " + f.Reason
		}
		return ke.WithMetadata(md)
	}
	if errors.Is(err, model.ErrUnknownCapability) {
		return kerrors.NotFound("UNKNOWN_CAPABILITY", err.Error())
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return kerrors.New(499, "FETCH_CANCELLED", err.Error())
	}
	return kerrors.InternalServer("FETCH_FAILED", err.Error())
}

// mapLookupError translates registry and schedule lookup misses.
func mapLookupError(err error) error {
	switch {
	case errors.Is(err, model.ErrUnknownSource):
		return kerrors.NotFound("UNKNOWN_SOURCE", err.Error())
	case errors.Is(err, model.ErrUnknownCheck):
		return kerrors.NotFound("UNKNOWN_CHECK", err.Error())
	case errors.Is(err, model.ErrUnknownCapability):
		return kerrors.NotFound("UNKNOWN_CAPABILITY", err.Error())
	default:
		return kerrors.InternalServer("INTERNAL", err.Error())
	}
}
