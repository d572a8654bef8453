package biz

import (
	"context"
	"errors"
	"fmt"

	"ScoutFeed/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// SourceRegistry is the immutable set of registered providers, built once at
// startup from explicit configuration. Capability lists keep registration
// order: that order is the failover priority.
type SourceRegistry struct {
	sources      map[model.SourceID]*model.Source
	byCapability map[model.Capability][]*model.Source
	ordered      []*model.Source
}

// NewSourceRegistry builds a registry from the startup source list.
// Duplicate source names are a configuration error.
func NewSourceRegistry(sources []*model.Source) (*SourceRegistry, error) {
	r := &SourceRegistry{
		sources:      make(map[model.SourceID]*model.Source, len(sources)),
		byCapability: make(map[model.Capability][]*model.Source),
	}

	for _, src := range sources {
		if src.ID == "" {
			return nil, fmt.Errorf("source with empty name")
		}
		if _, ok := r.sources[src.ID]; ok {
			return nil, fmt.Errorf("duplicate source %q", src.ID)
		}
		r.sources[src.ID] = src
		r.ordered = append(r.ordered, src)
		for _, c := range src.Capabilities {
			r.byCapability[c] = append(r.byCapability[c], src)
		}
	}

	return r, nil
}

// Get returns the source by name.
func (r *SourceRegistry) Get(id model.SourceID) (*model.Source, error) {
	src, ok := r.sources[id]
	if !ok {
		return nil, model.ErrUnknownSource
	}
	return src, nil
}

// SourcesFor returns the sources serving a capability in priority order.
func (r *SourceRegistry) SourcesFor(c model.Capability) ([]*model.Source, error) {
	sources, ok := r.byCapability[c]
	if !ok || len(sources) == 0 {
		return nil, model.ErrUnknownCapability
	}
	return sources, nil
}

// All returns every registered source in registration order.
func (r *SourceRegistry) All() []*model.Source {
	return r.ordered
}

// FailoverOrchestrator tries sources in priority order, consulting each
// source's circuit breaker and rate limiter, and falls back on failure.
type FailoverOrchestrator struct {
	registry *SourceRegistry
	limiter  *RateLimiter
	breaker  *CircuitBreaker
	monitor  *PipelineMonitor
	logger   *log.Helper
}

// NewFailoverOrchestrator wires the orchestrator and registers every source
// with its rate limiter, breaker and monitor.
func NewFailoverOrchestrator(
	registry *SourceRegistry,
	limiter *RateLimiter,
	breaker *CircuitBreaker,
	monitor *PipelineMonitor,
	logger log.Logger,
) *FailoverOrchestrator {
	for _, src := range registry.All() {
		limiter.Register(src)
		breaker.Register(src)
		monitor.Register(src)
	}

	return &FailoverOrchestrator{
		registry: registry,
		limiter:  limiter,
		breaker:  breaker,
		monitor:  monitor,
		logger:   log.NewHelper(logger),
	}
}

// Fetch resolves the capability to its priority-ordered source list and
// attempts each in turn. Sources with an open breaker are skipped without
// counting as attempts. The first success wins; per-source failures are
// swallowed and surfaced only through the aggregated ExhaustedError once
// every source has failed or was open.
func (o *FailoverOrchestrator) Fetch(ctx context.Context, capability model.Capability, args model.FetchArgs) (any, error) {
	sources, err := o.registry.SourcesFor(capability)
	if err != nil {
		return nil, err
	}

	var failures []model.SourceFailure
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if o.breaker.IsOpen(src.ID) {
			o.logger.Debugw("skipping source with open circuit",
				"capability", capability,
				"source", src.ID)
			failures = append(failures, model.SourceFailure{
				Source: src.ID,
				Kind:   model.OutcomeCircuitOpen,
				Reason: "circuit open, source skipped",
			})
			continue
		}

		if err := o.limiter.AwaitPermit(ctx, src.ID); err != nil {
			// Cancelled while queued; nothing reached the provider.
			o.record(ctx, src.ID, capability, model.OutcomeCancelled, 0, err.Error())
			return nil, err
		}

		result, err := o.breaker.Call(ctx, src.ID, func(ctx context.Context) (any, error) {
			return src.Fetch(ctx, capability, args)
		})

		kind := model.ClassifyOutcome(ctx, err)
		o.record(ctx, src.ID, capability, kind, httpStatusOf(err), detailOf(err))

		switch {
		case err == nil:
			return result, nil
		case kind == model.OutcomeCancelled:
			// The caller gave up; stop the failover chain.
			return nil, err
		}

		o.logger.Warnw("source fetch failed, falling back",
			"capability", capability,
			"source", src.ID,
			"kind", kind,
			"error", err)
		failures = append(failures, model.SourceFailure{
			Source: src.ID,
			Kind:   kind,
			Reason: err.Error(),
		})
	}

	exhausted := &model.ExhaustedError{Capability: capability, Failures: failures}
	o.logger.Errorw("all sources exhausted",
		"capability", capability,
		"sources_tried", len(failures))
	return nil, exhausted
}

// ServiceHealth answers the per-source health query: circuit state, failure
// count, last rate-limited dispatch and whether the source is taking traffic.
func (o *FailoverOrchestrator) ServiceHealth(id model.SourceID) (*model.ServiceHealth, error) {
	if _, err := o.registry.Get(id); err != nil {
		return nil, err
	}
	metrics, err := o.breaker.Metrics(id)
	if err != nil {
		return nil, err
	}
	last, err := o.limiter.LastDispatch(id)
	if err != nil {
		return nil, err
	}

	return &model.ServiceHealth{
		Source:              id,
		CircuitState:        metrics.State,
		FailureCount:        metrics.FailureCount,
		RateLimiterLastCall: last,
		SourceActive:        !o.breaker.IsOpen(id),
	}, nil
}

// ResetBreaker is the administrative override used for manual recovery.
func (o *FailoverOrchestrator) ResetBreaker(id model.SourceID) error {
	if _, err := o.registry.Get(id); err != nil {
		return err
	}
	return o.breaker.Reset(id)
}

func (o *FailoverOrchestrator) record(ctx context.Context, id model.SourceID, capability model.Capability, kind model.OutcomeKind, status int, detail string) {
	o.monitor.RecordOutcome(ctx, &model.FetchOutcome{
		ID:         uuid.NewString(),
		Source:     id,
		Capability: capability,
		Kind:       kind,
		HTTPStatus: status,
		Detail:     detail,
		Timestamp:  o.monitor.now(),
	})
}

func httpStatusOf(err error) int {
	var httpErr *model.HTTPStatusError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	return 0
}

func detailOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
