// Package integration builds the registered Source set from bootstrap
// configuration. Each fetch function is a plain HTTP GET returning the raw
// response body; parsing a provider's payload belongs to its consumer, not
// to the acquisition core.
package integration

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"ScoutFeed/internal/conf"
	"ScoutFeed/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

const defaultRequestTimeout = 30 * time.Second

// NewSources translates the pipeline configuration into model sources with
// live fetch functions.
func NewSources(c *conf.Pipeline, logger log.Logger) ([]*model.Source, error) {
	helper := log.NewHelper(logger)

	if c == nil || len(c.Sources) == 0 {
		return nil, fmt.Errorf("no pipeline sources configured")
	}

	sources := make([]*model.Source, 0, len(c.Sources))
	for _, sc := range c.Sources {
		src, err := buildSource(sc)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", sc.Name, err)
		}
		helper.Infow("source registered",
			"source", src.ID,
			"capabilities", len(src.Capabilities),
			"rate_limit_max_calls", src.RateLimit.MaxCalls,
			"rate_limit_period", src.RateLimit.Period)
		sources = append(sources, src)
	}

	return sources, nil
}

func buildSource(sc *conf.Source) (*model.Source, error) {
	base, err := url.Parse(sc.BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("invalid base_url: %w", err)
	}
	if len(sc.Endpoints) == 0 {
		return nil, fmt.Errorf("no endpoints configured")
	}

	id := model.SourceID(sc.Name)

	capabilities := make([]model.Capability, 0, len(sc.Endpoints))
	endpoints := make(map[model.Capability]string, len(sc.Endpoints))
	for capName, path := range sc.Endpoints {
		capability := model.Capability(capName)
		capabilities = append(capabilities, capability)
		endpoints[capability] = path
	}

	timeout := defaultRequestTimeout
	if sc.RequestTimeout != nil && sc.RequestTimeout.AsDuration() > 0 {
		timeout = sc.RequestTimeout.AsDuration()
	}
	client := &http.Client{Timeout: timeout}

	src := &model.Source{
		ID:            id,
		Capabilities:  capabilities,
		Fetch:         httpFetch(id, base, endpoints, client),
		Attribution:   sc.Attribution,
		TermsAccepted: sc.TermsAccepted,
		CostPerCall:   sc.CostPerCall,
	}
	if sc.RateLimit != nil {
		src.RateLimit = model.RateLimitConfig{
			MaxCalls: int(sc.RateLimit.MaxCalls),
			Period:   sc.RateLimit.Period.AsDuration(),
		}
	}
	if sc.CircuitBreaker != nil {
		src.Breaker = model.BreakerConfig{
			FailureThreshold: int(sc.CircuitBreaker.FailureThreshold),
			RecoveryTimeout:  sc.CircuitBreaker.RecoveryTimeout.AsDuration(),
			SuccessThreshold: int(sc.CircuitBreaker.SuccessThreshold),
		}
	}
	applyBreakerDefaults(&src.Breaker)

	return src, nil
}

func applyBreakerDefaults(cfg *model.BreakerConfig) {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = 5 * time.Minute
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
}

// httpFetch builds the source's fetch function: resolve the capability's
// endpoint, attach args as query parameters, GET, and hand back the raw
// body. Response handles are released on every exit path.
func httpFetch(id model.SourceID, base *url.URL, endpoints map[model.Capability]string, client *http.Client) model.FetchFunc {
	return func(ctx context.Context, capability model.Capability, args model.FetchArgs) (any, error) {
		path, ok := endpoints[capability]
		if !ok {
			return nil, fmt.Errorf("source %s does not serve capability %q: %w",
				id, capability, model.ErrUnknownCapability)
		}

		ref, err := url.Parse(path)
		if err != nil {
			return nil, fmt.Errorf("invalid endpoint path %q: %w", path, err)
		}
		target := base.ResolveReference(ref)

		query := target.Query()
		for k, v := range args {
			query.Set(k, v)
		}
		target.RawQuery = query.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
		if err != nil {
			return nil, err
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if err := model.ErrorFromStatus(id, resp.StatusCode, target.Path); err != nil {
			// Drain so the connection can be reused.
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return nil, err
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading response from %s: %w", id, err)
		}
		return body, nil
	}
}
