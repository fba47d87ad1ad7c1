package fetch

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/humbldata/humbldata-go/pkg/cache"
	"github.com/humbldata/humbldata-go/pkg/errors"
	"github.com/humbldata/humbldata-go/pkg/params"
	"github.com/humbldata/humbldata-go/pkg/table"
)

// FetchData acquires data for a dotted route and parameter set. The flow is:
// build the cache key, check the cache, and only on a miss (or an
// undecodable cached entry) consume one unit of rate quota and hit the
// upstream, then write the fresh payload back best-effort. Admission guards
// the upstream call only; a cache hit consumes no quota. Quota consumed for
// a request that is later cancelled or fails is not refunded.
func (c *Client) FetchData(ctx context.Context, route string, p params.QueryParams) (*FetchOutcome, error) {
	requestID := uuid.New().String()
	provider := p.Provider()

	endpoint, err := translateRoute(route)
	if err != nil {
		return nil, err
	}

	if v, ok := p.(interface {
		Validate(*validator.Validate) error
	}); ok {
		if err := v.Validate(c.validate); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid query parameters", err)
		}
	}

	key, err := params.CacheKey(route, p)
	if err != nil {
		return nil, err
	}

	if outcome, ok := c.fromCache(ctx, key, provider, requestID); ok {
		return outcome, nil
	}

	admission, err := c.limiter.Admit(ctx, provider, endpoint)
	if err != nil {
		return nil, err
	}

	c.metrics.recordRateLimitRemaining(provider, endpoint, int64(admission.Remaining))

	if !admission.Allowed {
		c.metrics.recordRateLimitRejection(provider, endpoint)

		return nil, &errors.RateLimitError{
			Provider:  provider,
			Route:     endpoint,
			Limit:     admission.Limit,
			Remaining: admission.Remaining,
			ResetAt:   admission.ResetAt,
		}
	}

	target := c.buildURL(endpoint, p)

	body, err := c.doFetch(ctx, target, provider, endpoint)
	if err != nil {
		return nil, err
	}

	result, warnings, err := resultFromBody(body)
	if err != nil {
		return nil, err
	}

	c.storeInCache(ctx, key, result, requestID)

	return &FetchOutcome{
		Data:     result,
		Provider: provider,
		Warnings: warnings,
		Extra:    body.Extra,
	}, nil
}

// fromCache attempts to serve the request from the cache. A cached payload
// that fails to decode is logged and treated as a miss so the caller
// refetches instead of failing.
func (c *Client) fromCache(ctx context.Context, key, provider, requestID string) (*FetchOutcome, bool) {
	payload, outcome, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed",
			zap.String("request_id", requestID),
			zap.String("key", key),
			zap.Error(err),
		)
	}

	if outcome == cache.OutcomeMiss {
		c.metrics.recordCacheLookup(string(cache.OutcomeMiss))

		return nil, false
	}

	result, err := table.Decode(payload)
	if err != nil {
		c.logger.Warn("cached payload undecodable, refetching",
			zap.String("request_id", requestID),
			zap.String("key", key),
			zap.Error(err),
		)
		c.metrics.recordCacheLookup(string(cache.OutcomeMiss))

		return nil, false
	}

	c.metrics.recordCacheLookup(string(outcome))
	c.logger.Debug("served from cache",
		zap.String("request_id", requestID),
		zap.String("key", key),
		zap.String("outcome", string(outcome)),
	)

	return &FetchOutcome{
		Data:     result,
		Provider: provider,
		Extra:    map[string]any{"cache": string(outcome)},
	}, true
}

// storeInCache encodes and writes a fresh result. Cache writes are
// best-effort: a failure is logged and the fresh result is still returned.
func (c *Client) storeInCache(ctx context.Context, key string, result *table.LazyResult, requestID string) {
	encoded, err := table.Encode(result)
	if err != nil {
		c.logger.Error("result encoding failed, skipping cache write",
			zap.String("request_id", requestID),
			zap.String("key", key),
			zap.Error(err),
		)

		return
	}

	if err := c.cache.Set(ctx, key, encoded, c.config.CacheTTL); err != nil {
		c.logger.Warn("cache write failed",
			zap.String("request_id", requestID),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

// resultFromBody converts a decoded response body into a lazy result. A body
// carrying a detail message alongside results is surfaced as a warning.
func resultFromBody(body *apiResponse) (*table.LazyResult, []Warning, error) {
	result, err := buildLazyResult(body.Results)
	if err != nil {
		return nil, nil, err
	}

	warnings := body.Warnings
	if body.Detail != "" {
		warnings = append(warnings, Warning{Category: "APIDetail", Message: body.Detail})
	}

	return result, warnings, nil
}
