// Package fetch implements the cached, rate-limited acquisition client:
// request building, upstream transport, response classification and the
// fetch orchestration that ties the cache and limiter together.
package fetch

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/humbldata/humbldata-go/internal/logger"
	"github.com/humbldata/humbldata-go/internal/version"
	"github.com/humbldata/humbldata-go/pkg/cache"
	"github.com/humbldata/humbldata-go/pkg/errors"
	"github.com/humbldata/humbldata-go/pkg/ratelimit"
)

const bodyExcerptLimit = 512

// Client fetches data from the upstream API through a rate limiter and a
// two-tier cache. The underlying HTTP session is built lazily on first use
// and shared across all requests.
type Client struct {
	config  ClientConfig
	baseURL string
	limiter *ratelimit.Limiter
	cache   *cache.Tiered
	metrics *MetricsCollector
	logger  *logger.Logger

	validate *validator.Validate

	httpOnce sync.Once
	http     *resty.Client
}

// NewClient validates the configuration, resolves the base URL once and
// returns a ready client. metrics may be nil to disable instrumentation; a
// nil log falls back to a no-op logger.
func NewClient(config ClientConfig, limiter *ratelimit.Limiter, tiered *cache.Tiered, metrics *MetricsCollector, log *logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	config.applyDefaults()

	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid client configuration", err)
	}

	baseURL, err := config.resolveBaseURL()
	if err != nil {
		return nil, err
	}

	return &Client{
		config:   config,
		baseURL:  baseURL,
		limiter:  limiter,
		cache:    tiered,
		metrics:  metrics,
		logger:   log,
		validate: validate,
	}, nil
}

// BaseURL returns the resolved base URL including the API prefix.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close releases cache resources held by the client.
func (c *Client) Close() error {
	if c.cache == nil {
		return nil
	}

	return c.cache.Close()
}

// session returns the shared HTTP client, building it on first use. Retries
// stay disabled: a failed request surfaces immediately and the caller owns
// the retry decision.
func (c *Client) session() *resty.Client {
	c.httpOnce.Do(func() {
		transport := &http.Transport{
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			MaxConnsPerHost:     10,
			IdleConnTimeout:     90 * time.Second,
		}

		c.http = resty.New().
			SetTransport(transport).
			SetTimeout(c.config.Timeout).
			SetHeader("Accept", "application/json").
			SetHeader("User-Agent", "humbldata-go/"+version.GetVersion()).
			SetRetryCount(0)
	})

	return c.http
}

// doFetch performs one upstream GET and classifies the outcome: connection
// and deadline failures become TransportError, non-2xx responses become
// UpstreamError, and a 2xx body is decoded as the standard response shape.
func (c *Client) doFetch(ctx context.Context, target, provider, endpoint string) (*apiResponse, error) {
	start := time.Now()

	resp, err := c.session().R().
		SetContext(ctx).
		SetResult(&apiResponse{}).
		Get(target)

	elapsed := time.Since(start)

	if err != nil {
		c.metrics.recordRequest(provider, endpoint, "transport_error", elapsed)

		return nil, &errors.TransportError{
			Target:  target,
			Elapsed: elapsed,
			Timeout: isTimeout(err),
			Cause:   err,
		}
	}

	status := resp.StatusCode()
	c.metrics.recordRequest(provider, endpoint, strconv.Itoa(status), elapsed)

	if status < 200 || status > 299 {
		c.logger.Warn("upstream request failed",
			zap.String("target", target),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
		)

		upstream := &errors.UpstreamError{
			Target:      target,
			StatusCode:  status,
			BodyExcerpt: excerpt(resp.Body()),
		}

		// The upstream's own throttle is a distinct condition from local
		// admission: callers may back off on this one without touching the
		// local bucket.
		if status == http.StatusTooManyRequests {
			return nil, errors.Wrap(errors.ErrCodeUpstreamRateLimit, "upstream throttled the request", upstream)
		}

		return nil, upstream
	}

	body, ok := resp.Result().(*apiResponse)
	if !ok || body == nil {
		return nil, errors.New(errors.ErrCodeUpstreamBadBody, "response body is not the expected shape")
	}

	c.logger.Debug("upstream request succeeded",
		zap.String("target", target),
		zap.Int("status", status),
		zap.Int("results", len(body.Results)),
		zap.Duration("elapsed", elapsed),
	)

	return body, nil
}

func isTimeout(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return stderrors.As(err, &netErr) && netErr.Timeout()
}

func excerpt(body []byte) string {
	if len(body) > bodyExcerptLimit {
		body = body[:bodyExcerptLimit]
	}

	return string(body)
}
