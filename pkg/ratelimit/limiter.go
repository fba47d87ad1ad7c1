package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/humbldata/humbldata-go/internal/logger"
)

type routeKey struct {
	provider string
	route    string
}

// Limiter resolves the budget for a (provider, route) pair and delegates
// bucket state to its Store. It is constructed once per process and passed
// explicitly to every fetch client; there is no package-level instance.
type Limiter struct {
	store         Store
	defaultRate   Rate
	providerRates map[string]Rate
	routeRates    map[routeKey]Rate
	logger        *logger.Logger
}

// NewLimiter creates a limiter with the given default budget.
func NewLimiter(store Store, defaultRate Rate, log *logger.Logger) *Limiter {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Limiter{
		store:         store,
		defaultRate:   defaultRate,
		providerRates: make(map[string]Rate),
		routeRates:    make(map[routeKey]Rate),
		logger:        log,
	}
}

// SetProviderRate overrides the budget for every route of a provider.
func (l *Limiter) SetProviderRate(provider string, rate Rate) {
	l.providerRates[provider] = rate
}

// SetRouteRate overrides the budget for a single (provider, route) pair. It
// takes precedence over the provider-wide override.
func (l *Limiter) SetRouteRate(provider, route string, rate Rate) {
	l.routeRates[routeKey{provider: provider, route: route}] = rate
}

// RateFor resolves the effective budget for a (provider, route) pair.
func (l *Limiter) RateFor(provider, route string) Rate {
	if rate, ok := l.routeRates[routeKey{provider: provider, route: route}]; ok {
		return rate
	}

	if rate, ok := l.providerRates[provider]; ok {
		return rate
	}

	return l.defaultRate
}

func bucketKey(provider, route string) string {
	if route == "" {
		return "rate_limit:" + provider
	}

	return "rate_limit:" + provider + ":" + route
}

// Admit attempts to consume one unit of quota for the pair. It never blocks:
// a denied admission returns immediately with Allowed=false and the caller
// decides whether to wait or abort. An error is only returned for store
// failures or an already-cancelled context; cancellation checked here, before
// admission, is the only point at which no quota is consumed.
func (l *Limiter) Admit(ctx context.Context, provider, route string) (Result, error) {
	rate := l.RateFor(provider, route)

	result, err := l.store.Hit(ctx, bucketKey(provider, route), rate)
	if err != nil {
		return Result{}, err
	}

	l.logger.Debug("rate limit admission",
		zap.String("provider", provider),
		zap.String("route", route),
		zap.Bool("allowed", result.Allowed),
		zap.Int("remaining", result.Remaining),
		zap.Int("limit", result.Limit),
		zap.Time("reset_at", result.ResetAt),
	)

	return result, nil
}

// Peek reports the bucket state without consuming quota.
func (l *Limiter) Peek(ctx context.Context, provider, route string) (Result, error) {
	return l.store.Peek(ctx, bucketKey(provider, route), l.RateFor(provider, route))
}

// WaitAdmit is the explicit bounded wait: it retries admission, sleeping
// until the bucket's reset time between attempts, and gives up when ctx is
// done. Callers bound the wait with a context deadline.
func (l *Limiter) WaitAdmit(ctx context.Context, provider, route string) (Result, error) {
	for {
		result, err := l.Admit(ctx, provider, route)
		if err != nil {
			return Result{}, err
		}

		if result.Allowed {
			return result, nil
		}

		wait := time.Until(result.ResetAt)
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()

			return result, ctx.Err()
		case <-timer.C:
		}
	}
}
