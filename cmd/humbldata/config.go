package main

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/humbldata/humbldata-go/internal/logger"
	"github.com/humbldata/humbldata-go/pkg/cache"
	"github.com/humbldata/humbldata-go/pkg/errors"
	"github.com/humbldata/humbldata-go/pkg/fetch"
	"github.com/humbldata/humbldata-go/pkg/ratelimit"
)

// AppConfig is the YAML configuration for the CLI. Durations and rates are
// strings in the file ("30s", "10/minute") and parsed on load.
type AppConfig struct {
	Environment     string                       `yaml:"environment" validate:"omitempty,oneof=development production"`
	DevBaseURL      string                       `yaml:"dev_base_url"`
	ProdBaseURL     string                       `yaml:"prod_base_url"`
	BaseURLOverride string                       `yaml:"base_url_override"`
	APIPrefix       string                       `yaml:"api_prefix"`
	Timeout         string                       `yaml:"timeout"`
	CacheTTL        string                       `yaml:"cache_ttl"`
	RedisURL        string                       `yaml:"redis_url"`
	DefaultRate     string                       `yaml:"default_rate"`
	ProviderRates   map[string]string            `yaml:"provider_rates"`
	RouteRates      map[string]map[string]string `yaml:"route_rates"`
	DBPath          string                       `yaml:"db_path"`
}

// LoadAppConfig reads the YAML file and applies environment overrides:
// ENVIRONMENT and REDIS_URL win over the file. A missing path yields the
// defaults.
func LoadAppConfig(path string) (*AppConfig, error) {
	config := &AppConfig{
		Environment: string(fetch.EnvDevelopment),
		DefaultRate: "10/minute",
		DBPath:      "data/humbldata.duckdb",
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to read config file", err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config file", err)
		}
	}

	if env := os.Getenv("ENVIRONMENT"); env != "" {
		config.Environment = env
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		config.RedisURL = redisURL
	}

	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	return config, nil
}

func (c *AppConfig) clientConfig() (fetch.ClientConfig, error) {
	cfg := fetch.ClientConfig{
		Environment:     fetch.Environment(c.Environment),
		DevBaseURL:      c.DevBaseURL,
		ProdBaseURL:     c.ProdBaseURL,
		BaseURLOverride: c.BaseURLOverride,
		APIPrefix:       c.APIPrefix,
	}

	if c.Timeout != "" {
		timeout, err := time.ParseDuration(c.Timeout)
		if err != nil {
			return fetch.ClientConfig{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid timeout %q", c.Timeout)
		}

		cfg.Timeout = timeout
	}

	if c.CacheTTL != "" {
		ttl, err := time.ParseDuration(c.CacheTTL)
		if err != nil {
			return fetch.ClientConfig{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid cache_ttl %q", c.CacheTTL)
		}

		cfg.CacheTTL = ttl
	}

	return cfg, nil
}

// buildClient wires the limiter, the cache tiers and the fetch client from
// the loaded configuration. A configured Redis URL upgrades both the rate
// store and the cache to their shared variants.
func buildClient(config *AppConfig, log *logger.Logger) (*fetch.Client, error) {
	var redisClient *redis.Client

	if config.RedisURL != "" {
		opts, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid redis_url", err)
		}

		redisClient = redis.NewClient(opts)
	}

	defaultRate, err := ratelimit.ParseRate(config.DefaultRate)
	if err != nil {
		return nil, err
	}

	var rateStore ratelimit.Store = ratelimit.NewMemoryStore()
	if redisClient != nil {
		rateStore = ratelimit.NewRedisStore(redisClient, "")
	}

	limiter := ratelimit.NewLimiter(rateStore, defaultRate, log)

	for provider, raw := range config.ProviderRates {
		rate, err := ratelimit.ParseRate(raw)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeInvalidRate, err, "invalid rate for provider %q", provider)
		}

		limiter.SetProviderRate(provider, rate)
	}

	for provider, routes := range config.RouteRates {
		for route, raw := range routes {
			rate, err := ratelimit.ParseRate(raw)
			if err != nil {
				return nil, errors.Wrapf(errors.ErrCodeInvalidRate, err, "invalid rate for %s %s", provider, route)
			}

			limiter.SetRouteRate(provider, route, rate)
		}
	}

	var remote cache.Store
	if redisClient != nil {
		remote = cache.NewRedis(redisClient, "")
	}

	tiered := cache.NewTiered(cache.NewMemory(), remote, log)

	clientConfig, err := config.clientConfig()
	if err != nil {
		return nil, err
	}

	return fetch.NewClient(clientConfig, limiter, tiered, fetch.NewMetricsCollector(), log)
}
