package fetch

import (
	"strings"
	"time"

	"github.com/humbldata/humbldata-go/pkg/errors"
)

// Environment selects a preset base URL.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
)

const (
	defaultAPIPrefix = "/api/v1"
	defaultTimeout   = 30 * time.Second
	defaultCacheTTL  = time.Hour
)

// ClientConfig holds the configuration for the fetch client. The base URL is
// resolved exactly once per client lifetime: an explicit override wins,
// otherwise the environment picks its preset URL.
type ClientConfig struct {
	Environment     Environment   `yaml:"environment" validate:"required,oneof=development production"`
	DevBaseURL      string        `yaml:"dev_base_url" validate:"omitempty,url"`
	ProdBaseURL     string        `yaml:"prod_base_url" validate:"omitempty,url"`
	BaseURLOverride string        `yaml:"base_url_override" validate:"omitempty,url"`
	APIPrefix       string        `yaml:"api_prefix"`
	Timeout         time.Duration `yaml:"timeout" validate:"omitempty,min=1ms"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
}

func (c *ClientConfig) applyDefaults() {
	if c.APIPrefix == "" {
		c.APIPrefix = defaultAPIPrefix
	}

	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}

	if c.CacheTTL == 0 {
		c.CacheTTL = defaultCacheTTL
	}
}

// resolveBaseURL determines the effective base URL including the API prefix.
func (c ClientConfig) resolveBaseURL() (string, error) {
	if c.BaseURLOverride != "" {
		return strings.TrimRight(c.BaseURLOverride, "/") + c.APIPrefix, nil
	}

	switch c.Environment {
	case EnvProduction:
		if c.ProdBaseURL == "" {
			return "", errors.New(errors.ErrCodeMissingBaseURL, "prod_base_url is not set for the production environment")
		}

		return strings.TrimRight(c.ProdBaseURL, "/") + c.APIPrefix, nil
	case EnvDevelopment:
		if c.DevBaseURL == "" {
			return "", errors.New(errors.ErrCodeMissingBaseURL, "dev_base_url is not set for the development environment")
		}

		return strings.TrimRight(c.DevBaseURL, "/") + c.APIPrefix, nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidEnvironment, "unknown environment %q", c.Environment)
	}
}
