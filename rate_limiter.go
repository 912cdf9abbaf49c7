package uxios

import (
	"context"

	"golang.org/x/time/rate"
)

// NewRateLimitInterceptor rejects requests the limiter does not allow with a
// ConfigurationError caused by ErrRateLimited. With wait set it blocks until
// a token is available or the request context is done instead.
func NewRateLimitInterceptor(limiter *rate.Limiter, wait bool) *RequestInterceptor {
	return newRateLimitInterceptor(limiter, wait, func() *MetricsCollector { return nil })
}

func newRateLimitInterceptor(limiter *rate.Limiter, wait bool, metrics func() *MetricsCollector) *RequestInterceptor {
	deny := func(cfg *Config, format string, args ...any) error {
		scheme, _ := cfg.Scheme()
		metrics().RecordRateLimited(scheme)
		e := newError(ErrorTypeConfiguration, cfg, format, args...)
		e.Cause = ErrRateLimited
		return e
	}

	return &RequestInterceptor{
		OnSuccess: func(ctx context.Context, cfg *Config) (*Config, error) {
			if wait {
				if err := limiter.Wait(ctx); err != nil {
					return nil, deny(cfg, "rate limit wait: %v", err)
				}
				return cfg, nil
			}
			if !limiter.Allow() {
				return nil, deny(cfg, "request denied by rate limiter")
			}
			return cfg, nil
		},
	}
}

// WithRateLimiter installs a non-blocking token bucket of the given rate and
// burst at system priority.
func WithRateLimiter(limit rate.Limit, burst int) Option {
	return func(c *Client) {
		ic := newRateLimitInterceptor(rate.NewLimiter(limit, burst), false, c.Metrics)
		c.interceptors.Request.TryAdd(ic, PrioritySystem)
	}
}

// WithRateLimiterWait installs a blocking token bucket at system priority.
func WithRateLimiterWait(limit rate.Limit, burst int) Option {
	return func(c *Client) {
		ic := newRateLimitInterceptor(rate.NewLimiter(limit, burst), true, c.Metrics)
		c.interceptors.Request.TryAdd(ic, PrioritySystem)
	}
}
