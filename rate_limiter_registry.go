package uxios

import (
	"context"
	"net/url"
	"sync"

	"golang.org/x/time/rate"
)

// KeyFunc derives the rate limiting key of a request.
type KeyFunc func(cfg *Config) string

// RateLimiterRegistry holds one token bucket per key. Keys without an
// explicitly registered limiter get their own bucket built by newLimiter, or
// share the fallback when newLimiter is nil.
type RateLimiterRegistry struct {
	mutex      sync.RWMutex
	limiters   map[string]*rate.Limiter
	keyFunc    KeyFunc
	fallback   *rate.Limiter
	newLimiter func() *rate.Limiter
}

// NewRateLimiterRegistry creates a registry keyed by keyFunc.
func NewRateLimiterRegistry(keyFunc KeyFunc, fallback *rate.Limiter) *RateLimiterRegistry {
	return &RateLimiterRegistry{
		limiters: make(map[string]*rate.Limiter),
		keyFunc:  keyFunc,
		fallback: fallback,
	}
}

// NewPerKeyRateLimiterRegistry creates a registry that lazily gives every key
// its own bucket of the given limit and burst.
func NewPerKeyRateLimiterRegistry(keyFunc KeyFunc, limit rate.Limit, burst int) *RateLimiterRegistry {
	r := NewRateLimiterRegistry(keyFunc, nil)
	r.newLimiter = func() *rate.Limiter { return rate.NewLimiter(limit, burst) }
	return r
}

// RegisterLimiter adds a limiter for the given key.
func (r *RateLimiterRegistry) RegisterLimiter(key string, limiter *rate.Limiter) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.limiters[key] = limiter
}

// GetLimiter returns the limiter for cfg and its key. The limiter is nil
// when nothing applies.
func (r *RateLimiterRegistry) GetLimiter(cfg *Config) (*rate.Limiter, string) {
	if r.keyFunc == nil {
		return r.fallback, "default"
	}
	key := r.keyFunc(cfg)

	r.mutex.RLock()
	limiter, exists := r.limiters[key]
	r.mutex.RUnlock()
	if exists {
		return limiter, key
	}

	if r.newLimiter != nil {
		r.mutex.Lock()
		defer r.mutex.Unlock()
		if limiter, exists = r.limiters[key]; !exists {
			limiter = r.newLimiter()
			r.limiters[key] = limiter
		}
		return limiter, key
	}

	if r.fallback != nil {
		return r.fallback, "default"
	}
	return nil, key
}

// Allow checks if a request is allowed by the appropriate rate limiter.
func (r *RateLimiterRegistry) Allow(cfg *Config) (bool, string) {
	limiter, key := r.GetLimiter(cfg)
	if limiter == nil {
		return true, key
	}
	return limiter.Allow(), key
}

// HostKey keys requests by the host of their absolute URL.
func HostKey(cfg *Config) string {
	if u := absoluteOrNil(cfg); u != nil && u.Host != "" {
		return "host:" + u.Host
	}
	return "host:unknown"
}

// RouteKey keys requests by method and path.
func RouteKey(cfg *Config) string {
	path := ""
	if u := absoluteOrNil(cfg); u != nil {
		path = u.Path
	}
	return "route:" + cfg.method() + ":" + path
}

// HostRouteKey combines HostKey and RouteKey.
func HostRouteKey(cfg *Config) string {
	host, path := "unknown", ""
	if u := absoluteOrNil(cfg); u != nil {
		if u.Host != "" {
			host = u.Host
		}
		path = u.Path
	}
	return "host_route:" + host + ":" + cfg.method() + ":" + path
}

func absoluteOrNil(cfg *Config) *url.URL {
	u, err := cfg.AbsoluteURL()
	if err != nil {
		return nil
	}
	return u
}

// WithRateLimiterRegistry rejects requests denied by the limiter registry
// selects for them, at system priority.
func WithRateLimiterRegistry(registry *RateLimiterRegistry) Option {
	return func(c *Client) {
		ic := &RequestInterceptor{
			OnSuccess: func(_ context.Context, cfg *Config) (*Config, error) {
				allowed, key := registry.Allow(cfg)
				if allowed {
					return cfg, nil
				}
				scheme, _ := cfg.Scheme()
				c.metrics.RecordRateLimited(scheme)
				e := newError(ErrorTypeConfiguration, cfg, "request denied by rate limiter %q", key)
				e.Cause = ErrRateLimited
				return nil, e
			},
		}
		c.interceptors.Request.TryAdd(ic, PrioritySystem)
	}
}
