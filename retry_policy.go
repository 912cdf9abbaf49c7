package uxios

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kind-men/uxios/internal/backoff"
)

// ErrRetryBudgetExceeded is the cause attached when the retry budget denies a retry.
var ErrRetryBudgetExceeded = errors.New("uxios: retry budget exceeded")

// RetryPolicy decides whether a rejected attempt is tried again and after
// which delay. attempt counts the retries already made.
type RetryPolicy interface {
	ShouldRetry(err *Error, attempt int) (time.Duration, bool)
}

// DefaultRetryPolicy retries idempotent requests that failed on the
// connection level (except aborts), with a 5xx status or with 429.
type DefaultRetryPolicy struct {
	maxRetries   int
	params       backoff.Params
	strategy     backoff.Strategy
	isIdempotent func(method string) bool
}

// NewDefaultRetryPolicy creates a policy with exponential backoff and jitter.
func NewDefaultRetryPolicy(maxRetries int, initialBackoff, maxBackoff time.Duration, multiplier, jitter float64) *DefaultRetryPolicy {
	return &DefaultRetryPolicy{
		maxRetries: maxRetries,
		params: backoff.Params{
			Initial:    initialBackoff,
			Max:        maxBackoff,
			Multiplier: multiplier,
			Jitter:     jitter,
		},
		strategy:     backoff.Exponential{},
		isIdempotent: DefaultIsIdempotent,
	}
}

// WithDecorrelatedJitter switches the policy to decorrelated jitter.
func (p *DefaultRetryPolicy) WithDecorrelatedJitter() *DefaultRetryPolicy {
	p.strategy = backoff.Decorrelated{}
	return p
}

// WithIdempotencyCheck replaces the method filter.
func (p *DefaultRetryPolicy) WithIdempotencyCheck(fn func(method string) bool) *DefaultRetryPolicy {
	p.isIdempotent = fn
	return p
}

// ShouldRetry implements the RetryPolicy interface.
func (p *DefaultRetryPolicy) ShouldRetry(err *Error, attempt int) (time.Duration, bool) {
	if err == nil || attempt >= p.maxRetries {
		return 0, false
	}
	if err.Config != nil && !p.isIdempotent(err.Config.method()) {
		return 0, false
	}

	var delay time.Duration
	switch {
	case err.Type == ErrorTypeRequestAborted:
		return 0, false
	case err.Type.IsA(ErrorTypeConnection):
	case err.Type == ErrorTypeHTTPServer, err.Status == http.StatusTooManyRequests:
		if err.Response != nil {
			delay = parseRetryAfter(err.Response.Headers.Get("Retry-After"))
		}
	default:
		return 0, false
	}

	if delay == 0 {
		delay = p.strategy.Delay(attempt, p.params)
	}
	return delay, true
}

// DefaultIsIdempotent returns true for idempotent HTTP methods.
func DefaultIsIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	default:
		return false
	}
}

// parseRetryAfter parses delay-seconds or an HTTP date, capped at one hour.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if seconds <= 0 {
			return 0
		}
		return min(time.Duration(seconds)*time.Second, time.Hour)
	}

	if t, err := http.ParseTime(value); err == nil {
		if delay := time.Until(t); delay > 0 && delay <= time.Hour {
			return delay
		}
	}

	return 0
}

// RetryBudget caps the number of retries within a sliding window.
type RetryBudget struct {
	maxRetries  int64
	perWindow   time.Duration
	current     int64
	windowStart int64
}

// NewRetryBudget creates a budget of maxRetries per window.
func NewRetryBudget(maxRetries int, perWindow time.Duration) *RetryBudget {
	return &RetryBudget{
		maxRetries:  int64(maxRetries),
		perWindow:   perWindow,
		windowStart: time.Now().UnixNano(),
	}
}

// Allow consumes one retry from the budget if any is left.
func (rb *RetryBudget) Allow() bool {
	now := time.Now().UnixNano()
	windowStart := atomic.LoadInt64(&rb.windowStart)
	if now-windowStart >= int64(rb.perWindow) {
		if atomic.CompareAndSwapInt64(&rb.windowStart, windowStart, now) {
			atomic.StoreInt64(&rb.current, 0)
		}
	}

	if atomic.LoadInt64(&rb.current) >= rb.maxRetries {
		return false
	}
	return atomic.AddInt64(&rb.current, 1) <= rb.maxRetries
}

// Remaining returns the retries left in the current window.
func (rb *RetryBudget) Remaining() int64 {
	return max(rb.maxRetries-atomic.LoadInt64(&rb.current), 0)
}

type retryAttemptKey struct{}

// RetryAttempt returns how many retries preceded the attempt owning ctx.
func RetryAttempt(ctx context.Context) int {
	n, _ := ctx.Value(retryAttemptKey{}).(int)
	return n
}

// NewRetryInterceptor returns a response interceptor whose error handler
// dispatches the original Config again through c while policy allows it.
// budget may be nil.
func NewRetryInterceptor(c *Client, policy RetryPolicy, budget *RetryBudget) *ResponseInterceptor {
	return &ResponseInterceptor{
		OnError: func(ctx context.Context, e *Error) (*Response, error) {
			attempt := RetryAttempt(ctx)
			delay, ok := policy.ShouldRetry(e, attempt)
			if !ok {
				return nil, nil
			}
			if budget != nil && !budget.Allow() {
				exceeded := *e
				exceeded.Cause = errors.Join(e.Cause, ErrRetryBudgetExceeded)
				return nil, &exceeded
			}

			original, ok := OriginalConfig(ctx)
			if !ok {
				original = e.Config
			}

			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return nil, nil
			case <-timer.C:
			}

			scheme, _ := original.Scheme()
			c.metrics.RecordRetry(original.method(), scheme, attempt+1)
			if c.logger != nil {
				c.logger.Warn("Retrying request", "attempt", attempt+1, "delay", delay, "type", e.Type, "status", e.Status)
			}

			retryCtx := context.WithValue(ctx, retryAttemptKey{}, attempt+1)
			resp, err := c.Do(retryCtx, original)
			if err != nil {
				return nil, err
			}
			return resp, nil
		},
	}
}

// WithRetry installs a retry interceptor with policy at user priority.
func WithRetry(policy RetryPolicy) Option {
	return func(c *Client) {
		c.interceptors.Response.TryAdd(NewRetryInterceptor(c, policy, nil), PriorityUser)
	}
}

// WithRetryBudget installs a retry interceptor limited by budget.
func WithRetryBudget(policy RetryPolicy, budget *RetryBudget) Option {
	return func(c *Client) {
		c.interceptors.Response.TryAdd(NewRetryInterceptor(c, policy, budget), PriorityUser)
	}
}
