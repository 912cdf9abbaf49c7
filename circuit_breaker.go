package uxios

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrCircuitOpen is the cause of a request rejected by an open circuit breaker.
var ErrCircuitOpen = errors.New("uxios: circuit breaker is open")

// CircuitBreakerConfig holds circuit breaker configuration.
type CircuitBreakerConfig struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
	SuccessThreshold int
}

// CircuitState represents the state of the circuit breaker.
type CircuitState int64

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker stops dispatching after repeated connection or server
// failures and lets probes through once RecoveryTimeout has passed.
type CircuitBreaker struct {
	config      CircuitBreakerConfig
	state       atomic.Int64
	failures    atomic.Int64
	successes   atomic.Int64
	lastFailure atomic.Int64
}

// NewCircuitBreaker creates a new circuit breaker. Zero thresholds default
// to 5 failures, 60s recovery and 2 successes.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout == 0 {
		config.RecoveryTimeout = 60 * time.Second
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 2
	}
	return &CircuitBreaker{config: config}
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	return CircuitState(cb.state.Load())
}

// Allow checks if a request may be dispatched.
func (cb *CircuitBreaker) Allow() bool {
	switch cb.State() {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if time.Now().UnixNano()-cb.lastFailure.Load() < int64(cb.config.RecoveryTimeout) {
			return false
		}
		if cb.state.CompareAndSwap(int64(StateOpen), int64(StateHalfOpen)) {
			cb.successes.Store(0)
			return true
		}
		return cb.State() == StateHalfOpen
	default:
		return false
	}
}

// RecordFailure records a failed dispatch.
func (cb *CircuitBreaker) RecordFailure() {
	cb.lastFailure.Store(time.Now().UnixNano())

	switch cb.State() {
	case StateClosed:
		if cb.failures.Add(1) >= int64(cb.config.FailureThreshold) {
			cb.state.Store(int64(StateOpen))
		}
	case StateHalfOpen:
		cb.failures.Add(1)
		cb.successes.Store(0)
		cb.state.Store(int64(StateOpen))
	}
}

// RecordSuccess records a successful dispatch.
func (cb *CircuitBreaker) RecordSuccess() {
	switch cb.State() {
	case StateClosed:
		cb.failures.Store(0)
	case StateHalfOpen:
		if cb.successes.Add(1) >= int64(cb.config.SuccessThreshold) {
			cb.state.Store(int64(StateClosed))
			cb.failures.Store(0)
			cb.successes.Store(0)
		}
	}
}

// tripsCircuit reports whether e counts as a failure of the remote side.
func tripsCircuit(e *Error) bool {
	if e == nil || e.Type == ErrorTypeRequestAborted || errors.Is(e.Cause, ErrCircuitOpen) {
		return false
	}
	return e.Type.IsA(ErrorTypeConnection) || e.Type == ErrorTypeHTTPServer
}

// NewCircuitBreakerInterceptors returns the request interceptor that rejects
// requests while cb is open and the response interceptor that feeds cb.
func NewCircuitBreakerInterceptors(cb *CircuitBreaker) (*RequestInterceptor, *ResponseInterceptor) {
	request := &RequestInterceptor{
		OnSuccess: func(_ context.Context, cfg *Config) (*Config, error) {
			if !cb.Allow() {
				e := newError(ErrorTypeConnection, cfg, "circuit breaker is %s", cb.State())
				e.Cause = ErrCircuitOpen
				return nil, e
			}
			return cfg, nil
		},
	}
	response := &ResponseInterceptor{
		OnSuccess: func(_ context.Context, resp *Response) (*Response, error) {
			if resp.Status >= 500 {
				cb.RecordFailure()
			} else {
				cb.RecordSuccess()
			}
			return resp, nil
		},
		OnError: func(_ context.Context, e *Error) (*Response, error) {
			if tripsCircuit(e) && e.Response == nil {
				cb.RecordFailure()
			}
			return nil, nil
		},
	}
	return request, response
}

// WithCircuitBreaker guards every dispatch of the client with a circuit
// breaker installed at system priority.
func WithCircuitBreaker(config CircuitBreakerConfig) Option {
	return func(c *Client) {
		request, response := NewCircuitBreakerInterceptors(NewCircuitBreaker(config))
		c.interceptors.Request.TryAdd(request, PrioritySystem)
		c.interceptors.Response.TryAdd(response, PrioritySystem)
	}
}
