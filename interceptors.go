package uxios

import (
	"context"
	"fmt"
)

// RequestInterception transforms a Config before dispatch.
type RequestInterception func(ctx context.Context, cfg *Config) (*Config, error)

// ResponseInterception transforms a Response after a successful attempt.
type ResponseInterception func(ctx context.Context, resp *Response) (*Response, error)

// ErrorInterception observes, replaces or recovers from an Error. Returning a
// non-nil Response recovers: the attempt succeeds with it and no further
// error handler runs. Returning nil for both keeps the current Error.
type ErrorInterception func(ctx context.Context, err *Error) (*Response, error)

// RequestInterceptor pairs a success and an error handler. A nil handler
// passes its input through.
type RequestInterceptor struct {
	OnSuccess RequestInterception
	OnError   ErrorInterception
}

// ResponseInterceptor pairs a success and an error handler. A nil handler
// passes its input through.
type ResponseInterceptor struct {
	OnSuccess ResponseInterception
	OnError   ErrorInterception
}

// Interceptors holds the request and response chains of a client.
type Interceptors struct {
	Request  *PriorityList[*RequestInterceptor]
	Response *PriorityList[*ResponseInterceptor]
}

// NewInterceptors returns empty chains.
func NewInterceptors() *Interceptors {
	return &Interceptors{
		Request:  NewPriorityList[*RequestInterceptor](),
		Response: NewPriorityList[*ResponseInterceptor](),
	}
}

// UseRequest registers a request interceptor and returns it for later removal.
func (i *Interceptors) UseRequest(onSuccess RequestInterception, onError ErrorInterception, priority int) *RequestInterceptor {
	ic := &RequestInterceptor{OnSuccess: onSuccess, OnError: onError}
	i.Request.TryAdd(ic, priority)
	return ic
}

// UseResponse registers a response interceptor and returns it for later removal.
func (i *Interceptors) UseResponse(onSuccess ResponseInterception, onError ErrorInterception, priority int) *ResponseInterceptor {
	ic := &ResponseInterceptor{OnSuccess: onSuccess, OnError: onError}
	i.Response.TryAdd(ic, priority)
	return ic
}

// runRequestChain applies the success handlers in order. When one fails, the
// error handlers of the interceptors after it run over the Error.
func runRequestChain(ctx context.Context, chain []*RequestInterceptor, cfg *Config) (*Config, *Response, *Error) {
	for i, ic := range chain {
		if ic.OnSuccess == nil {
			continue
		}
		next, err := safeRequestInterception(ctx, ic.OnSuccess, cfg)
		if err != nil {
			e := interceptorError(err, ErrorTypeConfiguration, cfg, nil)
			handlers := make([]ErrorInterception, 0, len(chain)-i-1)
			for _, rest := range chain[i+1:] {
				handlers = append(handlers, rest.OnError)
			}
			resp, e := runErrorHandlers(ctx, handlers, e)
			return cfg, resp, e
		}
		if next != nil {
			cfg = next
		}
	}
	return cfg, nil, nil
}

// runResponseChain applies the success handlers in order. A failing handler
// turns into a DataProcessingError handled by the interceptors after it;
// recovered reports that one of those handlers produced the returned Response.
func runResponseChain(ctx context.Context, chain []*ResponseInterceptor, resp *Response) (out *Response, recovered bool, e *Error) {
	for i, ic := range chain {
		if ic.OnSuccess == nil {
			continue
		}
		next, err := safeResponseInterception(ctx, ic.OnSuccess, resp)
		if err != nil {
			e = interceptorError(err, ErrorTypeDataProcessing, resp.Config, resp)
			out, e = runErrorHandlers(ctx, responseErrorHandlers(chain[i+1:]), e)
			return out, out != nil, e
		}
		if next != nil {
			resp = next
		}
	}
	return resp, false, nil
}

func responseErrorHandlers(chain []*ResponseInterceptor) []ErrorInterception {
	handlers := make([]ErrorInterception, 0, len(chain))
	for _, ic := range chain {
		handlers = append(handlers, ic.OnError)
	}
	return handlers
}

func runErrorHandlers(ctx context.Context, handlers []ErrorInterception, e *Error) (*Response, *Error) {
	for _, handle := range handlers {
		if handle == nil {
			continue
		}
		resp, err := safeErrorInterception(ctx, handle, e)
		if resp != nil {
			if resp.Config == nil {
				resp.Config = e.Config
			}
			return resp, nil
		}
		if err != nil {
			e = interceptorError(err, e.Type, e.Config, e.Response)
		}
	}
	return nil, e
}

func interceptorError(err error, fallback ErrorType, cfg *Config, resp *Response) *Error {
	if e, ok := adoptError(err, cfg); ok {
		return e
	}
	e := newError(fallback, cfg, "%v", err)
	e.Cause = err
	e.Response = resp
	if resp != nil {
		e.Status = resp.Status
	}
	return e
}

func safeRequestInterception(ctx context.Context, fn RequestInterception, cfg *Config) (next *Config, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("request interceptor panicked: %v", r)
		}
	}()
	return fn(ctx, cfg)
}

func safeResponseInterception(ctx context.Context, fn ResponseInterception, resp *Response) (next *Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("response interceptor panicked: %v", r)
		}
	}()
	return fn(ctx, resp)
}

func safeErrorInterception(ctx context.Context, fn ErrorInterception, e *Error) (resp *Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, fmt.Errorf("error interceptor panicked: %v", r)
		}
	}()
	return fn(ctx, e)
}
