package uxios

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

// Client dispatches Configs through its interceptor chains to the transport
// registered for the URL scheme. Each client owns its registries; it is safe
// for concurrent use once configured.
type Client struct {
	defaults     *Config
	transports   *Registry
	interceptors *Interceptors
	resolver     Resolver
	aborts       *AbortController

	httpClient     *http.Client
	useHTTP        bool
	transportQueue []Transport

	metrics *MetricsCollector
	logger  Logger
	debug   bool

	setupErrors     []string
	validationError error
}

// New constructs a Client using the provided functional options. A best effort
// validation is performed; call IsValid / ValidationError for errors.
func New(options ...Option) *Client {
	client := &Client{
		defaults:     DefaultConfig(),
		transports:   NewRegistry(),
		interceptors: NewInterceptors(),
		useHTTP:      true,
	}

	for _, option := range options {
		option(client)
	}

	for _, t := range client.transportQueue {
		if err := client.transports.Register(t); err != nil {
			client.setupErrors = append(client.setupErrors, err.Error())
		}
	}
	client.transportQueue = nil

	if client.useHTTP && !client.claims("http") && !client.claims("https") {
		if err := client.transports.Register(NewHTTPTransport(client.httpClient)); err != nil {
			client.setupErrors = append(client.setupErrors, err.Error())
		}
	}

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	return client
}

var (
	defaultOnce   sync.Once
	defaultClient *Client
)

// Default returns a lazily built client with default options.
func Default() *Client {
	defaultOnce.Do(func() {
		defaultClient = New()
	})
	return defaultClient
}

// Interceptors returns the client's interceptor chains.
func (c *Client) Interceptors() *Interceptors { return c.interceptors }

// Transports returns the client's transport registry.
func (c *Client) Transports() *Registry { return c.transports }

// AbortController returns the controller tasks are registered with, or nil.
func (c *Client) AbortController() *AbortController { return c.aborts }

// Metrics returns the metrics collector, or nil.
func (c *Client) Metrics() *MetricsCollector { return c.metrics }

// Defaults returns a copy of the default configuration.
func (c *Client) Defaults() *Config { return c.defaults.Clone() }

// Call is a dispatched attempt: a Task for its Response plus the stage the
// attempt has reached.
type Call struct {
	*Task[*Response]
	client *Client
	stage  atomic.Int32
}

// Stage returns the current dispatch stage.
func (c *Call) Stage() Stage {
	return Stage(c.stage.Load())
}

// Abort cancels the attempt. The task settles as a RequestAbortedError once
// the transport observes the cancellation.
func (c *Call) Abort() {
	if c.client.aborts != nil && c.client.aborts.Abort(c.ID()) {
		return
	}
	if c.Task.cancel != nil {
		c.Task.cancel(ErrAborted)
	}
}

// KeepAlive marks the attempt as alive for the current heartbeat cycle. It
// reports false when the client has no abort controller or the call settled.
func (c *Call) KeepAlive() bool {
	if c.client.aborts == nil {
		return false
	}
	return c.client.aborts.KeepAlive(c.ID())
}

func (c *Call) setStage(s Stage) {
	c.stage.Store(int32(s))
}

// Request dispatches cfg asynchronously. cfg is merged with the client
// defaults into a private copy before anything else happens.
func (c *Client) Request(ctx context.Context, cfg *Config) *Call {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg = cfg.mergeDefaults(c.defaults)

	attemptCtx, cancel := context.WithCancelCause(ctx)
	call := &Call{Task: NewTask[*Response](cancel), client: c}
	call.setStage(StageCreated)

	if cfg.CancelToken != nil {
		stop := cfg.CancelToken.link(cancel)
		call.Finally(func() { stop() })
	}
	if c.aborts != nil {
		id := call.ID()
		c.aborts.Register(id, cancel)
		call.Finally(func() { c.aborts.Unregister(id) })
	}
	call.Finally(func() { cancel(nil) })

	go c.dispatch(attemptCtx, call, cfg)
	return call
}

// Do dispatches cfg and waits for the outcome. A returned error is always an *Error.
func (c *Client) Do(ctx context.Context, cfg *Config) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	call := c.Request(ctx, cfg)
	resp, err := call.Wait(ctx)
	if err != nil {
		if _, ok := AsError(err); !ok {
			e := ClassifyConnectionError(err, cfg)
			e.RequestID = call.ID()
			return nil, e
		}
		return nil, err
	}
	return resp, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, url string, overrides ...ConfigOption) (*Response, error) {
	return c.Do(ctx, configFor(http.MethodGet, url, nil, overrides))
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, url string, overrides ...ConfigOption) (*Response, error) {
	return c.Do(ctx, configFor(http.MethodDelete, url, nil, overrides))
}

// Head performs a HEAD request.
func (c *Client) Head(ctx context.Context, url string, overrides ...ConfigOption) (*Response, error) {
	return c.Do(ctx, configFor(http.MethodHead, url, nil, overrides))
}

// Options performs an OPTIONS request.
func (c *Client) Options(ctx context.Context, url string, overrides ...ConfigOption) (*Response, error) {
	return c.Do(ctx, configFor(http.MethodOptions, url, nil, overrides))
}

// Post performs a POST request with data as body.
func (c *Client) Post(ctx context.Context, url string, data any, overrides ...ConfigOption) (*Response, error) {
	return c.Do(ctx, configFor(http.MethodPost, url, data, overrides))
}

// Put performs a PUT request with data as body.
func (c *Client) Put(ctx context.Context, url string, data any, overrides ...ConfigOption) (*Response, error) {
	return c.Do(ctx, configFor(http.MethodPut, url, data, overrides))
}

// Patch performs a PATCH request with data as body.
func (c *Client) Patch(ctx context.Context, url string, data any, overrides ...ConfigOption) (*Response, error) {
	return c.Do(ctx, configFor(http.MethodPatch, url, data, overrides))
}

// DoAs dispatches cfg expecting a T. Unless cfg names an expected type it is
// inferred from T.
func DoAs[T any](ctx context.Context, c *Client, cfg *Config) (T, *Response, error) {
	var zero T
	cfg = cfg.Clone()
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ResponseType == nil {
		cfg.ResponseType = ResolveFor[T]()
	}

	resp, err := c.Do(ctx, cfg)
	if err != nil {
		return zero, resp, err
	}
	if resp.Data == nil {
		return zero, resp, nil
	}
	data, ok := resp.Data.(T)
	if !ok {
		e := newError(ErrorTypeDataProcessing, resp.Config, "response data is %T, not %T", resp.Data, zero)
		e.Response = resp
		e.Status = resp.Status
		return zero, resp, e
	}
	return data, resp, nil
}

// GetAs performs a GET request decoding the body into a T.
func GetAs[T any](ctx context.Context, c *Client, url string, overrides ...ConfigOption) (T, *Response, error) {
	return DoAs[T](ctx, c, configFor(http.MethodGet, url, nil, overrides))
}

// PostAs performs a POST request decoding the body into a T.
func PostAs[T any](ctx context.Context, c *Client, url string, data any, overrides ...ConfigOption) (T, *Response, error) {
	return DoAs[T](ctx, c, configFor(http.MethodPost, url, data, overrides))
}

func configFor(method, url string, data any, overrides []ConfigOption) *Config {
	cfg := &Config{URL: url, Method: method, Data: data}
	for _, override := range overrides {
		override(cfg)
	}
	return cfg
}

type originalConfigKey struct{}

// OriginalConfig returns the Config an attempt started from, before any
// request interceptor ran. It is available to interceptors through their ctx.
func OriginalConfig(ctx context.Context) (*Config, bool) {
	cfg, ok := ctx.Value(originalConfigKey{}).(*Config)
	if !ok {
		return nil, false
	}
	return cfg.Clone(), true
}

func (c *Client) dispatch(ctx context.Context, call *Call, cfg *Config) {
	start := time.Now()
	method := cfg.method()
	scheme, _ := cfg.Scheme()

	if c.debug && c.logger != nil {
		c.logger.Debug("Starting request", "task", call.ID(), "method", method, "url", cfg.URL)
	}
	c.metrics.RecordRequestStart(method, scheme)

	resp, e := c.execute(ctx, call, cfg)

	c.metrics.RecordRequestEnd(method, scheme)
	status := 0
	switch {
	case resp != nil:
		status = resp.Status
	case e != nil && e.Response != nil:
		status = e.Response.Status
	}
	c.metrics.RecordRequest(method, scheme, status, time.Since(start))

	if e != nil {
		c.metrics.RecordError(e.Type, method, scheme)
		if c.debug && c.logger != nil {
			c.logger.Debug("Request rejected", "task", call.ID(), "type", e.Type, "status", e.Status, "message", e.Message, "duration", time.Since(start))
		}
		call.setStage(StageRejected)
		call.Reject(e)
		return
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("Request succeeded", "task", call.ID(), "status", status, "duration", time.Since(start))
	}
	call.setStage(StageSucceeded)
	call.Resolve(resp)
}

func (c *Client) execute(ctx context.Context, call *Call, cfg *Config) (*Response, *Error) {
	ctx = context.WithValue(ctx, originalConfigKey{}, cfg.Clone())

	cfg, recovered, e := runRequestChain(ctx, c.interceptors.Request.Items(), cfg)
	if e != nil {
		e.RequestID = call.ID()
		return nil, e
	}
	if recovered != nil {
		return recovered, nil
	}
	call.setStage(StageRequestIntercepted)

	if cfg.ResponseType == nil {
		cfg.ResponseType = c.resolver.Resolve(cfg)
	}
	chain := c.interceptors.Response.Items()

	req, err := NewRequest(cfg)
	if err != nil {
		e := interceptorError(err, ErrorTypeConfiguration, cfg, nil)
		e.RequestID = call.ID()
		return c.reject(ctx, chain, e)
	}
	transport, err := c.transports.ResolveFor(cfg)
	if err != nil {
		e := interceptorError(err, ErrorTypeConfiguration, cfg, nil)
		e.RequestID = req.ID
		return c.reject(ctx, chain, e)
	}

	call.setStage(StageDispatched)
	raw, err := perform(ctx, transport, req)
	if err != nil {
		e := ClassifyConnectionError(err, cfg)
		e.RequestID = req.ID
		if e.Type == ErrorTypeRequestAborted {
			if cause := context.Cause(ctx); cause != nil {
				e.Cause = cause
			}
		}
		return c.reject(ctx, chain, e)
	}

	headers := raw.Header
	if headers == nil {
		headers = http.Header{}
	}
	resp := &Response{
		Status:  raw.Status,
		Headers: headers,
		Raw:     raw.Body,
		Request: req,
		Config:  cfg,
	}

	if cfg.validStatus(raw.Status) {
		data, err := decode(cfg.ResponseType, raw.Body)
		if err != nil {
			e := &Error{
				Type:      ErrorTypeDataProcessing,
				Message:   fmt.Sprintf("unable to parse response as %s, received: %s", cfg.ResponseType.Name(), preview(raw.Body)),
				Status:    raw.Status,
				Config:    cfg,
				Response:  resp,
				Cause:     err,
				RequestID: req.ID,
				Timestamp: time.Now(),
			}
			return c.reject(ctx, chain, e)
		}
		resp.Data = data
	} else {
		resp.Data = string(raw.Body)
	}

	resp, wasRecovered, e := runResponseChain(ctx, chain, resp)
	if e != nil {
		e.RequestID = req.ID
		return nil, e
	}
	if wasRecovered {
		return resp, nil
	}

	if !cfg.validStatus(resp.Status) {
		e := NewErrorFromResponse(resp, nil)
		e.Config = cfg
		e.RequestID = req.ID
		return c.reject(ctx, chain, e)
	}
	return resp, nil
}

// reject runs every response error handler over e.
func (c *Client) reject(ctx context.Context, chain []*ResponseInterceptor, e *Error) (*Response, *Error) {
	return runErrorHandlers(ctx, responseErrorHandlers(chain), e)
}

func (c *Client) claims(scheme string) bool {
	_, err := c.transports.Resolve(scheme)
	return err == nil
}

func perform(ctx context.Context, t Transport, req *Request) (raw *RawResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			raw, err = nil, fmt.Errorf("transport panicked: %v", r)
		}
	}()
	raw, err = t.PerformRequest(ctx, req)
	if err == nil && raw == nil {
		err = fmt.Errorf("transport %T returned no response", t)
	}
	return raw, err
}

func decode(t ExpectedType, body []byte) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("decoder panicked: %v", r)
		}
	}()
	return t.Decode(body)
}

func preview(body []byte) string {
	const limit = 256
	if len(body) <= limit {
		return string(body)
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return string(body[:cut]) + "..."
}
