package uxios

import (
	"context"
	"sync"
)

// NetworkInspector logs every request, response and error passing through a
// client. It installs itself at PriorityLogging so it sees the final values.
type NetworkInspector struct {
	logger   func() Logger
	request  *RequestInterceptor
	response *ResponseInterceptor

	mu        sync.Mutex
	installed *Interceptors
}

// NewNetworkInspector returns an inspector writing to logger.
func NewNetworkInspector(logger Logger) *NetworkInspector {
	return newNetworkInspector(func() Logger { return logger })
}

// newNetworkInspector looks the logger up on every entry.
func newNetworkInspector(logger func() Logger) *NetworkInspector {
	n := &NetworkInspector{logger: logger}
	n.request = &RequestInterceptor{OnSuccess: n.logRequest, OnError: n.logError}
	n.response = &ResponseInterceptor{OnSuccess: n.logResponse, OnError: n.logError}
	return n
}

// Install adds the inspector to i. Installing twice is a no-op.
func (n *NetworkInspector) Install(i *Interceptors) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.installed != nil {
		return
	}
	i.Request.TryAdd(n.request, PriorityLogging)
	i.Response.TryAdd(n.response, PriorityLogging)
	n.installed = i
}

// Uninstall removes the inspector from the chains it was installed on.
func (n *NetworkInspector) Uninstall() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.installed == nil {
		return
	}
	n.installed.Request.Remove(n.request)
	n.installed.Response.Remove(n.response)
	n.installed = nil
}

func (n *NetworkInspector) logRequest(_ context.Context, cfg *Config) (*Config, error) {
	n.logger().Info("uxios request",
		"method", cfg.method(),
		"url", cfg.URL,
		"baseURL", cfg.BaseURL,
		"params", cfg.Params.Encode(),
		"headers", len(cfg.Headers),
	)
	return cfg, nil
}

func (n *NetworkInspector) logResponse(_ context.Context, resp *Response) (*Response, error) {
	url := ""
	if resp.Request != nil {
		url = resp.Request.FullURL()
	}
	n.logger().Info("uxios response",
		"status", resp.Status,
		"url", url,
		"contentType", resp.ContentType(),
		"bytes", len(resp.Raw),
	)
	return resp, nil
}

func (n *NetworkInspector) logError(_ context.Context, e *Error) (*Response, error) {
	n.logger().Error("uxios error",
		"type", e.Type,
		"family", e.Family(),
		"status", e.Status,
		"message", e.Message,
		"requestID", e.RequestID,
	)
	return nil, nil
}

// WithNetworkInspector logs all traffic through the client logger, or a
// simple logger when none is set. The logger is resolved per entry, so the
// option may come before WithLogger.
func WithNetworkInspector() Option {
	return func(c *Client) {
		var (
			once     sync.Once
			fallback Logger
		)
		newNetworkInspector(func() Logger {
			if c.logger != nil {
				return c.logger
			}
			once.Do(func() { fallback = NewSimpleLogger() })
			return fallback
		}).Install(c.interceptors)
	}
}
