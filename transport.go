package uxios

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	// ErrSchemeClaimed is the cause of registering a second transport for a scheme.
	ErrSchemeClaimed = errors.New("uxios: scheme already claimed by another transport")

	// ErrNoTransport is the cause of dispatching to a scheme nobody serves.
	ErrNoTransport = errors.New("uxios: no transport registered for scheme")
)

// Transport performs the actual I/O for one or more URL schemes. It owns
// redirects and timeout enforcement, and must return promptly once ctx is done.
type Transport interface {
	Schemes() []string
	PerformRequest(ctx context.Context, req *Request) (*RawResponse, error)
}

// TransportFunc adapts a function to a Transport serving the given schemes.
func TransportFunc(fn func(ctx context.Context, req *Request) (*RawResponse, error), schemes ...string) Transport {
	return &funcTransport{fn: fn, schemes: schemes}
}

type funcTransport struct {
	fn      func(ctx context.Context, req *Request) (*RawResponse, error)
	schemes []string
}

func (t *funcTransport) Schemes() []string { return t.schemes }

func (t *funcTransport) PerformRequest(ctx context.Context, req *Request) (*RawResponse, error) {
	return t.fn(ctx, req)
}

// Registry maps URL schemes to transports. Schemes are case-insensitive.
type Registry struct {
	mu         sync.RWMutex
	transports map[string]Transport
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{transports: make(map[string]Transport)}
}

// Register claims every scheme t declares. Nothing is registered when one of
// them is already claimed.
func (r *Registry) Register(t Transport) error {
	schemes := t.Schemes()
	if len(schemes) == 0 {
		return newError(ErrorTypeConfiguration, nil, "transport %T declares no schemes", t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, scheme := range schemes {
		if _, claimed := r.transports[strings.ToLower(scheme)]; claimed {
			e := newError(ErrorTypeConfiguration, nil, "scheme %q is already claimed", scheme)
			e.Cause = ErrSchemeClaimed
			return e
		}
	}
	for _, scheme := range schemes {
		r.transports[strings.ToLower(scheme)] = t
	}
	return nil
}

// Deregister releases scheme and reports whether it was claimed.
func (r *Registry) Deregister(scheme string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(scheme)
	_, ok := r.transports[key]
	delete(r.transports, key)
	return ok
}

// Resolve returns the transport claiming scheme.
func (r *Registry) Resolve(scheme string) (Transport, error) {
	r.mu.RLock()
	t, ok := r.transports[strings.ToLower(scheme)]
	r.mu.RUnlock()
	if !ok {
		e := newError(ErrorTypeConfiguration, nil, "no transport registered for scheme %q", scheme)
		e.Cause = ErrNoTransport
		return nil, e
	}
	return t, nil
}

// ResolveFor returns the transport for cfg's URL, or its base URL when the
// URL is relative.
func (r *Registry) ResolveFor(cfg *Config) (Transport, error) {
	scheme, err := cfg.Scheme()
	if err != nil {
		e := newError(ErrorTypeConfiguration, cfg, "%v", err)
		e.Cause = err
		return nil, e
	}
	t, err := r.Resolve(scheme)
	if e, ok := AsError(err); ok {
		e.Config = cfg
	}
	return t, err
}

// Schemes returns the claimed schemes in sorted order.
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.transports))
	for scheme := range r.transports {
		out = append(out, scheme)
	}
	sort.Strings(out)
	return out
}

// HTTPTransport serves http and https through a net/http client.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport wraps client; nil uses a client with a 30s timeout.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPTransport{client: client}
}

func (t *HTTPTransport) Schemes() []string { return []string{"http", "https"} }

// PerformRequest honours Config.Timeout and Config.MaxRedirects.
func (t *HTTPTransport) PerformRequest(ctx context.Context, req *Request) (*RawResponse, error) {
	if timeout := req.Config.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	httpReq, err := req.HTTPRequest(ctx)
	if err != nil {
		return nil, err
	}

	client := *t.client
	limit := req.Config.maxRedirects()
	client.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
		if len(via) > limit {
			return http.ErrUseLastResponse
		}
		return nil
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &RawResponse{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}
