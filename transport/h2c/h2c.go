// Package h2c serves the "h2c" scheme: HTTP/2 with prior knowledge over a
// cleartext TCP connection. An h2c URL is dispatched as its http equivalent.
package h2c

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"time"

	"golang.org/x/net/http2"

	"github.com/kind-men/uxios"
)

// Scheme is the URL scheme served by Transport.
const Scheme = "h2c"

// Transport performs requests over an unencrypted HTTP/2 connection.
type Transport struct {
	rt      *http2.Transport
	timeout time.Duration
}

// Option configures a Transport.
type Option func(*Transport)

// WithDialer replaces the dialer used to open connections.
func WithDialer(d *net.Dialer) Option {
	return func(t *Transport) {
		t.rt.DialTLSContext = plainDial(d)
	}
}

// WithReadIdleTimeout enables health check pings after d without frames.
func WithReadIdleTimeout(d time.Duration) Option {
	return func(t *Transport) {
		t.rt.ReadIdleTimeout = d
	}
}

// WithDefaultTimeout bounds requests whose Config sets no timeout.
func WithDefaultTimeout(d time.Duration) Option {
	return func(t *Transport) {
		t.timeout = d
	}
}

// New returns an h2c transport.
func New(options ...Option) *Transport {
	t := &Transport{
		rt: &http2.Transport{
			AllowHTTP:      true,
			DialTLSContext: plainDial(&net.Dialer{Timeout: 10 * time.Second}),
		},
		timeout: 30 * time.Second,
	}
	for _, option := range options {
		option(t)
	}
	return t
}

func plainDial(d *net.Dialer) func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
	return func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
		return d.DialContext(ctx, network, addr)
	}
}

// Schemes implements uxios.Transport.
func (t *Transport) Schemes() []string { return []string{Scheme} }

// PerformRequest implements uxios.Transport. Redirects are not followed.
func (t *Transport) PerformRequest(ctx context.Context, req *uxios.Request) (*uxios.RawResponse, error) {
	timeout := t.timeout
	if req.Config != nil && req.Config.Timeout > 0 {
		timeout = req.Config.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	httpReq, err := req.HTTPRequest(ctx)
	if err != nil {
		return nil, err
	}
	httpReq.URL.Scheme = "http"

	resp, err := t.rt.RoundTrip(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &uxios.RawResponse{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// CloseIdleConnections closes connections that carry no active streams.
func (t *Transport) CloseIdleConnections() {
	t.rt.CloseIdleConnections()
}
