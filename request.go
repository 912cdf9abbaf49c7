package uxios

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Request is the normalized, attempt-scoped form of a Config. It is built
// once per attempt and must not be modified afterwards.
type Request struct {
	ID     string
	Method string

	// URL is absolute and carries no query; see Query and FullURL.
	URL    *url.URL
	Query  *Params
	Header http.Header
	Body   []byte

	Config *Config
}

// NewRequest derives a Request from cfg:
//
//   - {name} placeholders in the URL are filled from, and removed from, the params
//   - a relative URL is resolved against the base URL
//   - URL-embedded query parameters and cfg.Params are unioned
//   - credentials contribute an Authorization header or query parameters
//   - the expected type contributes its metadata
//   - the body is serialized and its Content-Type inferred
//
// Headers derived here never replace headers set on cfg.
func NewRequest(cfg *Config) (*Request, error) {
	if cfg == nil {
		return nil, newError(ErrorTypeConfiguration, nil, "nil config")
	}

	params := cfg.Params.Clone()
	expanded := *cfg
	expanded.URL = TemplatedURI(cfg.URL).ExpandConsuming(params)

	target, err := expanded.AbsoluteURL()
	if err != nil {
		e := newError(ErrorTypeConfiguration, cfg, "%v", err)
		e.Cause = err
		return nil, e
	}
	embedded, err := ParseParams(target.RawQuery)
	if err != nil {
		e := newError(ErrorTypeConfiguration, cfg, "invalid query in url %q", cfg.URL)
		e.Cause = err
		return nil, e
	}
	u := *target
	u.RawQuery = ""
	u.ForceQuery = false

	req := &Request{
		ID:     uuid.NewString(),
		Method: cfg.method(),
		URL:    &u,
		Query:  embedded.Merge(params),
		Header: cfg.Headers.Clone(),
		Config: cfg,
	}
	if req.Header == nil {
		req.Header = http.Header{}
	}

	switch creds := cfg.Auth.(type) {
	case TokenCredentials:
		setIfAbsent(req.Header, "Authorization", creds.AuthorizationToken())
	case QueryCredentials:
		req.Query = req.Query.Merge(creds.QuerySegments())
	}

	if cfg.ResponseType != nil {
		cfg.ResponseType.AddMetadata(req.Header)
	}

	contentType, body, err := encodeBody(cfg.Data)
	if err != nil {
		e := newError(ErrorTypeConfiguration, cfg, "unable to serialize request body of type %T", cfg.Data)
		e.Cause = err
		e.RequestID = req.ID
		return nil, e
	}
	if contentType != "" {
		setIfAbsent(req.Header, "Content-Type", contentType)
	}
	req.Body = body

	return req, nil
}

// FullURL returns the URL with the encoded query attached.
func (r *Request) FullURL() string {
	u := *r.URL
	u.RawQuery = r.Query.Encode()
	return u.String()
}

// Scheme returns the lower-cased URL scheme.
func (r *Request) Scheme() string {
	return strings.ToLower(r.URL.Scheme)
}

// HTTPRequest converts r into a *http.Request for net/http based transports.
func (r *Request) HTTPRequest(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, r.Method, r.FullURL(), body)
	if err != nil {
		return nil, err
	}
	httpReq.Header = r.Header.Clone()
	return httpReq, nil
}

func encodeBody(data any) (string, []byte, error) {
	switch v := data.(type) {
	case nil:
		return "", nil, nil
	case json.RawMessage:
		return "application/json", []byte(v), nil
	case []byte:
		return "application/octet-stream", v, nil
	case string:
		return "text/plain", []byte(v), nil
	case *Params:
		return "application/x-www-form-urlencoded", []byte(v.Encode()), nil
	case url.Values:
		return "application/x-www-form-urlencoded", []byte(v.Encode()), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", nil, err
		}
		return "application/json", b, nil
	}
}
