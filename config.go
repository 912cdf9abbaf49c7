package uxios

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultMaxRedirects is used when a Config leaves MaxRedirects at zero.
	DefaultMaxRedirects = 5

	// NoRedirects disables redirect following.
	NoRedirects = -1
)

// Config describes one request before normalization. The pipeline clones a
// Config before touching it, so the caller's value is never mutated.
//
// Zero-valued fields are filled from the client defaults at dispatch time.
type Config struct {
	URL     string
	BaseURL string
	Method  string
	Headers http.Header
	Params  *Params

	// Data is the request body. It is shared between clones and must be
	// treated as immutable once set.
	Data any

	Timeout        time.Duration
	MaxRedirects   int
	ValidateStatus func(status int) bool
	ResponseType   ExpectedType
	Auth           Credentials
	CancelToken    *CancelToken
}

// DefaultValidateStatus accepts 2xx statuses.
func DefaultValidateStatus(status int) bool {
	return status >= 200 && status <= 299
}

// DefaultConfig returns the configuration every client starts from.
func DefaultConfig() *Config {
	return &Config{
		Method:         http.MethodGet,
		Headers:        http.Header{},
		Params:         NewParams(),
		MaxRedirects:   DefaultMaxRedirects,
		ValidateStatus: DefaultValidateStatus,
	}
}

// Clone copies c. Headers and Params are copied by value; Data, Auth,
// ResponseType, ValidateStatus and CancelToken are shared.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Headers = c.Headers.Clone()
	if clone.Headers == nil {
		clone.Headers = http.Header{}
	}
	clone.Params = c.Params.Clone()
	return &clone
}

// ConfigOption overrides a field of a Config.
type ConfigOption func(*Config)

// BasedOn clones base, or DefaultConfig when base is nil, and applies overrides.
func BasedOn(base *Config, overrides ...ConfigOption) *Config {
	var cfg *Config
	if base == nil {
		cfg = DefaultConfig()
	} else {
		cfg = base.Clone()
	}
	for _, override := range overrides {
		override(cfg)
	}
	return cfg
}

// WithURL sets the target URL.
func WithURL(u string) ConfigOption {
	return func(c *Config) {
		c.URL = u
	}
}

// WithBaseURL sets the URL relative targets are resolved against.
func WithBaseURL(u string) ConfigOption {
	return func(c *Config) {
		c.BaseURL = u
	}
}

// WithMethod sets the HTTP method.
func WithMethod(method string) ConfigOption {
	return func(c *Config) {
		c.Method = strings.ToUpper(method)
	}
}

// WithHeader adds a header value.
func WithHeader(key, value string) ConfigOption {
	return func(c *Config) {
		if c.Headers == nil {
			c.Headers = http.Header{}
		}
		c.Headers.Add(key, value)
	}
}

// WithParam adds a query parameter value.
func WithParam(key, value string) ConfigOption {
	return func(c *Config) {
		if c.Params == nil {
			c.Params = NewParams()
		}
		c.Params.Add(key, value)
	}
}

// WithParams appends every entry of p.
func WithParams(p *Params) ConfigOption {
	return func(c *Config) {
		if c.Params == nil {
			c.Params = NewParams()
		}
		c.Params = c.Params.Merge(p)
	}
}

// WithData sets the request body.
func WithData(data any) ConfigOption {
	return func(c *Config) {
		c.Data = data
	}
}

// WithTimeout sets the transport timeout.
func WithTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithMaxRedirects sets the redirect limit. Use NoRedirects to disable redirects.
func WithMaxRedirects(n int) ConfigOption {
	return func(c *Config) {
		c.MaxRedirects = n
	}
}

// WithValidateStatus sets the predicate deciding which statuses succeed.
func WithValidateStatus(fn func(status int) bool) ConfigOption {
	return func(c *Config) {
		c.ValidateStatus = fn
	}
}

// WithResponseType sets how the response body is decoded.
func WithResponseType(t ExpectedType) ConfigOption {
	return func(c *Config) {
		c.ResponseType = t
	}
}

// WithAuth sets the credentials.
func WithAuth(creds Credentials) ConfigOption {
	return func(c *Config) {
		c.Auth = creds
	}
}

// WithCancelToken attaches a cancellation token.
func WithCancelToken(token *CancelToken) ConfigOption {
	return func(c *Config) {
		c.CancelToken = token
	}
}

// mergeDefaults returns a clone of c with zero-valued fields taken from defaults.
// Default headers and params are only added for keys c does not set.
func (c *Config) mergeDefaults(defaults *Config) *Config {
	merged := c.Clone()
	if merged == nil {
		merged = DefaultConfig()
	}
	if defaults == nil {
		return merged
	}

	if merged.BaseURL == "" {
		merged.BaseURL = defaults.BaseURL
	}
	if merged.Method == "" {
		merged.Method = defaults.Method
	}
	for key, values := range defaults.Headers {
		if _, ok := merged.Headers[key]; !ok {
			merged.Headers[key] = append([]string(nil), values...)
		}
	}
	for _, key := range defaults.Params.Keys() {
		if !merged.Params.Has(key) {
			merged.Params.Set(key, defaults.Params.Values(key)...)
		}
	}
	if merged.Timeout == 0 {
		merged.Timeout = defaults.Timeout
	}
	if merged.MaxRedirects == 0 {
		merged.MaxRedirects = defaults.MaxRedirects
	}
	if merged.ValidateStatus == nil {
		merged.ValidateStatus = defaults.ValidateStatus
	}
	if merged.ResponseType == nil {
		merged.ResponseType = defaults.ResponseType
	}
	if merged.Auth == nil {
		merged.Auth = defaults.Auth
	}
	if merged.CancelToken == nil {
		merged.CancelToken = defaults.CancelToken
	}
	return merged
}

func (c *Config) method() string {
	if c.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(c.Method)
}

func (c *Config) validStatus(status int) bool {
	if c.ValidateStatus == nil {
		return DefaultValidateStatus(status)
	}
	return c.ValidateStatus(status)
}

func (c *Config) maxRedirects() int {
	switch {
	case c.MaxRedirects == 0:
		return DefaultMaxRedirects
	case c.MaxRedirects < 0:
		return 0
	default:
		return c.MaxRedirects
	}
}

// AbsoluteURL resolves URL against BaseURL when URL is relative.
func (c *Config) AbsoluteURL() (*url.URL, error) {
	target, err := url.Parse(c.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", c.URL, err)
	}
	if target.IsAbs() {
		return target, nil
	}
	if c.BaseURL == "" {
		return nil, fmt.Errorf("relative url %q without a base url", c.URL)
	}
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", c.BaseURL, err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("base url %q is not absolute", c.BaseURL)
	}
	return base.ResolveReference(target), nil
}

// Scheme returns the lower-cased scheme of the URL, or of the base URL when
// the URL is relative.
func (c *Config) Scheme() (string, error) {
	target, err := c.AbsoluteURL()
	if err != nil {
		return "", err
	}
	return strings.ToLower(target.Scheme), nil
}
