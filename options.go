package uxios

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// WithDefaultConfig applies overrides to the configuration every request is
// merged with.
func WithDefaultConfig(overrides ...ConfigOption) Option {
	return func(c *Client) {
		for _, override := range overrides {
			override(c.defaults)
		}
	}
}

// WithDefaults replaces the default configuration. Zero fields of cfg keep
// the library defaults.
func WithDefaults(cfg *Config) Option {
	return func(c *Client) {
		c.defaults = cfg.mergeDefaults(DefaultConfig())
	}
}

// WithTransport registers a transport for the schemes it declares.
func WithTransport(t Transport) Option {
	return func(c *Client) {
		c.transportQueue = append(c.transportQueue, t)
	}
}

// WithHTTPClient sets the net/http client used by the default http(s) transport.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithoutDefaultTransport skips registering the net/http transport.
func WithoutDefaultTransport() Option {
	return func(c *Client) {
		c.useHTTP = false
	}
}

// WithRequestInterceptor adds a request interceptor at priority.
func WithRequestInterceptor(ic *RequestInterceptor, priority int) Option {
	return func(c *Client) {
		if err := c.interceptors.Request.Add(ic, priority); err != nil {
			c.setupErrors = append(c.setupErrors, fmt.Sprintf("request interceptor: %v", err))
		}
	}
}

// WithResponseInterceptor adds a response interceptor at priority.
func WithResponseInterceptor(ic *ResponseInterceptor, priority int) Option {
	return func(c *Client) {
		if err := c.interceptors.Response.Add(ic, priority); err != nil {
			c.setupErrors = append(c.setupErrors, fmt.Sprintf("response interceptor: %v", err))
		}
	}
}

// WithExpectedType sets the expected type used when a request names none.
func WithExpectedType(t ExpectedType) Option {
	return func(c *Client) {
		c.resolver.Default = t
	}
}

// WithAbortController registers every dispatched task with ac.
func WithAbortController(ac *AbortController) Option {
	return func(c *Client) {
		c.aborts = ac
	}
}

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSimpleLogger sets a slog text logger writing to stderr.
func WithSimpleLogger() Option {
	return func(c *Client) {
		c.logger = NewSimpleLogger()
	}
}

// WithDebug logs every dispatch through the client logger.
func WithDebug() Option {
	return func(c *Client) {
		c.debug = true
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsRegistry enables Prometheus metrics on registry.
func WithMetricsRegistry(registry prometheus.Registerer) Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollectorWithRegistry(registry)
	}
}

// WithMetricsCollector sets a pre-built metrics collector.
func WithMetricsCollector(mc *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = mc
	}
}

// ValidateConfiguration reports setup problems such as conflicting
// transports or an unusable default base URL.
func (c *Client) ValidateConfiguration() error {
	var errors []string
	errors = append(errors, c.setupErrors...)

	if c.defaults == nil {
		errors = append(errors, "default config must not be nil")
	} else {
		if c.defaults.BaseURL != "" {
			u, err := url.Parse(c.defaults.BaseURL)
			switch {
			case err != nil:
				errors = append(errors, fmt.Sprintf("invalid base url: %v", err))
			case !u.IsAbs():
				errors = append(errors, fmt.Sprintf("base url %q must be absolute", c.defaults.BaseURL))
			}
		}
		if c.defaults.Timeout < 0 {
			errors = append(errors, "timeout must be non-negative")
		}
		if c.defaults.MaxRedirects < NoRedirects {
			errors = append(errors, "maxRedirects must be NoRedirects, zero or positive")
		}
	}

	if len(c.transports.Schemes()) == 0 {
		errors = append(errors, "no transports registered")
	}

	if len(errors) > 0 {
		return &Error{
			Type:    ErrorTypeConfiguration,
			Message: fmt.Sprintf("invalid configuration: %s", strings.Join(errors, "; ")),
		}
	}

	return nil
}

// IsValid reports whether New found no configuration problems.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the problems found by New, or nil.
func (c *Client) ValidationError() error {
	return c.validationError
}
