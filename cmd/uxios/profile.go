package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/kind-men/uxios"
)

// Profile is a named set of request defaults loaded from YAML.
type Profile struct {
	BaseURL      string            `yaml:"base_url"`
	Timeout      time.Duration     `yaml:"timeout"`
	MaxRedirects int               `yaml:"max_redirects"`
	Headers      map[string]string `yaml:"headers"`
	Params       map[string]string `yaml:"params"`
	ResponseType string            `yaml:"response_type"`
	Auth         AuthProfile       `yaml:"auth"`
	Store        string            `yaml:"store"`
	H2C          bool              `yaml:"h2c"`
	Debug        bool              `yaml:"debug"`
	RateLimit    *RateLimitProfile `yaml:"rate_limit"`
	Retry        *RetryProfile     `yaml:"retry"`
}

// AuthProfile holds at most one kind of credentials.
type AuthProfile struct {
	Bearer string `yaml:"bearer"`
	Basic  *struct {
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"basic"`
	Query *struct {
		Key   string `yaml:"key"`
		Value string `yaml:"value"`
	} `yaml:"query"`
}

type RateLimitProfile struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
	Wait  bool    `yaml:"wait"`
}

type RetryProfile struct {
	MaxRetries int           `yaml:"max_retries"`
	Initial    time.Duration `yaml:"initial"`
	Max        time.Duration `yaml:"max"`
	Multiplier float64       `yaml:"multiplier"`
	Jitter     float64       `yaml:"jitter"`
}

// LoadProfile reads a profile from path.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile decodes a YAML profile. Unknown keys are rejected.
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	if _, err := p.Overrides(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Overrides converts the request related part of the profile.
func (p *Profile) Overrides() ([]uxios.ConfigOption, error) {
	var overrides []uxios.ConfigOption
	if p.BaseURL != "" {
		overrides = append(overrides, uxios.WithBaseURL(p.BaseURL))
	}
	if p.Timeout != 0 {
		overrides = append(overrides, uxios.WithTimeout(p.Timeout))
	}
	if p.MaxRedirects != 0 {
		overrides = append(overrides, uxios.WithMaxRedirects(p.MaxRedirects))
	}
	for key, value := range p.Headers {
		overrides = append(overrides, uxios.WithHeader(key, value))
	}
	for key, value := range p.Params {
		overrides = append(overrides, uxios.WithParam(key, value))
	}

	if p.ResponseType != "" {
		t, err := responseType(p.ResponseType)
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, uxios.WithResponseType(t))
	}

	creds, err := p.Auth.credentials()
	if err != nil {
		return nil, err
	}
	if creds != nil {
		overrides = append(overrides, uxios.WithAuth(creds))
	}
	return overrides, nil
}

// ClientOptions converts the client related part of the profile.
func (p *Profile) ClientOptions() []uxios.Option {
	var options []uxios.Option
	if p.Debug {
		options = append(options, uxios.WithSimpleLogger(), uxios.WithDebug())
	}
	if rl := p.RateLimit; rl != nil && rl.RPS > 0 {
		burst := max(rl.Burst, 1)
		if rl.Wait {
			options = append(options, uxios.WithRateLimiterWait(rate.Limit(rl.RPS), burst))
		} else {
			options = append(options, uxios.WithRateLimiter(rate.Limit(rl.RPS), burst))
		}
	}
	if r := p.Retry; r != nil && r.MaxRetries > 0 {
		initial := r.Initial
		if initial == 0 {
			initial = 100 * time.Millisecond
		}
		maxDelay := r.Max
		if maxDelay == 0 {
			maxDelay = 5 * time.Second
		}
		multiplier := r.Multiplier
		if multiplier == 0 {
			multiplier = 2
		}
		policy := uxios.NewDefaultRetryPolicy(r.MaxRetries, initial, maxDelay, multiplier, r.Jitter)
		options = append(options, uxios.WithRetry(policy))
	}
	return options
}

func (a AuthProfile) credentials() (uxios.Credentials, error) {
	var found []uxios.Credentials
	if a.Bearer != "" {
		found = append(found, uxios.BearerToken(a.Bearer))
	}
	if a.Basic != nil {
		found = append(found, uxios.BasicAuth{Username: a.Basic.Username, Password: a.Basic.Password})
	}
	if a.Query != nil {
		found = append(found, uxios.QueryParameterAuth{Key: a.Query.Key, Value: a.Query.Value})
	}
	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("profile auth: only one of bearer, basic and query may be set")
	}
}

func responseType(name string) (uxios.ExpectedType, error) {
	switch name {
	case "json":
		return uxios.JSON(), nil
	case "text":
		return uxios.Text(), nil
	case "arraybuffer", "raw":
		return uxios.ArrayBuffer(), nil
	default:
		return nil, fmt.Errorf("unknown response type %q", name)
	}
}
