package uxios

import (
	"net/http"
	"strings"
)

// RawResponse is what a Transport hands back before any interpretation.
type RawResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

// Response is the settled result of a successful attempt.
type Response struct {
	Status  int
	Headers http.Header

	// Data holds the body decoded according to the expected type. When the
	// status did not validate it holds the body text instead.
	Data any
	Raw  []byte

	Request *Request
	Config  *Config
}

// Valid reports whether the status passes Config.ValidateStatus.
func (r *Response) Valid() bool {
	if r == nil {
		return false
	}
	if r.Config == nil {
		return DefaultValidateStatus(r.Status)
	}
	return r.Config.validStatus(r.Status)
}

// Text returns the raw body as a string.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return string(r.Raw)
}

// ContentType returns the media type of the body without parameters.
func (r *Response) ContentType() string {
	if r == nil {
		return ""
	}
	mediaType, _, _ := strings.Cut(r.Headers.Get("Content-Type"), ";")
	return strings.TrimSpace(mediaType)
}

// Option represents a client configuration option.
type Option func(*Client)

// Stage is the position of an attempt in the dispatch state machine.
type Stage int32

const (
	StageCreated Stage = iota
	StageRequestIntercepted
	StageDispatched
	StageSucceeded
	StageRejected
)

func (s Stage) String() string {
	switch s {
	case StageCreated:
		return "created"
	case StageRequestIntercepted:
		return "request-intercepted"
	case StageDispatched:
		return "dispatched"
	case StageSucceeded:
		return "succeeded"
	case StageRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is Succeeded or Rejected.
func (s Stage) Terminal() bool {
	return s == StageSucceeded || s == StageRejected
}
