package uxios

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
)

// ErrorType tags an Error with its place in the failure hierarchy.
type ErrorType string

const (
	ErrorTypeConnection            ErrorType = "ConnectionError"
	ErrorTypeRequestAborted        ErrorType = "RequestAbortedError"
	ErrorTypeDNSResolution         ErrorType = "DnsResolutionError"
	ErrorTypeHostUnreachable       ErrorType = "HostUnreachableError"
	ErrorTypeCertificateValidation ErrorType = "CertificateValidationError"
	ErrorTypeConnectionTimedOut    ErrorType = "ConnectionTimedOutError"
	ErrorTypeConnectionReset       ErrorType = "ConnectionResetByPeerError"

	ErrorTypeProtocol       ErrorType = "ProtocolError"
	ErrorTypeHTTPClient     ErrorType = "HttpClientError"
	ErrorTypeHTTPServer     ErrorType = "HttpServerError"
	ErrorTypeNotFound       ErrorType = "NotFoundError"
	ErrorTypeAuthentication ErrorType = "AuthenticationError"
	ErrorTypeUnauthorized   ErrorType = "UnauthorizedError"
	ErrorTypeForbidden      ErrorType = "ForbiddenError"

	ErrorTypeDataProcessing ErrorType = "DataProcessingError"
	ErrorTypeConfiguration  ErrorType = "ConfigurationError"
)

var errorParents = map[ErrorType]ErrorType{
	ErrorTypeRequestAborted:        ErrorTypeConnection,
	ErrorTypeDNSResolution:         ErrorTypeConnection,
	ErrorTypeHostUnreachable:       ErrorTypeConnection,
	ErrorTypeCertificateValidation: ErrorTypeConnection,
	ErrorTypeConnectionTimedOut:    ErrorTypeConnection,
	ErrorTypeConnectionReset:       ErrorTypeConnection,
	ErrorTypeHTTPClient:            ErrorTypeProtocol,
	ErrorTypeHTTPServer:            ErrorTypeProtocol,
	ErrorTypeNotFound:              ErrorTypeHTTPClient,
	ErrorTypeAuthentication:        ErrorTypeHTTPClient,
	ErrorTypeUnauthorized:          ErrorTypeAuthentication,
	ErrorTypeForbidden:             ErrorTypeAuthentication,
}

// Parent returns the direct ancestor of t, or "" for a family root.
func (t ErrorType) Parent() ErrorType {
	return errorParents[t]
}

// IsA reports whether t equals ancestor or descends from it.
func (t ErrorType) IsA(ancestor ErrorType) bool {
	for cur := t; cur != ""; cur = cur.Parent() {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// Family returns the root of t's hierarchy: ConnectionError, ProtocolError,
// DataProcessingError or ConfigurationError.
func (t ErrorType) Family() ErrorType {
	cur := t
	for cur.Parent() != "" {
		cur = cur.Parent()
	}
	return cur
}

// Sentinels for errors.Is. Matching honours the hierarchy, so an Error of
// type NotFoundError matches ErrNotFound, ErrHTTPClient and ErrProtocol.
var (
	ErrConnection            = &Error{Type: ErrorTypeConnection}
	ErrRequestAborted        = &Error{Type: ErrorTypeRequestAborted}
	ErrDNSResolution         = &Error{Type: ErrorTypeDNSResolution}
	ErrHostUnreachable       = &Error{Type: ErrorTypeHostUnreachable}
	ErrCertificateValidation = &Error{Type: ErrorTypeCertificateValidation}
	ErrConnectionTimedOut    = &Error{Type: ErrorTypeConnectionTimedOut}
	ErrConnectionReset       = &Error{Type: ErrorTypeConnectionReset}
	ErrProtocol              = &Error{Type: ErrorTypeProtocol}
	ErrHTTPClient            = &Error{Type: ErrorTypeHTTPClient}
	ErrHTTPServer            = &Error{Type: ErrorTypeHTTPServer}
	ErrNotFound              = &Error{Type: ErrorTypeNotFound}
	ErrAuthentication        = &Error{Type: ErrorTypeAuthentication}
	ErrUnauthorized          = &Error{Type: ErrorTypeUnauthorized}
	ErrForbidden             = &Error{Type: ErrorTypeForbidden}
	ErrDataProcessing        = &Error{Type: ErrorTypeDataProcessing}
	ErrConfiguration         = &Error{Type: ErrorTypeConfiguration}
)

var (
	// ErrRateLimited is the cause of a request rejected by a rate limiting interceptor.
	ErrRateLimited = errors.New("uxios: rate limited")

	// ErrAborted is the cancellation cause used by AbortController.
	ErrAborted = errors.New("uxios: aborted by abort controller")

	// ErrCanceled is the cancellation cause used by CancelToken.
	ErrCanceled = errors.New("uxios: canceled by cancel token")
)

// Error is the single failure type surfaced by the dispatch pipeline.
// Config is always set once the pipeline has accepted the request; Response
// is only set when a response was actually received.
type Error struct {
	Type      ErrorType
	Message   string
	Status    int
	Config    *Config
	Response  *Response
	Cause     error
	RequestID string
	Timestamp time.Time
}

func newError(t ErrorType, cfg *Config, format string, args ...any) *Error {
	return &Error{
		Type:      t,
		Message:   fmt.Sprintf(format, args...),
		Config:    cfg,
		Timestamp: time.Now(),
	}
}

// Error implements error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Cause != nil && e.Cause.Error() != e.Message {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches target when target is an *Error whose type is e's type or one
// of its ancestors.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	if t, ok := target.(*Error); ok {
		return e.Type.IsA(t.Type)
	}
	return false
}

// Family returns the root type of e.
func (e *Error) Family() ErrorType {
	return e.Type.Family()
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *Error) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Error Type: %s\n", e.Type)
	fmt.Fprintf(&b, "Family: %s\n", e.Family())
	fmt.Fprintf(&b, "Message: %s\n", e.Message)
	if e.RequestID != "" {
		fmt.Fprintf(&b, "Request ID: %s\n", e.RequestID)
	}
	if e.Config != nil {
		fmt.Fprintf(&b, "Method: %s\n", e.Config.method())
		fmt.Fprintf(&b, "URL: %s\n", e.Config.URL)
		if e.Config.BaseURL != "" {
			fmt.Fprintf(&b, "Base URL: %s\n", e.Config.BaseURL)
		}
	}
	if e.Status > 0 {
		fmt.Fprintf(&b, "Status Code: %d\n", e.Status)
	}
	if !e.Timestamp.IsZero() {
		fmt.Fprintf(&b, "Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, "Cause: %v\n", e.Cause)
	}
	return b.String()
}

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// adoptError returns a copy of the *Error in err's chain, bound to cfg when
// it carries no config yet. The copy keeps shared values, such as the
// package sentinels, from being written to by the pipeline.
func adoptError(err error, cfg *Config) (*Error, bool) {
	e, ok := AsError(err)
	if !ok {
		return nil, false
	}
	cp := *e
	if cp.Config == nil {
		cp.Config = cfg
	}
	if cp.Message == "" {
		cp.Message = string(cp.Type)
	}
	if cp.Timestamp.IsZero() {
		cp.Timestamp = time.Now()
	}
	return &cp, true
}

// StatusErrorType maps a settled status to its error type. It depends on
// nothing but the number.
func StatusErrorType(status int) ErrorType {
	switch {
	case status == http.StatusNotFound:
		return ErrorTypeNotFound
	case status == http.StatusUnauthorized:
		return ErrorTypeUnauthorized
	case status == http.StatusForbidden:
		return ErrorTypeForbidden
	case status >= 400 && status <= 499:
		return ErrorTypeHTTPClient
	case status >= 500 && status <= 599:
		return ErrorTypeHTTPServer
	default:
		return ErrorTypeProtocol
	}
}

// NewErrorFromResponse builds the protocol error for a response whose status
// did not validate. cause is optional; it supplies the message when the
// status falls outside the 4xx and 5xx ranges or when no response exists.
func NewErrorFromResponse(resp *Response, cause error) *Error {
	e := &Error{Type: ErrorTypeProtocol, Cause: cause, Timestamp: time.Now()}
	if resp == nil {
		e.Message = "no response received"
		if cause != nil {
			e.Message = cause.Error()
		}
		return e
	}

	e.Type = StatusErrorType(resp.Status)
	e.Status = resp.Status
	e.Config = resp.Config
	e.Response = resp
	if resp.Request != nil {
		e.RequestID = resp.Request.ID
	}

	switch {
	case e.Type == ErrorTypeProtocol && cause != nil:
		e.Message = cause.Error()
	case responseText(resp) != "":
		e.Message = responseText(resp)
	case http.StatusText(resp.Status) != "":
		e.Message = http.StatusText(resp.Status)
	default:
		e.Message = fmt.Sprintf("unexpected status %d", resp.Status)
	}
	return e
}

func responseText(resp *Response) string {
	if s, ok := resp.Data.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(resp.Raw))
}

// ClassifyConnectionError turns a transport failure into a ConnectionError
// subtype. Typed causes from the standard library are checked first, then
// the failure text is matched against known phrases. An err that already
// carries an *Error is returned as that Error.
func ClassifyConnectionError(err error, cfg *Config) *Error {
	if err == nil {
		return nil
	}
	if e, ok := adoptError(err, cfg); ok {
		return e
	}

	t := connectionErrorType(err)
	msg := err.Error()
	if t == ErrorTypeRequestAborted {
		msg = "Request aborted"
	}
	return &Error{
		Type:      t,
		Message:   msg,
		Config:    cfg,
		Cause:     err,
		Timestamp: time.Now(),
	}
}

func connectionErrorType(err error) ErrorType {
	var (
		dnsErr       *net.DNSError
		unknownAuth  x509.UnknownAuthorityError
		hostnameErr  x509.HostnameError
		invalidCert  x509.CertificateInvalidError
		verification *tls.CertificateVerificationError
		netErr       net.Error
	)

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, ErrAborted), errors.Is(err, ErrCanceled):
		return ErrorTypeRequestAborted
	case errors.As(err, &dnsErr):
		return ErrorTypeDNSResolution
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH):
		return ErrorTypeHostUnreachable
	case errors.As(err, &unknownAuth), errors.As(err, &hostnameErr), errors.As(err, &invalidCert), errors.As(err, &verification):
		return ErrorTypeCertificateValidation
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return ErrorTypeConnectionTimedOut
	case errors.Is(err, syscall.ECONNRESET):
		return ErrorTypeConnectionReset
	}

	text := strings.ToLower(err.Error())
	for _, m := range connectionPhrases {
		if strings.Contains(text, m.phrase) {
			return m.errorType
		}
	}
	return ErrorTypeConnection
}

var connectionPhrases = []struct {
	phrase    string
	errorType ErrorType
}{
	{"aborted", ErrorTypeRequestAborted},
	{"resolve destination host", ErrorTypeDNSResolution},
	{"no such host", ErrorTypeDNSResolution},
	{"failed to connect", ErrorTypeHostUnreachable},
	{"connection refused", ErrorTypeHostUnreachable},
	{"certificate validation failed", ErrorTypeCertificateValidation},
	{"x509:", ErrorTypeCertificateValidation},
	{"timed out", ErrorTypeConnectionTimedOut},
	{"reset by peer", ErrorTypeConnectionReset},
}
