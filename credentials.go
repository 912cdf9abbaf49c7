package uxios

import "encoding/base64"

// Credentials authenticate a request. The pipeline does not look at the
// concrete type: a value implementing TokenCredentials contributes an
// Authorization header and one implementing QueryCredentials contributes
// query parameters.
type Credentials interface {
	Scheme() string
}

// TokenCredentials produce an Authorization header value.
type TokenCredentials interface {
	Credentials
	AuthorizationToken() string
}

// QueryCredentials produce query parameters merged into the request URL.
type QueryCredentials interface {
	Credentials
	QuerySegments() *Params
}

// BasicAuth is HTTP Basic authentication.
type BasicAuth struct {
	Username string
	Password string
}

func (BasicAuth) Scheme() string { return "Basic" }

func (b BasicAuth) AuthorizationToken() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(b.Username+":"+b.Password))
}

// BearerToken is an OAuth style bearer token.
type BearerToken string

func (BearerToken) Scheme() string { return "Bearer" }

func (t BearerToken) AuthorizationToken() string {
	return "Bearer " + string(t)
}

// QueryParameterAuth sends a key, such as an API key, as a query parameter.
type QueryParameterAuth struct {
	Key   string
	Value string
}

func (QueryParameterAuth) Scheme() string { return "Query" }

func (q QueryParameterAuth) QuerySegments() *Params {
	return NewParams(q.Key, q.Value)
}
