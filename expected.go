package uxios

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// ExpectedType selects how a response body is decoded into Response.Data.
// It may also add request metadata, such as an Accept header, before dispatch.
type ExpectedType interface {
	Name() string
	AddMetadata(h http.Header)
	Decode(body []byte) (any, error)
}

type textResponse struct{}

// Text decodes the body as a string.
func Text() ExpectedType { return textResponse{} }

func (textResponse) Name() string { return "text" }

func (textResponse) AddMetadata(h http.Header) { setIfAbsent(h, "Accept", "text/*") }

func (textResponse) Decode(body []byte) (any, error) { return string(body), nil }

type arrayBufferResponse struct{}

// ArrayBuffer keeps the body as raw bytes.
func ArrayBuffer() ExpectedType { return arrayBufferResponse{} }

func (arrayBufferResponse) Name() string { return "arraybuffer" }

func (arrayBufferResponse) AddMetadata(http.Header) {}

func (arrayBufferResponse) Decode(body []byte) (any, error) {
	return bytes.Clone(body), nil
}

// JSONResponse decodes a JSON body into T. With T = any the result is the
// generic tree produced by encoding/json.
type JSONResponse[T any] struct {
	MediaType string
}

// JSON decodes the body into a generic JSON value. It is the default
// expected type.
func JSON() JSONResponse[any] { return JSONResponse[any]{} }

// JSONInto decodes the body into a T.
func JSONInto[T any]() JSONResponse[T] { return JSONResponse[T]{} }

// OfResourceType returns a copy that asks for a specific JSON media type,
// such as "application/vnd.api+json".
func (r JSONResponse[T]) OfResourceType(mediaType string) JSONResponse[T] {
	r.MediaType = mediaType
	return r
}

func (JSONResponse[T]) Name() string { return "json" }

func (r JSONResponse[T]) AddMetadata(h http.Header) {
	mediaType := r.MediaType
	if mediaType == "" {
		mediaType = "application/json"
	}
	setIfAbsent(h, "Accept", mediaType)
}

func (JSONResponse[T]) Decode(body []byte) (any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	return v, nil
}

type decoderResponse struct {
	name   string
	accept string
	decode func([]byte) (any, error)
}

// DecodeWith adapts an external codec, for example an image or protobuf
// decoder. accept may be empty.
func DecodeWith(name, accept string, decode func(body []byte) (any, error)) ExpectedType {
	return decoderResponse{name: name, accept: accept, decode: decode}
}

func (d decoderResponse) Name() string { return d.name }

func (d decoderResponse) AddMetadata(h http.Header) {
	if d.accept != "" {
		setIfAbsent(h, "Accept", d.accept)
	}
}

func (d decoderResponse) Decode(body []byte) (any, error) { return d.decode(body) }

// Resolver picks the expected type of a request.
type Resolver struct {
	// Default is used when a Config names no expected type. JSON when nil.
	Default ExpectedType
}

// Resolve returns cfg.ResponseType, falling back to the resolver default.
func (r Resolver) Resolve(cfg *Config) ExpectedType {
	if cfg != nil && cfg.ResponseType != nil {
		return cfg.ResponseType
	}
	if r.Default != nil {
		return r.Default
	}
	return JSON()
}

// ResolveFor infers the expected type from the Go type a caller wants back:
// []byte is kept raw, string is text, an interface is a generic JSON value
// and anything else is JSON decoded into T.
func ResolveFor[T any]() ExpectedType {
	var zero T
	switch any(zero).(type) {
	case []byte:
		return ArrayBuffer()
	case string:
		return Text()
	case nil:
		return JSON()
	default:
		return JSONInto[T]()
	}
}

func setIfAbsent(h http.Header, key, value string) {
	if h.Get(key) == "" {
		h.Set(key, value)
	}
}
