package uxios

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type transportFn func(ctx context.Context, req *Request) (*RawResponse, error)

func newTestClient(t *testing.T, fn transportFn, options ...Option) *Client {
	t.Helper()
	options = append([]Option{WithTransport(TransportFunc(fn, "test")), WithoutDefaultTransport()}, options...)
	client := New(options...)
	if !client.IsValid() {
		t.Fatalf("Expected valid client, got %v", client.ValidationError())
	}
	return client
}

func respond(status int, body string) transportFn {
	return func(context.Context, *Request) (*RawResponse, error) {
		return &RawResponse{Status: status, Header: http.Header{}, Body: []byte(body)}, nil
	}
}

// blocking returns a transport that signals started and waits for ctx.
func blocking(started chan<- struct{}) transportFn {
	return func(ctx context.Context, _ *Request) (*RawResponse, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

func TestClientGetText(t *testing.T) {
	var accept string
	client := newTestClient(t, func(_ context.Context, req *Request) (*RawResponse, error) {
		accept = req.Header.Get("Accept")
		return &RawResponse{Status: http.StatusOK, Body: []byte("hi")}, nil
	})

	resp, err := client.Get(context.Background(), "test://api/greeting", WithResponseType(Text()))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if resp.Data != "hi" {
		t.Errorf("Expected data 'hi', got %v", resp.Data)
	}
	if resp.Status != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.Status)
	}
	if resp.Headers == nil {
		t.Error("Expected non-nil headers for a transport returning none")
	}
	if accept != "text/*" {
		t.Errorf("Expected Accept 'text/*', got %q", accept)
	}
}

func TestClientNotFound(t *testing.T) {
	client := newTestClient(t, respond(http.StatusNotFound, "missing"))

	_, err := client.Get(context.Background(), "test://api/users/7")
	if err == nil {
		t.Fatal("Expected error for 404")
	}

	e, ok := AsError(err)
	if !ok {
		t.Fatalf("Expected *Error, got %T", err)
	}
	if e.Type != ErrorTypeNotFound {
		t.Errorf("Expected NotFoundError, got %s", e.Type)
	}
	if e.Response == nil || e.Response.Status != http.StatusNotFound {
		t.Errorf("Expected response with status 404, got %+v", e.Response)
	}
	if e.Message != "missing" {
		t.Errorf("Expected message from body, got %q", e.Message)
	}
	if !errors.Is(err, ErrHTTPClient) || !errors.Is(err, ErrProtocol) {
		t.Error("Expected NotFoundError to match its ancestors")
	}
	if errors.Is(err, ErrHTTPServer) {
		t.Error("NotFoundError must not match HttpServerError")
	}
	if e.RequestID == "" {
		t.Error("Expected request id on error")
	}
}

func TestClientInvalidStatusKeepsBodyText(t *testing.T) {
	client := newTestClient(t, respond(http.StatusInternalServerError, "oops"))

	_, err := client.Get(context.Background(), "test://api/broken")
	e, ok := AsError(err)
	if !ok {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if e.Type != ErrorTypeHTTPServer {
		t.Errorf("Expected HttpServerError, got %s", e.Type)
	}
	if e.Response.Data != "oops" {
		t.Errorf("Expected body text as data, got %v", e.Response.Data)
	}
}

func TestClientValidateStatusOverride(t *testing.T) {
	client := newTestClient(t, respond(http.StatusNotFound, "gone"))

	resp, err := client.Get(context.Background(), "test://api/x",
		WithValidateStatus(func(int) bool { return true }),
		WithResponseType(Text()),
	)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if resp.Data != "gone" {
		t.Errorf("Expected data 'gone', got %v", resp.Data)
	}
}

func TestClientDecodeFailure(t *testing.T) {
	client := newTestClient(t, respond(http.StatusOK, "not json"))

	_, err := client.Get(context.Background(), "test://api/x")
	e, ok := AsError(err)
	if !ok {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if e.Type != ErrorTypeDataProcessing {
		t.Errorf("Expected DataProcessingError, got %s", e.Type)
	}
	if e.Response == nil {
		t.Error("Expected response attached to decode failure")
	}
	if !strings.Contains(e.Message, "not json") {
		t.Errorf("Expected message to preview body, got %q", e.Message)
	}
}

func TestClientRequestInterceptorHeader(t *testing.T) {
	var seen string
	client := newTestClient(t, func(_ context.Context, req *Request) (*RawResponse, error) {
		seen = req.Header.Get("X-Trace")
		return &RawResponse{Status: http.StatusNoContent}, nil
	})
	client.Interceptors().UseRequest(func(_ context.Context, cfg *Config) (*Config, error) {
		cfg.Headers.Set("X-Trace", "1")
		return cfg, nil
	}, nil, PrioritySystem)

	cfg := &Config{URL: "test://api/x"}
	if _, err := client.Do(context.Background(), cfg); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if seen != "1" {
		t.Errorf("Expected X-Trace 1, got %q", seen)
	}
	if cfg.Headers != nil {
		t.Error("Expected caller config to stay untouched")
	}
}

func TestClientRequestInterceptorOrder(t *testing.T) {
	var order []string
	client := newTestClient(t, respond(http.StatusNoContent, ""))
	add := func(name string, priority int) {
		client.Interceptors().UseRequest(func(_ context.Context, cfg *Config) (*Config, error) {
			order = append(order, name)
			return cfg, nil
		}, nil, priority)
	}
	add("user", PriorityUser)
	add("logging", PriorityLogging)
	add("system", PrioritySystem)
	add("user2", PriorityUser)

	if _, err := client.Get(context.Background(), "test://api/x"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	want := "system,user,user2,logging"
	if got := strings.Join(order, ","); got != want {
		t.Errorf("Expected order %s, got %s", want, got)
	}
}

func TestClientRequestInterceptorFailure(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(context.Context, *Request) (*RawResponse, error) {
		calls.Add(1)
		return &RawResponse{Status: http.StatusOK}, nil
	})

	var handled atomic.Bool
	client.Interceptors().UseRequest(func(context.Context, *Config) (*Config, error) {
		return nil, errors.New("token expired")
	}, nil, PrioritySystem)
	client.Interceptors().UseRequest(nil, func(_ context.Context, e *Error) (*Response, error) {
		handled.Store(true)
		return nil, nil
	}, PriorityUser)

	_, err := client.Get(context.Background(), "test://api/x")
	e, ok := AsError(err)
	if !ok {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if e.Type != ErrorTypeConfiguration {
		t.Errorf("Expected ConfigurationError, got %s", e.Type)
	}
	if !strings.Contains(e.Message, "token expired") {
		t.Errorf("Expected interceptor message, got %q", e.Message)
	}
	if !handled.Load() {
		t.Error("Expected later error handler to run")
	}
	if calls.Load() != 0 {
		t.Errorf("Expected transport not to be called, got %d calls", calls.Load())
	}
}

func TestClientResponseInterceptorTransforms(t *testing.T) {
	client := newTestClient(t, respond(http.StatusOK, "quiet"))
	client.Interceptors().UseResponse(func(_ context.Context, resp *Response) (*Response, error) {
		resp.Data = strings.ToUpper(resp.Data.(string))
		return resp, nil
	}, nil, PriorityUser)

	resp, err := client.Get(context.Background(), "test://api/x", WithResponseType(Text()))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if resp.Data != "QUIET" {
		t.Errorf("Expected QUIET, got %v", resp.Data)
	}
}

func TestClientErrorInterceptorRecovers(t *testing.T) {
	client := newTestClient(t, respond(http.StatusServiceUnavailable, "down"))

	var later atomic.Bool
	client.Interceptors().UseResponse(nil, func(_ context.Context, e *Error) (*Response, error) {
		return &Response{Status: http.StatusOK, Data: "fallback"}, nil
	}, PriorityUser)
	client.Interceptors().UseResponse(nil, func(context.Context, *Error) (*Response, error) {
		later.Store(true)
		return nil, nil
	}, PriorityLogging)

	resp, err := client.Get(context.Background(), "test://api/x")
	if err != nil {
		t.Fatalf("Expected recovery, got %v", err)
	}
	if resp.Data != "fallback" {
		t.Errorf("Expected fallback data, got %v", resp.Data)
	}
	if resp.Config == nil {
		t.Error("Expected recovered response to carry the config")
	}
	if later.Load() {
		t.Error("Expected handlers after a recovery to be skipped")
	}
}

func TestClientErrorInterceptorReplacesError(t *testing.T) {
	client := newTestClient(t, respond(http.StatusBadGateway, "upstream"))
	cause := errors.New("boom")
	client.Interceptors().UseResponse(nil, func(context.Context, *Error) (*Response, error) {
		return nil, cause
	}, PriorityUser)

	_, err := client.Get(context.Background(), "test://api/x")
	if !errors.Is(err, cause) {
		t.Errorf("Expected replaced error to wrap cause, got %v", err)
	}
	if !errors.Is(err, ErrHTTPServer) {
		t.Errorf("Expected replaced error to keep its type, got %v", err)
	}
}

func TestClientResponseInterceptorFailure(t *testing.T) {
	client := newTestClient(t, respond(http.StatusOK, "{}"))
	client.Interceptors().UseResponse(func(context.Context, *Response) (*Response, error) {
		panic("bad interceptor")
	}, nil, PriorityUser)

	_, err := client.Get(context.Background(), "test://api/x")
	e, ok := AsError(err)
	if !ok {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if e.Type != ErrorTypeDataProcessing {
		t.Errorf("Expected DataProcessingError, got %s", e.Type)
	}
	if !strings.Contains(e.Message, "bad interceptor") {
		t.Errorf("Expected panic message, got %q", e.Message)
	}
}

func TestClientOriginalConfig(t *testing.T) {
	client := newTestClient(t, respond(http.StatusOK, ""),
		WithDefaultConfig(WithBaseURL("test://api")))

	client.Interceptors().UseRequest(func(_ context.Context, cfg *Config) (*Config, error) {
		cfg.URL = "/rewritten"
		return cfg, nil
	}, nil, PrioritySystem)

	var original, final string
	client.Interceptors().UseResponse(func(ctx context.Context, resp *Response) (*Response, error) {
		if cfg, ok := OriginalConfig(ctx); ok {
			original = cfg.URL
		}
		final = resp.Request.URL.Path
		return resp, nil
	}, nil, PriorityUser)

	if _, err := client.Get(context.Background(), "/original"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if original != "/original" {
		t.Errorf("Expected original URL /original, got %q", original)
	}
	if final != "/rewritten" {
		t.Errorf("Expected dispatched path /rewritten, got %q", final)
	}

	if _, ok := OriginalConfig(context.Background()); ok {
		t.Error("Expected no original config outside a dispatch")
	}
}

func TestClientDefaultConfigMerge(t *testing.T) {
	var got *Request
	client := newTestClient(t, func(_ context.Context, req *Request) (*RawResponse, error) {
		got = req
		return &RawResponse{Status: http.StatusOK}, nil
	}, WithDefaultConfig(
		WithBaseURL("test://api/v1/"),
		WithHeader("X-Client", "uxios"),
		WithHeader("X-Tenant", "default"),
		WithParam("lang", "en"),
	))

	_, err := client.Get(context.Background(), "users/{id}",
		WithParam("id", "42"),
		WithHeader("X-Tenant", "acme"),
	)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got.URL.String() != "test://api/v1/users/42" {
		t.Errorf("Expected resolved URL, got %s", got.URL)
	}
	if got.Query.Has("id") {
		t.Error("Expected template parameter to be consumed")
	}
	if got.Query.Get("lang") != "en" {
		t.Errorf("Expected default param lang=en, got %q", got.Query.Get("lang"))
	}
	if got.Header.Get("X-Client") != "uxios" {
		t.Errorf("Expected default header, got %q", got.Header.Get("X-Client"))
	}
	if got.Header.Get("X-Tenant") != "acme" {
		t.Errorf("Expected request header to win, got %q", got.Header.Get("X-Tenant"))
	}
}

func TestClientPostJSON(t *testing.T) {
	var contentType, body string
	client := newTestClient(t, func(_ context.Context, req *Request) (*RawResponse, error) {
		contentType = req.Header.Get("Content-Type")
		body = string(req.Body)
		return &RawResponse{Status: http.StatusCreated, Body: req.Body}, nil
	})

	resp, err := client.Post(context.Background(), "test://api/items", map[string]int{"a": 1})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if contentType != "application/json" {
		t.Errorf("Expected JSON content type, got %q", contentType)
	}
	if body != `{"a":1}` {
		t.Errorf("Expected JSON body, got %s", body)
	}
	data, ok := resp.Data.(map[string]any)
	if !ok || data["a"] != float64(1) {
		t.Errorf("Expected decoded echo, got %#v", resp.Data)
	}
}

func TestClientVerbs(t *testing.T) {
	var method atomic.Value
	client := newTestClient(t, func(_ context.Context, req *Request) (*RawResponse, error) {
		method.Store(req.Method)
		return &RawResponse{Status: http.StatusNoContent}, nil
	})
	ctx := context.Background()
	url := "test://api/x"

	tests := []struct {
		want string
		call func() (*Response, error)
	}{
		{http.MethodGet, func() (*Response, error) { return client.Get(ctx, url) }},
		{http.MethodHead, func() (*Response, error) { return client.Head(ctx, url) }},
		{http.MethodDelete, func() (*Response, error) { return client.Delete(ctx, url) }},
		{http.MethodOptions, func() (*Response, error) { return client.Options(ctx, url) }},
		{http.MethodPost, func() (*Response, error) { return client.Post(ctx, url, "x") }},
		{http.MethodPut, func() (*Response, error) { return client.Put(ctx, url, "x") }},
		{http.MethodPatch, func() (*Response, error) { return client.Patch(ctx, url, "x") }},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if _, err := tt.call(); err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if got := method.Load(); got != tt.want {
				t.Errorf("Expected method %s, got %v", tt.want, got)
			}
		})
	}
}

func TestClientSchemeRouting(t *testing.T) {
	named := func(name string) Transport {
		return TransportFunc(func(context.Context, *Request) (*RawResponse, error) {
			return &RawResponse{Status: http.StatusOK, Body: []byte(name)}, nil
		}, name)
	}
	client := New(WithTransport(named("alpha")), WithTransport(named("beta")), WithoutDefaultTransport())

	for _, scheme := range []string{"alpha", "beta", "BETA"} {
		resp, err := client.Get(context.Background(), scheme+"://host/path", WithResponseType(Text()))
		if err != nil {
			t.Fatalf("Expected no error for %s, got %v", scheme, err)
		}
		if want := strings.ToLower(scheme); resp.Data != want {
			t.Errorf("Expected %s transport, got %v", want, resp.Data)
		}
	}

	_, err := client.Get(context.Background(), "gamma://host/path")
	if !errors.Is(err, ErrNoTransport) {
		t.Errorf("Expected ErrNoTransport, got %v", err)
	}
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("Expected ConfigurationError, got %v", err)
	}
}

func TestClientDuplicateScheme(t *testing.T) {
	fn := respond(http.StatusOK, "")
	client := New(
		WithTransport(TransportFunc(fn, "dup")),
		WithTransport(TransportFunc(fn, "DUP")),
		WithoutDefaultTransport(),
	)
	if client.IsValid() {
		t.Fatal("Expected client with a doubly claimed scheme to be invalid")
	}
	if !strings.Contains(client.ValidationError().Error(), "already claimed") {
		t.Errorf("Expected claim error, got %v", client.ValidationError())
	}
}

func TestClientRelativeURLWithoutBase(t *testing.T) {
	client := newTestClient(t, respond(http.StatusOK, ""))

	_, err := client.Get(context.Background(), "/relative")
	e, ok := AsError(err)
	if !ok {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if e.Type != ErrorTypeConfiguration {
		t.Errorf("Expected ConfigurationError, got %s", e.Type)
	}
}

func TestClientAbort(t *testing.T) {
	started := make(chan struct{})
	client := newTestClient(t, blocking(started))

	call := client.Request(context.Background(), &Config{URL: "test://api/slow"})
	<-started
	if call.Stage() != StageDispatched {
		t.Errorf("Expected stage dispatched, got %s", call.Stage())
	}
	call.Abort()

	_, err := call.Wait(context.Background())
	e, ok := AsError(err)
	if !ok {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if e.Type != ErrorTypeRequestAborted {
		t.Errorf("Expected RequestAbortedError, got %s", e.Type)
	}
	if !strings.Contains(e.Error(), "aborted") {
		t.Errorf("Expected message to mention abort, got %q", e.Error())
	}
	if !errors.Is(err, ErrAborted) {
		t.Errorf("Expected ErrAborted cause, got %v", e.Cause)
	}
	if !errors.Is(err, ErrConnection) {
		t.Error("Expected RequestAbortedError to be a ConnectionError")
	}
	if call.Stage() != StageRejected || !call.Stage().Terminal() {
		t.Errorf("Expected terminal rejected stage, got %s", call.Stage())
	}
}

func TestClientCancelToken(t *testing.T) {
	started := make(chan struct{})
	client := newTestClient(t, blocking(started))
	token := NewCancelToken()

	call := client.Request(context.Background(), &Config{URL: "test://api/slow", CancelToken: token})
	<-started
	token.Cancel()

	_, err := call.Wait(context.Background())
	if !errors.Is(err, ErrRequestAborted) {
		t.Errorf("Expected RequestAbortedError, got %v", err)
	}
	if !errors.Is(err, ErrCanceled) {
		t.Errorf("Expected ErrCanceled cause, got %v", err)
	}
	if !token.Canceled() {
		t.Error("Expected token to report canceled")
	}
}

func TestClientContextCanceled(t *testing.T) {
	started := make(chan struct{})
	client := newTestClient(t, blocking(started))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := client.Get(ctx, "test://api/slow")
	if !errors.Is(err, ErrRequestAborted) {
		t.Errorf("Expected RequestAbortedError, got %v", err)
	}
}

func TestClientAbortController(t *testing.T) {
	ac := NewAbortController()
	started := make(chan struct{})
	client := newTestClient(t, blocking(started), WithAbortController(ac))

	call := client.Request(context.Background(), &Config{URL: "test://api/slow"})
	<-started

	if ac.Len() != 1 {
		t.Fatalf("Expected 1 tracked task, got %d", ac.Len())
	}
	if n := ac.Heartbeat(); n != 0 {
		t.Fatalf("Expected unmonitored task to survive, got %d aborts", n)
	}
	if !call.KeepAlive() {
		t.Fatal("Expected KeepAlive on a tracked call")
	}
	if n := ac.Heartbeat(); n != 0 {
		t.Fatalf("Expected kept-alive task to survive, got %d aborts", n)
	}
	if n := ac.Heartbeat(); n != 1 {
		t.Fatalf("Expected stale task to be aborted, got %d aborts", n)
	}

	_, err := call.Wait(context.Background())
	if !errors.Is(err, ErrAborted) {
		t.Errorf("Expected ErrAborted, got %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for ac.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if ac.Len() != 0 {
		t.Errorf("Expected settled task to be unregistered, got %d", ac.Len())
	}
}

func TestClientTransportPanic(t *testing.T) {
	client := newTestClient(t, func(context.Context, *Request) (*RawResponse, error) {
		panic("wire on fire")
	})

	_, err := client.Get(context.Background(), "test://api/x")
	e, ok := AsError(err)
	if !ok {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if e.Family() != ErrorTypeConnection {
		t.Errorf("Expected ConnectionError family, got %s", e.Family())
	}
	if !strings.Contains(e.Message, "wire on fire") {
		t.Errorf("Expected panic text in message, got %q", e.Message)
	}
}

func TestClientTransportNilResponse(t *testing.T) {
	client := newTestClient(t, func(context.Context, *Request) (*RawResponse, error) {
		return nil, nil
	})

	_, err := client.Get(context.Background(), "test://api/x")
	if !errors.Is(err, ErrConnection) {
		t.Errorf("Expected ConnectionError, got %v", err)
	}
}

type user struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func TestGetAs(t *testing.T) {
	client := newTestClient(t, respond(http.StatusOK, `{"name":"ada","age":36}`))

	u, resp, err := GetAs[user](context.Background(), client, "test://api/users/1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if u.Name != "ada" || u.Age != 36 {
		t.Errorf("Expected decoded user, got %+v", u)
	}
	if resp.Request.Header.Get("Accept") != "application/json" {
		t.Errorf("Expected JSON Accept header, got %q", resp.Request.Header.Get("Accept"))
	}
}

func TestPostAs(t *testing.T) {
	client := newTestClient(t, func(_ context.Context, req *Request) (*RawResponse, error) {
		return &RawResponse{Status: http.StatusCreated, Body: req.Body}, nil
	})

	u, _, err := PostAs[user](context.Background(), client, "test://api/users", user{Name: "lin", Age: 3})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if u.Name != "lin" || u.Age != 3 {
		t.Errorf("Expected echoed user, got %+v", u)
	}
}

func TestDoAsTypes(t *testing.T) {
	client := newTestClient(t, respond(http.StatusOK, `{"ok":true}`))
	ctx := context.Background()
	cfg := &Config{URL: "test://api/x"}

	raw, _, err := DoAs[[]byte](ctx, client, cfg)
	if err != nil || string(raw) != `{"ok":true}` {
		t.Errorf("Expected raw bytes, got %q (%v)", raw, err)
	}

	text, _, err := DoAs[string](ctx, client, cfg)
	if err != nil || text != `{"ok":true}` {
		t.Errorf("Expected text, got %q (%v)", text, err)
	}

	msg, _, err := DoAs[json.RawMessage](ctx, client, cfg)
	if err != nil || string(msg) != `{"ok":true}` {
		t.Errorf("Expected raw JSON, got %q (%v)", msg, err)
	}

	if cfg.ResponseType != nil {
		t.Error("Expected DoAs to leave the caller config untouched")
	}
}

func TestDoAsMismatch(t *testing.T) {
	client := newTestClient(t, respond(http.StatusOK, "plain"))

	_, resp, err := DoAs[int](context.Background(), client, &Config{URL: "test://api/x", ResponseType: Text()})
	e, ok := AsError(err)
	if !ok {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if e.Type != ErrorTypeDataProcessing {
		t.Errorf("Expected DataProcessingError, got %s", e.Type)
	}
	if resp == nil || resp.Data != "plain" {
		t.Errorf("Expected response to be returned, got %+v", resp)
	}
}

func TestClientDebugLogging(t *testing.T) {
	logger := &recordingLogger{}
	client := newTestClient(t, respond(http.StatusNotFound, ""), WithLogger(logger), WithDebug())

	_, _ = client.Get(context.Background(), "test://api/x")

	if !logger.has("Starting request") {
		t.Error("Expected start to be logged")
	}
	if !logger.has("Request rejected") {
		t.Error("Expected rejection to be logged")
	}
}

func TestDefaultClient(t *testing.T) {
	if Default() != Default() {
		t.Error("Expected Default to return the same client")
	}
	schemes := Default().Transports().Schemes()
	if strings.Join(schemes, ",") != "http,https" {
		t.Errorf("Expected http and https transports, got %v", schemes)
	}
}

func TestClientDefaultsAreCopied(t *testing.T) {
	client := New(WithDefaultConfig(WithBaseURL("https://example.com")))

	defaults := client.Defaults()
	defaults.Headers.Set("X-Leak", "1")
	if client.Defaults().Headers.Get("X-Leak") != "" {
		t.Error("Expected Defaults to return a copy")
	}
	if defaults.BaseURL != "https://example.com" {
		t.Errorf("Expected base URL, got %q", defaults.BaseURL)
	}
}

func TestClientSentinelRejectionIsCopied(t *testing.T) {
	client := newTestClient(t, respond(http.StatusOK, ""))
	client.Interceptors().UseRequest(func(context.Context, *Config) (*Config, error) {
		return nil, ErrForbidden
	}, nil, PriorityUser)

	ctx := context.Background()
	for _, url := range []string{"test://host/first", "test://host/second"} {
		_, err := client.Get(ctx, url)
		e, ok := AsError(err)
		if !ok {
			t.Fatalf("Expected *Error, got %v", err)
		}
		if e == ErrForbidden {
			t.Fatal("Expected a copy of the sentinel, got the sentinel itself")
		}
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("Expected ForbiddenError, got %v", err)
		}
		if e.Config == nil || e.Config.URL != url {
			t.Errorf("Expected error config for %s, got %+v", url, e.Config)
		}
		if e.RequestID == "" {
			t.Error("Expected request id on the copy")
		}
	}

	if ErrForbidden.Config != nil || ErrForbidden.RequestID != "" {
		t.Error("Expected sentinel to stay untouched")
	}
}

func TestClassifyConnectionErrorCopiesSentinel(t *testing.T) {
	cfg := &Config{URL: "test://host/x"}
	e := ClassifyConnectionError(ErrConnectionReset, cfg)
	if e == ErrConnectionReset {
		t.Fatal("Expected a copy of the sentinel")
	}
	if e.Config != cfg {
		t.Error("Expected copy to carry the config")
	}
	if ErrConnectionReset.Config != nil {
		t.Error("Expected sentinel to stay untouched")
	}
}
