// Package memory provides an in-process transport for the "memory" scheme.
// Requests are served by an http.Handler without touching the network, which
// makes it a convenient stand-in for a real server in tests.
package memory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/kind-men/uxios"
)

// Scheme is the URL scheme served by Transport.
const Scheme = "memory"

// Transaction is one request served by the transport together with what it
// answered.
type Transaction struct {
	Request  *uxios.Request
	Response *uxios.RawResponse
}

// Transport serves requests with an http.Handler and records every
// transaction. A nil handler answers 200 with an empty body.
type Transport struct {
	handler http.Handler

	mu           sync.Mutex
	transactions []Transaction
}

// New returns a transport backed by handler.
func New(handler http.Handler) *Transport {
	return &Transport{handler: handler}
}

// Schemes implements uxios.Transport.
func (t *Transport) Schemes() []string { return []string{Scheme} }

// PerformRequest implements uxios.Transport.
func (t *Transport) PerformRequest(ctx context.Context, req *uxios.Request) (*uxios.RawResponse, error) {
	if err := context.Cause(ctx); err != nil {
		return nil, err
	}

	raw := &uxios.RawResponse{Status: http.StatusOK, Header: http.Header{}}
	if t.handler != nil {
		httpReq, err := req.HTTPRequest(ctx)
		if err != nil {
			return nil, err
		}
		httpReq.RequestURI = httpReq.URL.RequestURI()

		rec := httptest.NewRecorder()
		t.handler.ServeHTTP(rec, httpReq)

		// A handler that returns on cancellation still leaves a 200 behind.
		if err := context.Cause(ctx); err != nil {
			return nil, err
		}

		result := rec.Result()
		raw.Status = result.StatusCode
		raw.Header = result.Header
		raw.Body = rec.Body.Bytes()
	}

	t.mu.Lock()
	t.transactions = append(t.transactions, Transaction{Request: req, Response: raw})
	t.mu.Unlock()

	return raw, nil
}

// Transactions returns a copy of the recorded transactions in order.
func (t *Transport) Transactions() []Transaction {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Transaction, len(t.transactions))
	copy(out, t.transactions)
	return out
}

// Reset forgets all recorded transactions.
func (t *Transport) Reset() {
	t.mu.Lock()
	t.transactions = nil
	t.mu.Unlock()
}
