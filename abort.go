package uxios

import (
	"context"
	"sync"
	"time"
)

// CancelToken lets a caller cancel the requests whose Config carries it.
// One token may be shared by many requests.
type CancelToken struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
}

// NewCancelToken returns a live token.
func NewCancelToken() *CancelToken {
	ctx, cancel := context.WithCancelCause(context.Background())
	return &CancelToken{ctx: ctx, cancel: cancel}
}

// Cancel cancels every request carrying the token.
func (t *CancelToken) Cancel() {
	t.cancel(ErrCanceled)
}

// Canceled reports whether Cancel was called.
func (t *CancelToken) Canceled() bool {
	return t.ctx.Err() != nil
}

// Done is closed when the token is canceled.
func (t *CancelToken) Done() <-chan struct{} {
	return t.ctx.Done()
}

// link cancels the attempt when the token fires. The returned func detaches.
func (t *CancelToken) link(cancel context.CancelCauseFunc) func() bool {
	return context.AfterFunc(t.ctx, func() { cancel(ErrCanceled) })
}

// AbortToken couples the cancellation of one in-flight task with a liveness
// counter.
//
// A token is unmonitored until KeepAlive is first called and an unmonitored
// token is always alive. Once monitored, each KeepAlive resets the counter;
// the first IsAlive after a KeepAlive reports true and increments it, any
// further IsAlive reports false until the next KeepAlive. A host loop must
// therefore call KeepAlive at least once per heartbeat.
type AbortToken struct {
	mu        sync.Mutex
	cancel    context.CancelCauseFunc
	monitored bool
	missed    int
	aborted   bool
}

// NewAbortToken wraps cancel.
func NewAbortToken(cancel context.CancelCauseFunc) *AbortToken {
	return &AbortToken{cancel: cancel}
}

// Abort cancels the task.
func (t *AbortToken) Abort() {
	t.abort()
}

// abort cancels the task and reports whether this call was the first to do
// so on an undisposed token.
func (t *AbortToken) abort() bool {
	t.mu.Lock()
	cancel := t.cancel
	first := !t.aborted
	t.aborted = true
	t.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel(ErrAborted)
	return first
}

// Aborted reports whether Abort was called.
func (t *AbortToken) Aborted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.aborted
}

// KeepAlive signals that the owner of the task is still running.
func (t *AbortToken) KeepAlive() {
	t.mu.Lock()
	t.monitored = true
	t.missed = 0
	t.mu.Unlock()
}

// IsAlive reports whether the task is still wanted.
func (t *AbortToken) IsAlive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.monitored {
		return true
	}
	if t.missed == 0 {
		t.missed++
		return true
	}
	return false
}

// Dispose releases the cancellation resource. Abort is a no-op afterwards.
func (t *AbortToken) Dispose() {
	t.mu.Lock()
	t.cancel = nil
	t.mu.Unlock()
}

// AbortController tracks the tokens of in-flight tasks and aborts those whose
// owner stopped calling KeepAlive. Tasks are keyed by id.
type AbortController struct {
	mu      sync.Mutex
	tokens  map[string]*AbortToken
	metrics *MetricsCollector
	logger  Logger
}

// AbortOption configures an AbortController.
type AbortOption func(*AbortController)

// AbortWithMetrics records aborts and heartbeat sizes on mc.
func AbortWithMetrics(mc *MetricsCollector) AbortOption {
	return func(a *AbortController) {
		a.metrics = mc
	}
}

// AbortWithLogger logs aborts on logger.
func AbortWithLogger(logger Logger) AbortOption {
	return func(a *AbortController) {
		a.logger = logger
	}
}

// NewAbortController returns an empty controller.
func NewAbortController(options ...AbortOption) *AbortController {
	a := &AbortController{tokens: make(map[string]*AbortToken)}
	for _, option := range options {
		option(a)
	}
	return a
}

// Register tracks the task id with its cancel func and returns the token.
// Registering an id again replaces its token.
func (a *AbortController) Register(id string, cancel context.CancelCauseFunc) *AbortToken {
	token := NewAbortToken(cancel)
	a.mu.Lock()
	if old, ok := a.tokens[id]; ok {
		old.Dispose()
	}
	a.tokens[id] = token
	a.mu.Unlock()
	return token
}

// Unregister stops tracking id and disposes its token.
func (a *AbortController) Unregister(id string) {
	a.mu.Lock()
	token, ok := a.tokens[id]
	delete(a.tokens, id)
	a.mu.Unlock()
	if ok {
		token.Dispose()
	}
}

// Abort cancels the task id and reports whether it was tracked.
func (a *AbortController) Abort(id string) bool {
	token := a.token(id)
	if token == nil {
		return false
	}
	if !token.abort() {
		return true
	}
	a.metrics.RecordAbort("manual")
	if a.logger != nil {
		a.logger.Debug("Task aborted", "task", id, "reason", "manual")
	}
	return true
}

// KeepAlive marks the task id as alive for the current heartbeat cycle.
func (a *AbortController) KeepAlive(id string) bool {
	token := a.token(id)
	if token == nil {
		return false
	}
	token.KeepAlive()
	return true
}

// Heartbeat checks every tracked token once and aborts those that are no
// longer alive. Tokens already aborted are skipped until they are
// unregistered. It returns the number of tasks aborted by this call.
func (a *AbortController) Heartbeat() int {
	a.mu.Lock()
	snapshot := make(map[string]*AbortToken, len(a.tokens))
	for id, token := range a.tokens {
		snapshot[id] = token
	}
	a.mu.Unlock()

	a.metrics.RecordHeartbeat(len(snapshot))

	aborted := 0
	for id, token := range snapshot {
		if token.Aborted() || token.IsAlive() {
			continue
		}
		if !token.abort() {
			continue
		}
		aborted++
		a.metrics.RecordAbort("heartbeat")
		if a.logger != nil {
			a.logger.Debug("Task aborted", "task", id, "reason", "missed heartbeat")
		}
	}
	return aborted
}

// Run calls Heartbeat every interval until ctx is done.
func (a *AbortController) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Heartbeat()
		}
	}
}

// Len returns the number of tracked tasks.
func (a *AbortController) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.tokens)
}

func (a *AbortController) token(id string) *AbortToken {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tokens[id]
}
