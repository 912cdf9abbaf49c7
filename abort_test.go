package uxios

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestAbortTokenLiveness(t *testing.T) {
	token := NewAbortToken(nil)

	token.KeepAlive()
	if !token.IsAlive() {
		t.Error("Expected first IsAlive after KeepAlive to be true")
	}
	if token.IsAlive() {
		t.Error("Expected second IsAlive without KeepAlive to be false")
	}

	token.KeepAlive()
	if !token.IsAlive() {
		t.Error("Expected KeepAlive to reset the liveness counter")
	}
}

func TestAbortTokenUnmonitored(t *testing.T) {
	token := NewAbortToken(nil)
	for i := 0; i < 100; i++ {
		if !token.IsAlive() {
			t.Fatalf("Unmonitored token reported dead on call %d", i+1)
		}
	}
}

func TestAbortTokenAbort(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	token := NewAbortToken(cancel)

	token.Abort()
	if !errors.Is(context.Cause(ctx), ErrAborted) {
		t.Errorf("Expected cause ErrAborted, got %v", context.Cause(ctx))
	}

	ctx2, cancel2 := context.WithCancelCause(context.Background())
	disposed := NewAbortToken(cancel2)
	disposed.Dispose()
	disposed.Abort()
	if ctx2.Err() != nil {
		t.Error("Abort after Dispose must be a no-op")
	}
}

func TestAbortControllerHeartbeat(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetricsCollectorWithRegistry(registry)
	ac := NewAbortController(AbortWithMetrics(metrics))

	aliveCtx, aliveCancel := context.WithCancelCause(context.Background())
	staleCtx, staleCancel := context.WithCancelCause(context.Background())
	freeCtx, freeCancel := context.WithCancelCause(context.Background())
	ac.Register("alive", aliveCancel)
	ac.Register("stale", staleCancel)
	ac.Register("free", freeCancel)

	ac.KeepAlive("alive")
	ac.KeepAlive("stale")

	if n := ac.Heartbeat(); n != 0 {
		t.Fatalf("Expected no aborts on first heartbeat, got %d", n)
	}

	ac.KeepAlive("alive")
	if n := ac.Heartbeat(); n != 1 {
		t.Fatalf("Expected 1 abort on second heartbeat, got %d", n)
	}

	if aliveCtx.Err() != nil {
		t.Error("Task kept alive was aborted")
	}
	if !errors.Is(context.Cause(staleCtx), ErrAborted) {
		t.Error("Task that missed a heartbeat was not aborted")
	}
	if freeCtx.Err() != nil {
		t.Error("Unmonitored task was aborted")
	}

	if got := testutil.ToFloat64(metrics.abortsTotal.WithLabelValues("heartbeat")); got != 1 {
		t.Errorf("Expected 1 heartbeat abort recorded, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.heartbeatTokens); got != 3 {
		t.Errorf("Expected 3 tokens checked, got %v", got)
	}
}

func TestAbortControllerHeartbeatAbortsOnce(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetricsCollectorWithRegistry(registry)
	ac := NewAbortController(AbortWithMetrics(metrics))

	_, cancel := context.WithCancelCause(context.Background())
	ac.Register("stale", cancel)
	ac.KeepAlive("stale")
	ac.Heartbeat()

	if n := ac.Heartbeat(); n != 1 {
		t.Fatalf("Expected 1 abort, got %d", n)
	}
	for i := 0; i < 3; i++ {
		if n := ac.Heartbeat(); n != 0 {
			t.Errorf("Expected aborted task to be skipped, got %d aborts", n)
		}
	}
	if !ac.Abort("stale") {
		t.Error("Expected Abort to still find the tracked task")
	}

	if got := testutil.ToFloat64(metrics.abortsTotal.WithLabelValues("heartbeat")); got != 1 {
		t.Errorf("Expected 1 heartbeat abort recorded, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.abortsTotal.WithLabelValues("manual")); got != 0 {
		t.Errorf("Expected no manual abort recorded for an aborted task, got %v", got)
	}
}

func TestAbortControllerUnregisterDuringHeartbeat(t *testing.T) {
	ac := NewAbortController()
	const n = 20

	contexts := make([]context.Context, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("task-%d", i)
		ctx, cancel := context.WithCancelCause(context.Background())
		contexts[i] = ctx
		// Settling a task unregisters it, here from inside the sweep.
		ac.Register(id, func(cause error) {
			cancel(cause)
			ac.Unregister(id)
		})
		ac.KeepAlive(id)
	}

	if got := ac.Heartbeat(); got != 0 {
		t.Fatalf("Expected no aborts on first heartbeat, got %d", got)
	}
	if got := ac.Heartbeat(); got != n {
		t.Errorf("Expected %d aborts, got %d", n, got)
	}
	if ac.Len() != 0 {
		t.Errorf("Expected every task to be unregistered, got %d", ac.Len())
	}
	for i, ctx := range contexts {
		if !errors.Is(context.Cause(ctx), ErrAborted) {
			t.Errorf("Expected task-%d to be aborted, got %v", i, context.Cause(ctx))
		}
	}
}

func TestAbortControllerConcurrentHeartbeat(t *testing.T) {
	ac := NewAbortController()
	const n = 50

	for i := 0; i < n; i++ {
		_, cancel := context.WithCancelCause(context.Background())
		ac.Register(fmt.Sprintf("task-%d", i), cancel)
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			ac.Heartbeat()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("task-%d", i)
			ac.KeepAlive(id)
			ac.Unregister(id)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			_, cancel := context.WithCancelCause(context.Background())
			ac.Register(fmt.Sprintf("late-%d", i), cancel)
		}
	}()
	wg.Wait()

	if ac.Len() != n {
		t.Errorf("Expected %d late tasks tracked, got %d", n, ac.Len())
	}
}

func TestAbortControllerRegistry(t *testing.T) {
	ac := NewAbortController()
	ctx, cancel := context.WithCancelCause(context.Background())

	ac.Register("task", cancel)
	if ac.Len() != 1 {
		t.Fatalf("Expected 1 tracked task, got %d", ac.Len())
	}
	if !ac.KeepAlive("task") {
		t.Error("KeepAlive should find a registered task")
	}

	ac.Unregister("task")
	if ac.Len() != 0 {
		t.Errorf("Expected 0 tracked tasks, got %d", ac.Len())
	}
	if ac.Abort("task") || ac.KeepAlive("task") {
		t.Error("Unregistered task should not be found")
	}
	if ctx.Err() != nil {
		t.Error("Unregister must not cancel the task")
	}

	ctx2, cancel2 := context.WithCancelCause(context.Background())
	ac.Register("other", cancel2)
	if !ac.Abort("other") {
		t.Error("Abort should find a registered task")
	}
	if !errors.Is(context.Cause(ctx2), ErrAborted) {
		t.Error("Expected task to be aborted")
	}
}

func TestAbortControllerRun(t *testing.T) {
	ac := NewAbortController()
	taskCtx, cancel := context.WithCancelCause(context.Background())
	ac.Register("task", cancel)
	ac.KeepAlive("task")

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ac.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	select {
	case <-taskCtx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Expected heartbeat loop to abort the task")
	}
	stop()
	<-done
}

func TestCancelToken(t *testing.T) {
	token := NewCancelToken()
	ctx, cancel := context.WithCancelCause(context.Background())
	stop := token.link(cancel)
	defer stop()

	if token.Canceled() {
		t.Fatal("New token should not be canceled")
	}
	token.Cancel()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("Linked context was not canceled")
	}
	if !errors.Is(context.Cause(ctx), ErrCanceled) {
		t.Errorf("Expected cause ErrCanceled, got %v", context.Cause(ctx))
	}
	if !token.Canceled() {
		t.Error("Expected token to report canceled")
	}
	select {
	case <-token.Done():
	default:
		t.Error("Expected Done channel to be closed")
	}
}
