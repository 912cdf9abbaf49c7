package uxios

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrTaskPending is returned by Task.Result while the task has not settled.
var ErrTaskPending = errors.New("uxios: task still pending")

// TaskState is the settlement state of a Task.
type TaskState int

const (
	TaskPending TaskState = iota
	TaskResolved
	TaskRejected
)

func (s TaskState) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskResolved:
		return "resolved"
	case TaskRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Task is a future that settles exactly once, either resolved with a value
// or rejected with an error.
type Task[T any] struct {
	id     string
	cancel context.CancelCauseFunc

	mu      sync.Mutex
	state   TaskState
	value   T
	err     error
	finally []func()
	done    chan struct{}
}

// NewTask returns a pending task. cancel, when not nil, is invoked by Cancel.
func NewTask[T any](cancel context.CancelCauseFunc) *Task[T] {
	return &Task[T]{
		id:     uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// ID returns the unique task id.
func (t *Task[T]) ID() string { return t.id }

// State returns the current state.
func (t *Task[T]) State() TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Done is closed once the task settles.
func (t *Task[T]) Done() <-chan struct{} { return t.done }

// Wait blocks until the task settles or ctx is done.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.Result()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the settled outcome without blocking.
func (t *Task[T]) Result() (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == TaskPending {
		var zero T
		return zero, ErrTaskPending
	}
	return t.value, t.err
}

// Cancel requests cancellation. The task still settles through the code
// that owns it.
func (t *Task[T]) Cancel() {
	if t.cancel != nil {
		t.cancel(ErrCanceled)
	}
}

// Finally registers fn to run once after settlement. If the task has already
// settled fn runs immediately on the calling goroutine.
func (t *Task[T]) Finally(fn func()) {
	t.mu.Lock()
	if t.state == TaskPending {
		t.finally = append(t.finally, fn)
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	fn()
}

// Resolve settles the task with v. It reports false if already settled.
func (t *Task[T]) Resolve(v T) bool {
	return t.settle(TaskResolved, v, nil)
}

// Reject settles the task with err. It reports false if already settled.
func (t *Task[T]) Reject(err error) bool {
	var zero T
	return t.settle(TaskRejected, zero, err)
}

func (t *Task[T]) settle(state TaskState, v T, err error) bool {
	t.mu.Lock()
	if t.state != TaskPending {
		t.mu.Unlock()
		return false
	}
	t.state = state
	t.value = v
	t.err = err
	callbacks := t.finally
	t.finally = nil
	close(t.done)
	t.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
	return true
}
