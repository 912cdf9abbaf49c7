package singleflight

import (
	"fmt"
	"sync"
)

// Group coalesces concurrent calls that share a key into one execution.
type Group[T any] struct {
	mu sync.Mutex
	m  map[string]*call[T]
}

// Result holds the outcome of a call delivered by DoChan.
type Result[T any] struct {
	Val    T
	Err    error
	Shared bool
}

type call[T any] struct {
	wg    sync.WaitGroup
	val   T
	err   error
	dups  int
	chans []chan<- Result[T]
}

// New creates an empty Group.
func New[T any]() *Group[T] {
	return &Group[T]{m: make(map[string]*call[T])}
}

// Do runs fn once for all callers arriving with key while it is in flight.
// shared reports whether the result went to more than one caller.
func (g *Group[T]) Do(key string, fn func() (T, error)) (val T, err error, shared bool) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[string]*call[T])
	}
	if c, ok := g.m[key]; ok {
		c.dups++
		g.mu.Unlock()
		c.wg.Wait()
		return c.val, c.err, true
	}

	c := &call[T]{}
	c.wg.Add(1)
	g.m[key] = c
	g.mu.Unlock()

	shared = g.run(key, c, fn)
	return c.val, c.err, shared
}

// DoChan is like Do but runs fn on its own goroutine and delivers the result
// on the returned channel. A caller may stop receiving at any time without
// affecting fn or the other callers sharing it.
func (g *Group[T]) DoChan(key string, fn func() (T, error)) <-chan Result[T] {
	ch := make(chan Result[T], 1)
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[string]*call[T])
	}
	if c, ok := g.m[key]; ok {
		c.dups++
		c.chans = append(c.chans, ch)
		g.mu.Unlock()
		return ch
	}

	c := &call[T]{chans: []chan<- Result[T]{ch}}
	c.wg.Add(1)
	g.m[key] = c
	g.mu.Unlock()

	go g.run(key, c, fn)
	return ch
}

// Forget drops key so the next call executes even if one is still running.
func (g *Group[T]) Forget(key string) {
	g.mu.Lock()
	delete(g.m, key)
	g.mu.Unlock()
}

func (g *Group[T]) run(key string, c *call[T], fn func() (T, error)) (shared bool) {
	defer func() {
		if r := recover(); r != nil {
			c.err = fmt.Errorf("singleflight: call for %q panicked: %v", key, r)
		}
		g.mu.Lock()
		if g.m[key] == c {
			delete(g.m, key)
		}
		shared = c.dups > 0
		chans := c.chans
		g.mu.Unlock()
		c.wg.Done()
		for _, ch := range chans {
			ch <- Result[T]{Val: c.val, Err: c.err, Shared: shared}
		}
	}()
	c.val, c.err = fn()
	return false
}
