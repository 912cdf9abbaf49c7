package uxios

import (
	"errors"
	"iter"
	"sort"
	"sync"
)

// Conventional priorities for interceptors. System interceptors run first,
// user interceptors in the middle and observers such as loggers last so they
// see the fully processed Config or Response.
const (
	PrioritySystem  = -1000
	PriorityUser    = 0
	PriorityLogging = 10000
)

// ErrDuplicateEntry is returned by PriorityList.Add when the entry is already present.
var ErrDuplicateEntry = errors.New("uxios: entry already present")

type bucket[T comparable] struct {
	priority int
	items    []T
}

// PriorityList keeps entries ordered by ascending priority. Entries sharing a
// priority keep their insertion order. An entry can be present only once.
// It is safe for concurrent use.
type PriorityList[T comparable] struct {
	mu      sync.RWMutex
	buckets []bucket[T]
}

// NewPriorityList returns an empty list.
func NewPriorityList[T comparable]() *PriorityList[T] {
	return &PriorityList[T]{}
}

// Add inserts item at the given priority.
func (l *PriorityList[T]) Add(item T, priority int) error {
	if !l.TryAdd(item, priority) {
		return ErrDuplicateEntry
	}
	return nil
}

// TryAdd inserts item at the given priority and reports whether it was added.
func (l *PriorityList[T]) TryAdd(item T, priority int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, found := l.locate(item); found {
		return false
	}

	i := sort.Search(len(l.buckets), func(i int) bool {
		return l.buckets[i].priority >= priority
	})
	if i < len(l.buckets) && l.buckets[i].priority == priority {
		l.buckets[i].items = append(l.buckets[i].items, item)
		return true
	}

	l.buckets = append(l.buckets, bucket[T]{})
	copy(l.buckets[i+1:], l.buckets[i:])
	l.buckets[i] = bucket[T]{priority: priority, items: []T{item}}
	return true
}

// Remove deletes item and reports whether it was present.
func (l *PriorityList[T]) Remove(item T) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for b := range l.buckets {
		for i, existing := range l.buckets[b].items {
			if existing != item {
				continue
			}
			items := l.buckets[b].items
			l.buckets[b].items = append(items[:i:i], items[i+1:]...)
			if len(l.buckets[b].items) == 0 {
				l.buckets = append(l.buckets[:b], l.buckets[b+1:]...)
			}
			return true
		}
	}
	return false
}

// Contains reports whether item is present.
func (l *PriorityList[T]) Contains(item T) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, found := l.locate(item)
	return found
}

// PriorityOf returns the priority item was added with.
func (l *PriorityList[T]) PriorityOf(item T) (int, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.locate(item)
}

// Clear removes every entry.
func (l *PriorityList[T]) Clear() {
	l.mu.Lock()
	l.buckets = nil
	l.mu.Unlock()
}

// Len returns the number of entries.
func (l *PriorityList[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, b := range l.buckets {
		n += len(b.items)
	}
	return n
}

// IsEmpty reports whether the list holds no entries.
func (l *PriorityList[T]) IsEmpty() bool {
	return l.Len() == 0
}

// Items returns a snapshot of the entries in execution order.
func (l *PriorityList[T]) Items() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]T, 0, len(l.buckets))
	for _, b := range l.buckets {
		out = append(out, b.items...)
	}
	return out
}

// All iterates over a snapshot of the entries in execution order.
func (l *PriorityList[T]) All() iter.Seq[T] {
	items := l.Items()
	return func(yield func(T) bool) {
		for _, item := range items {
			if !yield(item) {
				return
			}
		}
	}
}

func (l *PriorityList[T]) locate(item T) (int, bool) {
	for _, b := range l.buckets {
		for _, existing := range b.items {
			if existing == item {
				return b.priority, true
			}
		}
	}
	return 0, false
}
