// Package queue holds the pending-write queue used by the persistence worker.
package queue

import (
	"sync"
)

// Coalescing is a thread-safe queue holding at most one item per key, in the
// order keys were first queued. Putting a queued key replaces its item in place.
type Coalescing[K comparable, T any] struct {
	key func(T) K

	mu    sync.Mutex
	order []K
	items map[K]T
}

// New creates an empty queue keyed by key.
func New[K comparable, T any](key func(T) K) *Coalescing[K, T] {
	return &Coalescing[K, T]{
		key:   key,
		items: make(map[K]T),
	}
}

// Put queues items, replacing any queued item with the same key.
func (q *Coalescing[K, T]) Put(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range items {
		k := q.key(it)
		if _, ok := q.items[k]; !ok {
			q.order = append(q.order, k)
		}
		q.items[k] = it
	}
}

// Requeue puts items back ahead of everything queued since they were
// drained. An item whose key was queued again in the meantime is dropped,
// the newer one wins.
func (q *Coalescing[K, T]) Requeue(items []T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	front := make([]K, 0, len(items))
	for _, it := range items {
		k := q.key(it)
		if _, ok := q.items[k]; ok {
			continue
		}
		q.items[k] = it
		front = append(front, k)
	}
	q.order = append(front, q.order...)
}

// Remove drops the item queued under k. It reports whether there was one.
func (q *Coalescing[K, T]) Remove(k K) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.items[k]; !ok {
		return false
	}
	delete(q.items, k)
	for i, o := range q.order {
		if o == k {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns the item queued under k.
func (q *Coalescing[K, T]) Get(k K) (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	it, ok := q.items[k]
	return it, ok
}

// Drain returns every queued item in order and empties the queue.
func (q *Coalescing[K, T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.order) == 0 {
		return nil
	}
	out := make([]T, 0, len(q.order))
	for _, k := range q.order {
		out = append(out, q.items[k])
	}
	q.order = nil
	q.items = make(map[K]T, len(out))
	return out
}

// Len returns the number of queued keys.
func (q *Coalescing[K, T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

// Empty returns true if nothing is queued.
func (q *Coalescing[K, T]) Empty() bool {
	return q.Len() == 0
}
