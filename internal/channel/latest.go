package channel

import "sync"

// Latest is a single-slot channel. A send replaces a value the receiver has
// not taken yet, so a slow receiver always reads the newest value.
type Latest[T any] struct {
	mu     sync.Mutex
	ch     chan T
	closed bool
}

// NewLatest creates an empty single-slot channel.
func NewLatest[T any]() *Latest[T] {
	return &Latest[T]{ch: make(chan T, 1)}
}

// Send stores v, replacing any pending value. It is a no-op after Close.
func (l *Latest[T]) Send(v T) {
	l.TrySend(v)
}

// TrySend stores v, replacing any pending value. It reports false only
// after Close.
func (l *Latest[T]) TrySend(v T) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	select {
	case <-l.ch:
	default:
	}
	// only senders write and they hold mu, so the slot is free here
	l.ch <- v
	return true
}

// Receive returns the receive-only channel
func (l *Latest[T]) Receive() <-chan T {
	return l.ch
}

// Len returns 1 while a value is pending.
func (l *Latest[T]) Len() int {
	return len(l.ch)
}

// Close closes the channel. A pending value can still be received.
func (l *Latest[T]) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.ch)
	}
}
