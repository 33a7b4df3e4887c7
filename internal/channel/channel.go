// Package channel wraps Go channels behind small interfaces so producers can
// pick a delivery policy without the consumer knowing about it.
package channel

// Receiver provides read access to a channel.
type Receiver[T any] interface {
	Receive() <-chan T
	Len() int
}

// Sender provides write access to a channel.
type Sender[T any] interface {
	Send(T)
	// TrySend never blocks. It reports whether the value was accepted.
	TrySend(T) bool
}

// Channel combines read and write access.
type Channel[T any] interface {
	Receiver[T]
	Sender[T]
	Close()
}

var (
	_ Channel[int] = (*Buffered[int])(nil)
	_ Channel[int] = (*Latest[int])(nil)
)
