// internal/channel/latest.go
package channel

import "sync/atomic"

// Latest is a single-slot channel where a send replaces any value the
// receiver has not taken yet. Only one sender may use it.
type Latest[T any] struct {
	ch       chan T
	replaced atomic.Uint64
}

// NewLatest creates a new latest-wins channel
func NewLatest[T any]() *Latest[T] {
	return &Latest[T]{ch: make(chan T, 1)}
}

// Send stores v, discarding a pending value if there is one
func (l *Latest[T]) Send(v T) {
	for {
		select {
		case l.ch <- v:
			return
		default:
		}
		select {
		case <-l.ch:
			l.replaced.Add(1)
		default:
		}
	}
}

// Receive returns the receive-only channel
func (l *Latest[T]) Receive() <-chan T {
	return l.ch
}

// Len returns 1 while a value is pending
func (l *Latest[T]) Len() int {
	return len(l.ch)
}

// Replaced returns how many pending values were overwritten
func (l *Latest[T]) Replaced() uint64 {
	return l.replaced.Load()
}

// Close closes the channel
func (l *Latest[T]) Close() {
	close(l.ch)
}
