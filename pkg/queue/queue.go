// Package queue provides a bounded, non-blocking ring queue used to back
// component ports. Push and Pop return immediately: either with data or with
// a "not available" result, matching the single-call synchronous contract of
// receive/emit. Overflow behavior is configurable per queue.
package queue

import (
	"sync"

	"github.com/weftworks/weft/errors"
)

// OverflowPolicy defines how the queue behaves when it reaches capacity.
type OverflowPolicy int

const (
	// Reject fails the Push with ErrQueueFull.
	Reject OverflowPolicy = iota
	// DropOldest removes the oldest item to make room for the new one.
	DropOldest
	// DropNewest silently drops the pushed item.
	DropNewest
)

// String returns a human-readable representation of the overflow policy.
func (p OverflowPolicy) String() string {
	switch p {
	case Reject:
		return "Reject"
	case DropOldest:
		return "DropOldest"
	case DropNewest:
		return "DropNewest"
	default:
		return "Unknown"
	}
}

// Stats tracks queue activity counters. Pushed counts items accepted into
// the queue, including pushes that evicted an older item under DropOldest,
// so a push against a full DropOldest queue advances both Pushed and
// Dropped. Dropped counts items lost either way: evicted after admission or
// refused at the door under DropNewest.
type Stats struct {
	Pushed  uint64
	Popped  uint64
	Dropped uint64
}

// Ring is a fixed-capacity FIFO queue. All operations are thread-safe and
// non-blocking.
type Ring[T any] struct {
	mu     sync.Mutex
	items  []T
	head   int
	size   int
	policy OverflowPolicy
	stats  Stats
	onDrop func(T)
}

// Option configures a Ring.
type Option[T any] func(*Ring[T])

// WithPolicy sets the overflow policy. The default is Reject.
func WithPolicy[T any](p OverflowPolicy) Option[T] {
	return func(r *Ring[T]) { r.policy = p }
}

// WithDropCallback registers a callback invoked with every dropped item.
func WithDropCallback[T any](fn func(T)) Option[T] {
	return func(r *Ring[T]) { r.onDrop = fn }
}

// NewRing creates a ring queue with the given capacity.
func NewRing[T any](capacity int, opts ...Option[T]) (*Ring[T], error) {
	if capacity <= 0 {
		return nil, errors.New("queue capacity must be positive")
	}
	r := &Ring[T]{items: make([]T, capacity)}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Push adds an item to the queue. When the queue is full the overflow policy
// decides the outcome; only Reject reports an error.
func (r *Ring[T]) Push(item T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == len(r.items) {
		switch r.policy {
		case Reject:
			return errors.ErrQueueFull
		case DropNewest:
			r.stats.Dropped++
			if r.onDrop != nil {
				r.onDrop(item)
			}
			return nil
		case DropOldest:
			dropped := r.items[r.head]
			var zero T
			r.items[r.head] = zero
			r.head = (r.head + 1) % len(r.items)
			r.size--
			r.stats.Dropped++
			if r.onDrop != nil {
				r.onDrop(dropped)
			}
		}
	}

	r.items[(r.head+r.size)%len(r.items)] = item
	r.size++
	r.stats.Pushed++
	return nil
}

// Pop retrieves and removes the oldest item. The second return value is
// false when the queue is empty.
func (r *Ring[T]) Pop() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	if r.size == 0 {
		return zero, false
	}
	item := r.items[r.head]
	r.items[r.head] = zero
	r.head = (r.head + 1) % len(r.items)
	r.size--
	r.stats.Popped++
	return item, true
}

// Peek returns the oldest item without removing it.
func (r *Ring[T]) Peek() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	if r.size == 0 {
		return zero, false
	}
	return r.items[r.head], true
}

// Len returns the current number of queued items.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Cap returns the queue capacity.
func (r *Ring[T]) Cap() int {
	return len(r.items)
}

// Stats returns a snapshot of the activity counters.
func (r *Ring[T]) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Clear removes all queued items.
func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	var zero T
	for i := 0; i < r.size; i++ {
		r.items[(r.head+i)%len(r.items)] = zero
	}
	r.head = 0
	r.size = 0
}
