// Package queue provides a fixed-capacity FIFO used for pending commands
// and per-invocation output messages.
package queue

// Bounded is a fixed-capacity FIFO. It is not safe for concurrent use;
// the processing service owns its queues and serializes access.
type Bounded[T any] struct {
	items    []T
	capacity int
}

// NewBounded creates a queue with the given capacity. Non-positive
// capacities are clamped to 1.
func NewBounded[T any](capacity int) *Bounded[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Bounded[T]{
		items:    make([]T, 0, capacity),
		capacity: capacity,
	}
}

// Enqueue appends v and reports whether it fit. A full queue is left
// untouched.
func (q *Bounded[T]) Enqueue(v T) bool {
	if len(q.items) >= q.capacity {
		return false
	}
	q.items = append(q.items, v)
	return true
}

// Dequeue removes and returns the oldest element.
func (q *Bounded[T]) Dequeue() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return v, true
}

// Len returns the number of queued elements.
func (q *Bounded[T]) Len() int {
	return len(q.items)
}

// Cap returns the queue capacity.
func (q *Bounded[T]) Cap() int {
	return q.capacity
}
