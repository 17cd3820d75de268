// Package dispatch decouples a real-time producer from slow consumers.
//
// A BoundedQueue never blocks and never grows: pushing into a full queue evicts
// the oldest element. A Dispatcher pairs one queue with at most one background
// worker that is started on demand and exits once the queue is drained.
package dispatch

// BoundedQueue is a fixed-capacity ring. It is not safe for concurrent use;
// Dispatcher guards it with its own mutex.
type BoundedQueue[T any] struct {
	buf  []T
	head int // index of the oldest element
	size int
}

func NewBoundedQueue[T any](capacity int) *BoundedQueue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &BoundedQueue[T]{buf: make([]T, capacity)}
}

// Push appends item as the newest element. When the queue is full the oldest
// element is removed and returned with evicted=true.
func (q *BoundedQueue[T]) Push(item T) (old T, evicted bool) {
	if q.size == len(q.buf) {
		old = q.buf[q.head]
		q.buf[q.head] = item
		q.head = (q.head + 1) % len(q.buf)
		return old, true
	}
	q.buf[(q.head+q.size)%len(q.buf)] = item
	q.size++
	return old, false
}

// PopOldest removes and returns the oldest element.
func (q *BoundedQueue[T]) PopOldest() (T, bool) {
	var zero T
	if q.size == 0 {
		return zero, false
	}
	item := q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return item, true
}

// PopNewest removes and returns the most recently pushed element.
func (q *BoundedQueue[T]) PopNewest() (T, bool) {
	var zero T
	if q.size == 0 {
		return zero, false
	}
	idx := (q.head + q.size - 1) % len(q.buf)
	item := q.buf[idx]
	q.buf[idx] = zero
	q.size--
	return item, true
}

func (q *BoundedQueue[T]) Len() int { return q.size }

func (q *BoundedQueue[T]) Cap() int { return len(q.buf) }

// Snapshot copies the contents, oldest first.
func (q *BoundedQueue[T]) Snapshot() []T {
	out := make([]T, q.size)
	for i := 0; i < q.size; i++ {
		out[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	return out
}

// Clear drops every element.
func (q *BoundedQueue[T]) Clear() {
	var zero T
	for i := range q.buf {
		q.buf[i] = zero
	}
	q.head = 0
	q.size = 0
}
