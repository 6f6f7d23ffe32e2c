package util

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// The MPSC queue is a linked list with a sentinel head. Producers link new
// nodes at the tail with CAS, a single goroutine unlinks at the head and hands
// the values to Recv. Values of one producer keep their order; values of
// different producers are ordered by whose CAS wins. The list is unbounded.

type mpscNode[T any] struct {
	value *T
	next  atomic.Pointer[mpscNode[T]]
}

// LockFreeMPSC is an unbounded queue with many producers and one consumer
type LockFreeMPSC[T any] struct {
	head     atomic.Pointer[mpscNode[T]]
	tail     atomic.Pointer[mpscNode[T]]
	out      chan *T
	consumer sync.WaitGroup
	closed   atomic.Bool

	// mu guards the sleep/wake handshake between producers and the consumer
	mu   sync.Mutex
	cond *sync.Cond
}

// NewLockFreeMPSC returns an open queue. Its delivery goroutine runs until
// Close was called and every value was received.
func NewLockFreeMPSC[T any]() *LockFreeMPSC[T] {
	sentinel := &mpscNode[T]{}

	q := &LockFreeMPSC[T]{
		out: make(chan *T),
	}
	q.cond = sync.NewCond(&q.mu)

	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	q.consumer.Add(1)
	go q.consume()

	return q
}

// Push appends value. It reports false for nil values and after Close.
func (q *LockFreeMPSC[T]) Push(value *T) bool {
	if value == nil || q.closed.Load() {
		return false
	}

	n := &mpscNode[T]{value: value}
	var backoff uint8 = 0

	for {
		tailNode := q.tail.Load()
		next := tailNode.next.Load()

		if next == nil {
			if tailNode.next.CompareAndSwap(nil, n) {
				// a failed CAS means another producer already advanced the tail
				q.tail.CompareAndSwap(tailNode, n)
				q.wake()
				return true
			}
		} else {
			// help a producer that appended but has not advanced the tail yet
			q.tail.CompareAndSwap(tailNode, next)
		}

		// spin a little at low contention, then yield
		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// PushValue appends a copy of value
func (q *LockFreeMPSC[T]) PushValue(value T) bool {
	return q.Push(&value)
}

// wake signals the consumer. The lock is taken so that a signal can never
// fall between the consumer's emptiness check and its Wait.
func (q *LockFreeMPSC[T]) wake() {
	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// consume moves items from the linked list to the output channel
func (q *LockFreeMPSC[T]) consume() {
	defer q.consumer.Done()
	defer close(q.out)

	for {
		hasItems := false

		for {
			head := q.head.Load()
			next := head.next.Load()
			if next == nil {
				break
			}
			hasItems = true

			value := next.value
			q.head.Store(next)
			q.out <- value

			// the node is the new sentinel, drop the reference for the gc
			next.value = nil
		}

		if !hasItems && q.closed.Load() {
			return
		}

		if !hasItems {
			q.mu.Lock()
			if q.head.Load().next.Load() == nil && !q.closed.Load() {
				q.cond.Wait()
			}
			q.mu.Unlock()
		}
	}
}

// Recv is the consumer side. It is closed once the queue was closed and drained.
func (q *LockFreeMPSC[T]) Recv() <-chan *T {
	return q.out
}

// Close rejects further pushes. Queued values are still delivered.
func (q *LockFreeMPSC[T]) Close() {
	q.closed.Store(true)
	q.wake()
}

// IsClosed reports whether Close was called
func (q *LockFreeMPSC[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len walks the list and counts the queued values. The result is a snapshot
// and may be stale when it returns.
func (q *LockFreeMPSC[T]) Len() int {
	count := 0
	current := q.head.Load()
	for {
		next := current.next.Load()
		if next == nil {
			break
		}
		count++
		current = next
	}
	return count
}
