package eviction

import "github.com/IvanBrykalov/pojocache/fqn"

// DefaultRecycleQueueCapacity bounds the number of paths parked after a
// failed physical eviction.
const DefaultRecycleQueueCapacity = 100_000

// recycleQueue is a bounded FIFO of paths whose eviction must be retried.
type recycleQueue struct {
	items    []fqn.Fqn
	head     int
	capacity int
}

func newRecycleQueue(capacity int) *recycleQueue {
	if capacity <= 0 {
		capacity = DefaultRecycleQueueCapacity
	}
	return &recycleQueue{capacity: capacity}
}

func (q *recycleQueue) Len() int { return len(q.items) - q.head }

// push parks f. It reports false when the queue is full.
func (q *recycleQueue) push(f fqn.Fqn) bool {
	if q.Len() >= q.capacity {
		return false
	}
	q.items = append(q.items, f)
	return true
}

func (q *recycleQueue) peek() (fqn.Fqn, bool) {
	if q.Len() == 0 {
		return fqn.Fqn{}, false
	}
	return q.items[q.head], true
}

func (q *recycleQueue) pop() {
	q.items[q.head] = fqn.Fqn{}
	q.head++
	if q.head == len(q.items) {
		q.items, q.head = q.items[:0], 0
	} else if q.head > len(q.items)/2 {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items, q.head = q.items[:n], 0
	}
}
