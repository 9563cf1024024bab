// Package fifo implements the First-In-First-Out eviction policy.
package fifo

import (
	"iter"

	"github.com/IvanBrykalov/pojocache/eviction"
)

// PolicyName identifies the policy in configuration.
const PolicyName = "fifo"

// Config evicts the oldest nodes once a region holds more than MaxNodes.
// MaxNodes == 0 disables eviction.
type Config struct {
	MaxNodes int
}

var _ eviction.Config = Config{}

func (Config) PolicyName() string { return PolicyName }

func (c Config) Validate() error {
	if c.MaxNodes < 0 {
		return eviction.ConfigError("fifo: maxNodes must be >= 0, got %d", c.MaxNodes)
	}
	return nil
}

// NewAlgorithm implements eviction.Config.
func (c Config) NewAlgorithm(d eviction.Deps) eviction.Algorithm {
	q := NewQueue()
	return eviction.NewBase(q, strategy{maxNodes: c.MaxNodes, q: q}, d)
}

type strategy struct {
	maxNodes int
	q        eviction.Queue
}

func (s strategy) ShouldEvictNode(*eviction.NodeEntry) bool {
	return s.maxNodes > 0 && s.q.NumberOfNodes() > s.maxNodes
}

// Queue keeps entries in insertion order. Visits do not reorder.
type Queue struct {
	eviction.EntryIndex
	list eviction.LinkedList
}

var _ eviction.Queue = (*Queue)(nil)

// NewQueue returns an empty FIFO queue.
func NewQueue() *Queue { return &Queue{} }

func (q *Queue) FirstNodeEntry() *eviction.NodeEntry { return q.list.Front() }

func (q *Queue) AddNodeEntry(e *eviction.NodeEntry) {
	if q.Insert(e) {
		q.list.PushBack(e)
	}
}

func (q *Queue) RemoveNodeEntry(e *eviction.NodeEntry) {
	if cur, ok := q.Delete(e); ok {
		q.list.Remove(cur)
	}
}

func (q *Queue) Clear() {
	q.list.Clear()
	q.Reset()
}

func (q *Queue) Entries() iter.Seq[*eviction.NodeEntry] { return q.list.All() }
