// Package mru implements the Most-Recently-Used eviction policy: the node
// touched last is evicted first.
package mru

import (
	"iter"

	"github.com/IvanBrykalov/pojocache/eviction"
)

// PolicyName identifies the policy in configuration.
const PolicyName = "mru"

// Config evicts the most recently used nodes once a region holds more than
// MaxNodes. MaxNodes == 0 disables eviction.
type Config struct {
	MaxNodes int
}

var _ eviction.Config = Config{}

func (Config) PolicyName() string { return PolicyName }

func (c Config) Validate() error {
	if c.MaxNodes < 0 {
		return eviction.ConfigError("mru: maxNodes must be >= 0, got %d", c.MaxNodes)
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

// Queue keeps the most recently used entry at the front. New entries count
// as used. Visit relinks in O(1).
type Queue struct {
	eviction.EntryIndex
	list eviction.LinkedList
}

var (
	_ eviction.Queue     = (*Queue)(nil)
	_ eviction.Reorderer = (*Queue)(nil)
)

// NewQueue returns an empty MRU queue.
func NewQueue() *Queue { return &Queue{} }

func (q *Queue) FirstNodeEntry() *eviction.NodeEntry { return q.list.Front() }

func (q *Queue) AddNodeEntry(e *eviction.NodeEntry) {
	if q.Insert(e) {
		q.list.PushFront(e)
	}
}

func (q *Queue) RemoveNodeEntry(e *eviction.NodeEntry) {
	if cur, ok := q.Delete(e); ok {
		q.list.Remove(cur)
	}
}

// Visit moves e to the front.
func (q *Queue) Visit(e *eviction.NodeEntry) {
	if q.list.Contains(e) {
		q.list.MoveToFront(e)
	}
}

func (q *Queue) Clear() {
	q.list.Clear()
	q.Reset()
}

func (q *Queue) Entries() iter.Seq[*eviction.NodeEntry] { return q.list.All() }
