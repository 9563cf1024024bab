// Package lfu implements the Least-Frequently-Used eviction policy.
package lfu

import (
	"cmp"
	"iter"

	"github.com/IvanBrykalov/pojocache/eviction"
)

// PolicyName identifies the policy in configuration.
const PolicyName = "lfu"

// Config evicts the least visited nodes while the region holds more than
// MaxNodes, and then keeps evicting down to MinNodes. Zero disables the
// respective bound.
type Config struct {
	MaxNodes int
	MinNodes int
}

var _ eviction.Config = Config{}

func (Config) PolicyName() string { return PolicyName }

func (c Config) Validate() error {
	if c.MaxNodes < 0 || c.MinNodes < 0 {
		return eviction.ConfigError("lfu: maxNodes and minNodes must be >= 0, got %d and %d", c.MaxNodes, c.MinNodes)
	}
	if c.MaxNodes > 0 && c.MinNodes > c.MaxNodes {
		return eviction.ConfigError("lfu: minNodes (%d) exceeds maxNodes (%d)", c.MinNodes, c.MaxNodes)
	}
	return nil
}

// NewAlgorithm implements eviction.Config.
func (c Config) NewAlgorithm(d eviction.Deps) eviction.Algorithm {
	q := NewQueue()
	return eviction.NewBase(q, strategy{cfg: c, q: q}, d)
}

type strategy struct {
	cfg Config
	q   eviction.Queue
}

func (s strategy) ShouldEvictNode(*eviction.NodeEntry) bool {
	n := s.q.NumberOfNodes()
	if s.cfg.MaxNodes > 0 && n > s.cfg.MaxNodes {
		return true
	}
	return s.cfg.MinNodes > 0 && n > s.cfg.MinNodes
}

// byFrequency orders by ascending visit count, older modification first.
func byFrequency(a, b *eviction.NodeEntry) int {
	if c := cmp.Compare(a.NumberOfNodeVisits(), b.NumberOfNodeVisits()); c != 0 {
		return c
	}
	return cmp.Compare(a.ModifiedTimeStamp(), b.ModifiedTimeStamp())
}

// Queue is sorted by visit count. New and visited entries are placed by the
// next ResortEvictionQueue; removals are deferred.
type Queue struct {
	eviction.EntryIndex
	list *eviction.SortedList
}

var _ eviction.SortedQueue = (*Queue)(nil)

// NewQueue returns an empty LFU queue.
func NewQueue() *Queue {
	return &Queue{list: eviction.NewSortedList(byFrequency)}
}

func (q *Queue) FirstNodeEntry() *eviction.NodeEntry { return q.list.Front() }

func (q *Queue) AddNodeEntry(e *eviction.NodeEntry) {
	if q.Insert(e) {
		q.list.Push(e)
	}
}

func (q *Queue) RemoveNodeEntry(e *eviction.NodeEntry) {
	if cur, ok := q.Delete(e); ok {
		q.list.Remove(cur)
	}
}

func (q *Queue) ResortEvictionQueue() { q.list.Sort() }
func (q *Queue) Prune()               { q.list.Prune() }

// PendingRemovals returns the number of removals not yet pruned.
func (q *Queue) PendingRemovals() int { return q.list.PendingRemovals() }

func (q *Queue) Clear() {
	q.list.Clear()
	q.Reset()
}

func (q *Queue) Entries() iter.Seq[*eviction.NodeEntry] { return q.list.All() }
