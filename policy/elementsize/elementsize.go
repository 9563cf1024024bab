// Package elementsize implements eviction by per-node element count: the
// nodes holding the most data elements go first.
package elementsize

import (
	"cmp"
	"iter"

	"github.com/IvanBrykalov/pojocache/eviction"
)

// PolicyName identifies the policy in configuration.
const PolicyName = "elementsize"

// Config evicts nodes holding more than MaxElementsPerNode elements, and the
// largest nodes while the region holds more than MaxNodes (0 = unbounded).
// MaxElementsPerNode is required.
type Config struct {
	MaxNodes           int
	MaxElementsPerNode int
}

var _ eviction.Config = Config{}

func (Config) PolicyName() string { return PolicyName }

func (c Config) Validate() error {
	if c.MaxNodes < 0 {
		return eviction.ConfigError("elementsize: maxNodes must be >= 0, got %d", c.MaxNodes)
	}
	if c.MaxElementsPerNode <= 0 {
		return eviction.ConfigError("elementsize: maxElementsPerNode must be > 0, got %d", c.MaxElementsPerNode)
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

func (s strategy) ShouldEvictNode(e *eviction.NodeEntry) bool {
	if s.cfg.MaxNodes > 0 && s.q.NumberOfNodes() > s.cfg.MaxNodes {
		return true
	}
	return e.NumberOfElements() > s.cfg.MaxElementsPerNode
}

// bySize orders by descending element count. Entries with equal counts
// compare equal, so the order among them is whatever the stable sort kept;
// this is not a total order over entries.
func bySize(a, b *eviction.NodeEntry) int {
	return cmp.Compare(b.NumberOfElements(), a.NumberOfElements())
}

// Queue is sorted by element count, largest first; removals are deferred.
type Queue struct {
	eviction.EntryIndex
	list *eviction.SortedList
}

var _ eviction.SortedQueue = (*Queue)(nil)

// NewQueue returns an empty element-size queue.
func NewQueue() *Queue {
	return &Queue{list: eviction.NewSortedList(bySize)}
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

func (q *Queue) Clear() {
	q.list.Clear()
	q.Reset()
}

func (q *Queue) Entries() iter.Seq[*eviction.NodeEntry] { return q.list.All() }
