// Package lru implements the Least-Recently-Used eviction policy with
// optional maximum age and node-count bounds.
package lru

import (
	"context"
	"iter"
	"time"

	"github.com/IvanBrykalov/pojocache/eviction"
)

// PolicyName identifies the policy in configuration.
const PolicyName = "lru"

// Config evicts nodes idle for TimeToLive, nodes older than MaxAge, and
// the least recently used nodes while the region holds more than MaxNodes.
// A zero value disables the respective bound; at least one must be set.
type Config struct {
	MaxNodes   int
	TimeToLive time.Duration
	MaxAge     time.Duration
}

var _ eviction.Config = Config{}

func (Config) PolicyName() string { return PolicyName }

func (c Config) Validate() error {
	if c.MaxNodes < 0 || c.TimeToLive < 0 || c.MaxAge < 0 {
		return eviction.ConfigError("lru: maxNodes, timeToLive and maxAge must be >= 0")
	}
	if c.MaxNodes == 0 && c.TimeToLive == 0 && c.MaxAge == 0 {
		return eviction.ConfigError("lru: one of maxNodes, timeToLive or maxAge must be set")
	}
	return nil
}

// NewAlgorithm implements eviction.Config.
func (c Config) NewAlgorithm(d eviction.Deps) eviction.Algorithm {
	q := NewQueue()
	return eviction.NewBase(q, &strategy{cfg: c, q: q}, d)
}

// strategy prunes in three passes: idle time over the recency order, age
// over the insertion order, then node count over the recency order.
type strategy struct {
	cfg Config
	q   *Queue
	now int64
}

var _ eviction.Pruner = (*strategy)(nil)

func (s *strategy) ShouldEvictNode(e *eviction.NodeEntry) bool {
	return s.idle(e) || s.aged(e) || s.overCapacity()
}

func (s *strategy) idle(e *eviction.NodeEntry) bool {
	return s.cfg.TimeToLive > 0 && s.now-e.ModifiedTimeStamp() >= int64(s.cfg.TimeToLive)
}

func (s *strategy) aged(e *eviction.NodeEntry) bool {
	return s.cfg.MaxAge > 0 && s.now-e.CreationTimeStamp() >= int64(s.cfg.MaxAge)
}

func (s *strategy) overCapacity() bool {
	return s.cfg.MaxNodes > 0 && s.q.NumberOfNodes() > s.cfg.MaxNodes
}

func (s *strategy) PruneEvictionQueue(ctx context.Context, b *eviction.Base) error {
	s.q.Prune()
	s.now = b.Now()
	if s.cfg.TimeToLive > 0 {
		if err := s.pass(ctx, b, s.q.Entries(), s.idle); err != nil {
			return err
		}
	}
	if s.cfg.MaxAge > 0 {
		if err := s.pass(ctx, b, s.q.MaxAgeEntries(), s.aged); err != nil {
			return err
		}
	}
	if s.cfg.MaxNodes > 0 {
		return s.pass(ctx, b, s.q.Entries(), func(*eviction.NodeEntry) bool { return s.overCapacity() })
	}
	return nil
}

// pass evicts from the front of seq while pred holds. In-use entries are
// skipped without ending the pass.
func (s *strategy) pass(ctx context.Context, b *eviction.Base, seq iter.Seq[*eviction.NodeEntry], pred func(*eviction.NodeEntry) bool) error {
	for e := range seq {
		if err := ctx.Err(); err != nil {
			return err
		}
		if b.SkipInUse(e, s.now) {
			continue
		}
		if !pred(e) {
			return nil
		}
		if !b.EvictNode(ctx, e) {
			return nil
		}
	}
	return nil
}

// Queue keeps two views of the same entries: recency order (least recently
// used first, reordered on Visit) and insertion order (oldest first, never
// reordered). Removal from the insertion order is deferred.
type Queue struct {
	eviction.EntryIndex
	idle eviction.LinkedList
	age  *eviction.SortedList
}

var (
	_ eviction.Queue     = (*Queue)(nil)
	_ eviction.Reorderer = (*Queue)(nil)
)

// NewQueue returns an empty LRU queue.
func NewQueue() *Queue {
	return &Queue{age: eviction.NewSortedList(nil)}
}

// FirstNodeEntry returns the least recently used entry.
func (q *Queue) FirstNodeEntry() *eviction.NodeEntry { return q.idle.Front() }

// FirstMaxAgeNodeEntry returns the oldest entry by creation.
func (q *Queue) FirstMaxAgeNodeEntry() *eviction.NodeEntry { return q.age.Front() }

func (q *Queue) AddNodeEntry(e *eviction.NodeEntry) {
	if q.Insert(e) {
		q.idle.PushBack(e)
		q.age.Push(e)
	}
}

func (q *Queue) RemoveNodeEntry(e *eviction.NodeEntry) {
	if cur, ok := q.Delete(e); ok {
		q.idle.Remove(cur)
		q.age.Remove(cur)
	}
}

// Visit marks e as most recently used.
func (q *Queue) Visit(e *eviction.NodeEntry) {
	if q.idle.Contains(e) {
		q.idle.MoveToBack(e)
	}
}

// Prune drops deferred removals from the insertion order.
func (q *Queue) Prune() { q.age.Prune() }

func (q *Queue) Clear() {
	q.idle.Clear()
	q.age.Clear()
	q.Reset()
}

// Entries yields entries least recently used first.
func (q *Queue) Entries() iter.Seq[*eviction.NodeEntry] { return q.idle.All() }

// MaxAgeEntries yields entries oldest first.
func (q *Queue) MaxAgeEntries() iter.Seq[*eviction.NodeEntry] { return q.age.All() }
