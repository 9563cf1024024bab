package eviction

import (
	"iter"
	"slices"
)

// SortedList keeps entries in a slice ordered by cmp and defers physical
// removal: Remove only records the path in a tombstone set, Front skips and
// drops tombstoned heads, and Prune reconciles the whole slice in one pass.
//
// Tombstones are keyed by path, not by entry identity. Each path occurs at
// most once in the slice: pushing a tombstoned path purges the stale slot
// first.
type SortedList struct {
	items   []*NodeEntry
	removed map[string]struct{}
	cmp     func(a, b *NodeEntry) int
}

// NewSortedList returns a list ordered by cmp. A nil cmp keeps insertion
// order and makes Sort a plain Prune.
func NewSortedList(cmp func(a, b *NodeEntry) int) *SortedList {
	return &SortedList{cmp: cmp, removed: make(map[string]struct{})}
}

// Len returns the number of live entries.
func (s *SortedList) Len() int { return len(s.items) - len(s.removed) }

// PendingRemovals returns the number of tombstoned slots.
func (s *SortedList) PendingRemovals() int { return len(s.removed) }

// Push appends e. Order is restored by the next Sort.
func (s *SortedList) Push(e *NodeEntry) {
	if _, stale := s.removed[e.key]; stale {
		s.items = slices.DeleteFunc(s.items, func(x *NodeEntry) bool { return x.key == e.key })
		delete(s.removed, e.key)
	}
	s.items = append(s.items, e)
}

// Remove marks e's path for deferred removal.
func (s *SortedList) Remove(e *NodeEntry) {
	s.removed[e.key] = struct{}{}
}

// Front returns the first live entry, dropping tombstoned heads on the way.
func (s *SortedList) Front() *NodeEntry {
	for len(s.items) > 0 {
		h := s.items[0]
		if _, dead := s.removed[h.key]; !dead {
			return h
		}
		delete(s.removed, h.key)
		s.items[0] = nil
		s.items = s.items[1:]
	}
	return nil
}

// Prune drops all tombstoned slots.
func (s *SortedList) Prune() {
	if len(s.removed) == 0 {
		return
	}
	live := s.items[:0]
	for _, e := range s.items {
		if _, dead := s.removed[e.key]; !dead {
			live = append(live, e)
		}
	}
	clear(s.items[len(live):])
	s.items = live
	clear(s.removed)
}

// Sort prunes and re-sorts. Equal elements keep their relative order.
func (s *SortedList) Sort() {
	s.Prune()
	if s.cmp != nil {
		slices.SortStableFunc(s.items, s.cmp)
	}
}

// Clear drops every entry and tombstone.
func (s *SortedList) Clear() {
	s.items = nil
	clear(s.removed)
}

// All yields live entries in list order. Removing the entry being yielded
// is allowed.
func (s *SortedList) All() iter.Seq[*NodeEntry] {
	return func(yield func(*NodeEntry) bool) {
		items := s.items
		for _, e := range items {
			if _, dead := s.removed[e.key]; dead {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}
