package eviction

import (
	"iter"

	"github.com/IvanBrykalov/pojocache/fqn"
)

// Queue is the ordered collection of NodeEntry a policy evicts from.
// Implementations are not safe for concurrent use.
type Queue interface {
	// FirstNodeEntry returns the next eviction candidate, or nil if empty.
	FirstNodeEntry() *NodeEntry
	// NodeEntry looks f up without changing the order.
	NodeEntry(f fqn.Fqn) *NodeEntry
	ContainsNodeEntry(e *NodeEntry) bool
	// AddNodeEntry inserts e; a no-op if an entry for the path is present.
	AddNodeEntry(e *NodeEntry)
	RemoveNodeEntry(e *NodeEntry)
	NumberOfNodes() int
	NumberOfElements() int
	ModifyElementCount(delta int)
	Clear()
	// Entries yields live entries in eviction order. Removing the entry
	// being visited is allowed; other mutations during iteration are not.
	Entries() iter.Seq[*NodeEntry]
}

// Reorderer is implemented by queues whose order depends on recency.
type Reorderer interface {
	Visit(e *NodeEntry)
}

// SortedQueue is implemented by queues that keep a sorted list with
// deferred removal.
type SortedQueue interface {
	Queue
	// ResortEvictionQueue drops pending removals and re-sorts.
	ResortEvictionQueue()
	// Prune drops pending removals from the ordering list in one pass.
	Prune()
}

// EntryIndex is the path → entry map shared by all queue implementations.
// It owns the running element total and binds entries to it.
type EntryIndex struct {
	m        map[string]*NodeEntry
	elements int
}

func (ix *EntryIndex) NodeEntry(f fqn.Fqn) *NodeEntry {
	return ix.m[f.String()]
}

func (ix *EntryIndex) ContainsNodeEntry(e *NodeEntry) bool {
	_, ok := ix.m[e.key]
	return ok
}

func (ix *EntryIndex) NumberOfNodes() int           { return len(ix.m) }
func (ix *EntryIndex) NumberOfElements() int        { return ix.elements }
func (ix *EntryIndex) ModifyElementCount(delta int) { ix.elements += delta }

// Insert registers e and binds it to the index. It reports false, leaving
// e untouched, when an entry for the same path is already present.
func (ix *EntryIndex) Insert(e *NodeEntry) bool {
	if ix.m == nil {
		ix.m = make(map[string]*NodeEntry)
	}
	if _, ok := ix.m[e.key]; ok {
		return false
	}
	ix.m[e.key] = e
	e.queue = ix
	ix.elements += e.elements
	return true
}

// Delete unregisters the entry stored for e's path and returns it.
func (ix *EntryIndex) Delete(e *NodeEntry) (*NodeEntry, bool) {
	cur, ok := ix.m[e.key]
	if !ok {
		return nil, false
	}
	delete(ix.m, e.key)
	ix.elements -= cur.elements
	cur.queue = nil
	return cur, true
}

// Reset forgets all entries.
func (ix *EntryIndex) Reset() {
	for _, e := range ix.m {
		e.queue = nil
	}
	ix.m = nil
	ix.elements = 0
}
