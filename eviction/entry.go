package eviction

import (
	"fmt"

	"github.com/IvanBrykalov/pojocache/fqn"
)

// ElementCounter receives element-count deltas from the entries it owns.
type ElementCounter interface {
	ModifyElementCount(delta int)
}

// NodeEntry is the eviction bookkeeping record for one node.
//
// An entry is owned by exactly one queue. The queue back reference is only
// used to push element-count deltas up to the queue's running total.
// NodeEntry is not safe for concurrent use; it is touched only by the
// algorithm pass that owns its region.
type NodeEntry struct {
	fqn fqn.Fqn
	key string

	created  int64 // UnixNano
	modified int64 // UnixNano
	visits   int
	elements int

	inUse         bool
	inUseDeadline int64 // UnixNano, 0 = no deadline

	queue ElementCounter

	// Intrusive links used by LinkedList.
	prev, next *NodeEntry
	linked     bool
}

// NewNodeEntry creates a detached entry for f.
func NewNodeEntry(f fqn.Fqn) *NodeEntry {
	return &NodeEntry{fqn: f, key: f.String()}
}

// Fqn returns the path the entry tracks.
func (e *NodeEntry) Fqn() fqn.Fqn { return e.fqn }

// Key returns the canonical string form of the path.
func (e *NodeEntry) Key() string { return e.key }

func (e *NodeEntry) CreationTimeStamp() int64     { return e.created }
func (e *NodeEntry) SetCreationTimeStamp(t int64) { e.created = t }
func (e *NodeEntry) ModifiedTimeStamp() int64     { return e.modified }
func (e *NodeEntry) SetModifiedTimeStamp(t int64) { e.modified = t }
func (e *NodeEntry) NumberOfNodeVisits() int      { return e.visits }
func (e *NodeEntry) SetNumberOfNodeVisits(n int)  { e.visits = n }
func (e *NodeEntry) NumberOfElements() int        { return e.elements }

// SetNumberOfElements updates the element count and forwards the delta to
// the owning queue, if any.
func (e *NodeEntry) SetNumberOfElements(n int) {
	if e.queue != nil {
		e.queue.ModifyElementCount(n - e.elements)
	}
	e.elements = n
}

// IsCurrentlyInUse reports whether the entry is marked in use at now.
// A mark with a deadline stops counting once the deadline has passed.
func (e *NodeEntry) IsCurrentlyInUse(now int64) bool {
	if !e.inUse {
		return false
	}
	return e.inUseDeadline == 0 || now < e.inUseDeadline
}

// InUseDeadline returns the in-use deadline in UnixNano (0 = none).
func (e *NodeEntry) InUseDeadline() int64 { return e.inUseDeadline }

// SetCurrentlyInUse marks or unmarks the entry. deadline is an absolute
// UnixNano instant; 0 keeps the mark until it is cleared explicitly.
func (e *NodeEntry) SetCurrentlyInUse(inUse bool, deadline int64) {
	e.inUse = inUse
	if inUse {
		e.inUseDeadline = deadline
	} else {
		e.inUseDeadline = 0
	}
}

func (e *NodeEntry) String() string {
	return fmt.Sprintf("NodeEntry{fqn=%s visits=%d elements=%d modified=%d inUse=%t}",
		e.key, e.visits, e.elements, e.modified, e.inUse)
}
