package pojo

import (
	"fmt"
	"slices"

	"github.com/IvanBrykalov/pojocache/fqn"
)

// Unreferenced is the reference count of a holder no alias points to.
const Unreferenced = -1

// Instance is the object metadata published on a node. Published values
// are never modified; see Clone.
type Instance struct {
	value any
	// refFqn is the indirect id of the canonical holder; set on aliases only.
	refFqn string
	// indirect is this holder's own id while it is referenced.
	indirect    string
	refCount    int
	referencing []fqn.Fqn
	version     uint64
}

// NewInstance returns the metadata of a fresh canonical holder of v.
func NewInstance(v any) *Instance {
	return &Instance{value: v, refCount: Unreferenced}
}

// NewAlias returns the metadata of an alias to the holder with the given
// indirect id.
func NewAlias(refFqn string) *Instance {
	return &Instance{refFqn: refFqn, refCount: Unreferenced}
}

// Value returns the in-memory object handle (nil on aliases).
func (i *Instance) Value() any { return i.value }

// RefFqn returns the indirect id an alias points to, or "".
func (i *Instance) RefFqn() string { return i.refFqn }

// IsAlias reports whether the instance is an alias.
func (i *Instance) IsAlias() bool { return i.refFqn != "" }

// IndirectFqn returns the holder's own indirect id, or "" if unreferenced.
func (i *Instance) IndirectFqn() string { return i.indirect }

func (i *Instance) RefCount() int { return i.refCount }

// IsReferenced reports whether any alias points to the holder.
func (i *Instance) IsReferenced() bool { return i.refCount > 0 }

// ReferencingFqns returns the alias paths in the order they were added.
func (i *Instance) ReferencingFqns() []fqn.Fqn { return slices.Clone(i.referencing) }

// Version increases with every publish of the node's metadata.
func (i *Instance) Version() uint64 { return i.version }

// Clone returns an unpublished copy that may be modified.
func (i *Instance) Clone() *Instance {
	c := *i
	c.referencing = slices.Clone(i.referencing)
	return &c
}

func (i *Instance) incrementRefCount(src fqn.Fqn) int {
	i.referencing = append(i.referencing, src)
	if i.refCount == Unreferenced {
		i.refCount = 1
	} else {
		i.refCount++
	}
	return i.refCount
}

// decrementRefCount panics on underflow: the metadata is corrupt.
func (i *Instance) decrementRefCount(src fqn.Fqn) int {
	if i.refCount <= Unreferenced {
		panic(fmt.Sprintf("pojo: reference count underflow (count %d, referencing path %s)", i.refCount, src))
	}
	if k := slices.IndexFunc(i.referencing, src.Equal); k >= 0 {
		i.referencing = slices.Delete(i.referencing, k, k+1)
	}
	i.refCount--
	if i.refCount == 0 {
		i.refCount = Unreferenced
	}
	return i.refCount
}

// rebase moves referencing paths at or below from under to.
func (i *Instance) rebase(from, to fqn.Fqn) bool {
	changed := false
	for k, r := range i.referencing {
		if r.IsChildOrEquals(from) {
			i.referencing[k] = r.Rebase(from, to)
			changed = true
		}
	}
	return changed
}

func (i *Instance) String() string {
	if i.IsAlias() {
		return fmt.Sprintf("Instance{alias=%s v%d}", i.refFqn, i.version)
	}
	return fmt.Sprintf("Instance{%T refCount=%d indirect=%q v%d}", i.value, i.refCount, i.indirect, i.version)
}
