package pojo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/jmgilman/go/errors"

	"github.com/IvanBrykalov/pojocache/fqn"
	"github.com/IvanBrykalov/pojocache/internal/tree"
)

// Reserved node keys.
const (
	// ClassKey holds the type name of the attached object.
	ClassKey = "__pojo:class__"
	// InstanceKey holds the published *Instance.
	InstanceKey = "__pojo:instance__"
	// ValueKey holds the object itself, on canonical holders only.
	ValueKey = "__pojo:value__"
)

// reservedKeyPrefix starts every key the object-graph layer writes.
const reservedKeyPrefix = "__pojo:"

// IsReservedKey reports whether key belongs to the object-graph layer.
func IsReservedKey(key string) bool { return strings.HasPrefix(key, reservedKeyPrefix) }

var (
	// InternalFqn is the root of the bookkeeping area. Nodes below it are
	// not cache data and are not tracked for eviction.
	InternalFqn = fqn.New("__pojocache_internal__")
	// RefMapFqn holds the alias index: indirect id → canonical path.
	RefMapFqn = InternalFqn.Append("refmap")
)

// Delegate reads and writes object metadata on the store. Writes are
// copy-on-write and recorded in the context's Txn. Mutators require a
// guard for the path they modify.
type Delegate struct {
	store *tree.Store
	locks *Locks
	seq   atomic.Uint64
	log   *slog.Logger
}

// NewDelegate creates a delegate over store. A nil logger discards.
func NewDelegate(store *tree.Store, locks *Locks, log *slog.Logger) *Delegate {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Delegate{store: store, locks: locks, log: log}
}

// Locks returns the lock table guards are taken from.
func (d *Delegate) Locks() *Locks { return d.locks }

// Instance returns the metadata published on f, or nil if f holds no
// object.
func (d *Delegate) Instance(f fqn.Fqn) *Instance {
	v, _ := d.store.Peek(f, InstanceKey)
	inst, _ := v.(*Instance)
	return inst
}

// mustInstance panics if f holds no object: callers only ask for paths
// the graph already knows.
func (d *Delegate) mustInstance(f fqn.Fqn) *Instance {
	inst := d.Instance(f)
	if inst == nil {
		panic(fmt.Sprintf("pojo: no instance published on %s", f))
	}
	return inst
}

func (d *Delegate) write(ctx context.Context, f fqn.Fqn, key string, v any) error {
	if t := TxnFrom(ctx); t != nil {
		if err := t.recordKey(f, key); err != nil {
			return err
		}
	}
	d.store.PutInternal(f, key, v)
	return nil
}

func (d *Delegate) erase(ctx context.Context, f fqn.Fqn, key string) error {
	if _, existed := d.store.Peek(f, key); !existed {
		return nil
	}
	if t := TxnFrom(ctx); t != nil {
		if err := t.recordKey(f, key); err != nil {
			return err
		}
	}
	d.store.RemoveKeyInternal(f, key)
	return nil
}

// publish stores a copy of inst as the next version on f.
func (d *Delegate) publish(ctx context.Context, f fqn.Fqn, inst *Instance) error {
	next := inst.Clone()
	next.version = 1
	if cur := d.Instance(f); cur != nil {
		next.version = cur.version + 1
	}
	return d.write(ctx, f, InstanceKey, next)
}

// PutInstance publishes inst on f.
func (d *Delegate) PutInstance(ctx context.Context, g *Guard, f fqn.Fqn, inst *Instance) error {
	if err := g.covers(f); err != nil {
		return err
	}
	return d.publish(ctx, f, inst)
}

// RemoveInstance drops the metadata on f.
func (d *Delegate) RemoveInstance(ctx context.Context, g *Guard, f fqn.Fqn) error {
	if err := g.covers(f); err != nil {
		return err
	}
	return d.erase(ctx, f, InstanceKey)
}

// IncrementRefCount records that referencing now aliases original and
// returns the new count. The first reference allocates original's
// indirect id.
func (d *Delegate) IncrementRefCount(ctx context.Context, g *Guard, original, referencing fqn.Fqn) (int, error) {
	if err := g.covers(original); err != nil {
		return 0, err
	}
	cur := d.mustInstance(original)
	if cur.IsAlias() {
		return 0, errors.Newf(errors.CodeInternal, "pojo: %s is an alias and cannot be referenced", original)
	}
	next := cur.Clone()
	n := next.incrementRefCount(referencing)
	if next.indirect == "" {
		id, err := d.AllocateIndirectFqn(ctx, original)
		if err != nil {
			return 0, err
		}
		next.indirect = id
	}
	if err := d.publish(ctx, original, next); err != nil {
		return 0, err
	}
	return n, nil
}

// DecrementRefCount drops referencing from original's references and
// returns the new count. When no reference is left the count is
// Unreferenced and original's indirect id is released. Decrementing an
// unreferenced holder panics.
func (d *Delegate) DecrementRefCount(ctx context.Context, g *Guard, original, referencing fqn.Fqn) (int, error) {
	if err := g.covers(original); err != nil {
		return 0, err
	}
	next := d.mustInstance(original).Clone()
	n := next.decrementRefCount(referencing)
	if n == Unreferenced && next.indirect != "" {
		if err := d.RemoveIndirectFqn(ctx, next.indirect); err != nil {
			return 0, err
		}
		next.indirect = ""
	}
	if err := d.publish(ctx, original, next); err != nil {
		return 0, err
	}
	return n, nil
}

// RefCount returns f's reference count. f must hold an object.
func (d *Delegate) RefCount(f fqn.Fqn) int { return d.mustInstance(f).RefCount() }

// IsReferenced reports whether any alias points to f.
func (d *Delegate) IsReferenced(f fqn.Fqn) bool {
	inst := d.Instance(f)
	return inst != nil && inst.IsReferenced()
}

// ReferencingFqns returns the aliases of f in insertion order. f must hold
// an object.
func (d *Delegate) ReferencingFqns(f fqn.Fqn) []fqn.Fqn {
	return d.mustInstance(f).ReferencingFqns()
}

// RefFqn returns the indirect id f aliases, or "" if f is not an alias.
func (d *Delegate) RefFqn(f fqn.Fqn) string {
	if inst := d.Instance(f); inst != nil {
		return inst.RefFqn()
	}
	return ""
}

// SetRefFqn makes f an alias of the holder with the given indirect id.
func (d *Delegate) SetRefFqn(ctx context.Context, g *Guard, f fqn.Fqn, id string) error {
	if err := g.covers(f); err != nil {
		return err
	}
	next := NewAlias(id)
	if cur := d.Instance(f); cur != nil {
		next = cur.Clone()
		next.refFqn = id
	}
	return d.publish(ctx, f, next)
}

// RemoveRefFqn clears f's alias id.
func (d *Delegate) RemoveRefFqn(ctx context.Context, g *Guard, f fqn.Fqn) error {
	if err := g.covers(f); err != nil {
		return err
	}
	cur := d.Instance(f)
	if cur == nil || !cur.IsAlias() {
		return nil
	}
	next := cur.Clone()
	next.refFqn = ""
	return d.publish(ctx, f, next)
}

// RebaseReferencing moves f's referencing paths at or below from under to.
func (d *Delegate) RebaseReferencing(ctx context.Context, g *Guard, f, from, to fqn.Fqn) error {
	if err := g.covers(f); err != nil {
		return err
	}
	next := d.mustInstance(f).Clone()
	if !next.rebase(from, to) {
		return nil
	}
	return d.publish(ctx, f, next)
}

// AllocateIndirectFqn returns a fresh indirect id for original and indexes
// it. Ids combine a hash of the path with a process-wide sequence number
// and are checked against the index, so they are never reused.
func (d *Delegate) AllocateIndirectFqn(ctx context.Context, original fqn.Fqn) (string, error) {
	h := xxhash.Sum64String(original.String())
	for {
		id := fmt.Sprintf("%016x-%d", h, d.seq.Add(1))
		if _, taken := d.store.Peek(RefMapFqn, id); taken {
			d.log.Warn("indirect id collision", "id", id, "fqn", original.String())
			continue
		}
		return id, d.SetIndirectFqn(ctx, id, original)
	}
}

// ResolveIndirectFqn returns the canonical holder indexed under id.
func (d *Delegate) ResolveIndirectFqn(id string) (fqn.Fqn, bool) {
	v, ok := d.store.Peek(RefMapFqn, id)
	if !ok {
		return fqn.Fqn{}, false
	}
	f, ok := v.(fqn.Fqn)
	return f, ok
}

// SetIndirectFqn points id at f.
func (d *Delegate) SetIndirectFqn(ctx context.Context, id string, f fqn.Fqn) error {
	return d.write(ctx, RefMapFqn, id, f)
}

// RemoveIndirectFqn drops id from the index.
func (d *Delegate) RemoveIndirectFqn(ctx context.Context, id string) error {
	return d.erase(ctx, RefMapFqn, id)
}
