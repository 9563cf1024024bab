package pojo

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"

	"github.com/jmgilman/go/errors"

	"github.com/IvanBrykalov/pojocache/fqn"
	"github.com/IvanBrykalov/pojocache/internal/tree"
)

// ObjectGraphHandler attaches, reads and detaches objects. Attaching an
// object that is already attached elsewhere creates an alias.
//
// Put and Remove are serialized by the handler; refcount updates
// additionally hold the path guard of the holder they modify. At most one
// guard is held at a time.
type ObjectGraphHandler struct {
	mu    sync.RWMutex
	store *tree.Store
	d     *Delegate
	reg   *Registry
	log   *slog.Logger
}

// NewObjectGraphHandler creates a handler. A nil registry creates one; a
// nil logger discards.
func NewObjectGraphHandler(store *tree.Store, d *Delegate, reg *Registry, log *slog.Logger) *ObjectGraphHandler {
	if reg == nil {
		reg = NewRegistry()
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &ObjectGraphHandler{store: store, d: d, reg: reg, log: log}
}

// Delegate returns the metadata delegate.
func (h *ObjectGraphHandler) Delegate() *Delegate { return h.d }

// Registry returns the object → holder index.
func (h *ObjectGraphHandler) Registry() *Registry { return h.reg }

func className(v any) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}

func sameObject(a, b any) bool {
	ia, ok := identity(a)
	if !ok {
		return false
	}
	ib, ok := identity(b)
	return ok && ia == ib
}

func (h *ObjectGraphHandler) withGuard(f fqn.Fqn, fn func(g *Guard) error) error {
	g := h.d.locks.Lock(f)
	defer g.Unlock()
	return fn(g)
}

func checkPath(f fqn.Fqn) error {
	if f.IsRoot() || f.IsChildOrEquals(InternalFqn) {
		return errors.Newf(errors.CodeInvalidInput, "pojo: cannot attach objects at %s", f)
	}
	return nil
}

// Put attaches v at f, replacing any object attached there. It reports
// whether f became an alias of an existing holder of v.
func (h *ObjectGraphHandler) Put(ctx context.Context, f fqn.Fqn, v any) (shared bool, err error) {
	if err := checkPath(f); err != nil {
		return false, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.track(ctx, f); err != nil {
		return false, err
	}

	if cur := h.d.Instance(f); cur != nil {
		if !cur.IsAlias() && sameObject(cur.Value(), v) {
			return false, nil
		}
		if _, _, err := h.removeLocked(ctx, f, false); err != nil {
			return false, err
		}
	}
	if owner, ok := h.holder(v); ok {
		return true, h.alias(ctx, f, owner, v)
	}
	return false, h.attach(ctx, f, v)
}

// holder returns the canonical holder of v, if v is attached.
func (h *ObjectGraphHandler) holder(v any) (fqn.Fqn, bool) {
	owner, ok := h.reg.Owner(v)
	if !ok {
		return fqn.Fqn{}, false
	}
	inst := h.d.Instance(owner)
	if inst == nil || inst.IsAlias() || !sameObject(inst.Value(), v) {
		// The holder went away underneath us, e.g. evicted.
		h.reg.Unregister(v)
		return fqn.Fqn{}, false
	}
	return owner, true
}

func (h *ObjectGraphHandler) attach(ctx context.Context, f fqn.Fqn, v any) error {
	h.store.PutAll(f, map[string]any{ClassKey: className(v), ValueKey: v})
	err := h.withGuard(f, func(g *Guard) error {
		return h.d.PutInstance(ctx, g, f, NewInstance(v))
	})
	if err != nil {
		return err
	}
	if err := h.recordOwner(ctx, v); err != nil {
		return err
	}
	h.reg.Register(v, f)
	return nil
}

// track records f's subtree in the transaction carried by ctx, if any, so
// that rollback undoes the structural changes made below f.
func (h *ObjectGraphHandler) track(ctx context.Context, f fqn.Fqn) error {
	if t := TxnFrom(ctx); t != nil {
		return t.recordSubtree(f)
	}
	return nil
}

// recordOwner records v's registry entry in the transaction carried by ctx.
func (h *ObjectGraphHandler) recordOwner(ctx context.Context, v any) error {
	t := TxnFrom(ctx)
	id, ok := identity(v)
	if t == nil || !ok {
		return nil
	}
	owner, had := h.reg.Owner(v)
	return t.record(func() { h.reg.restore(id, owner, had) })
}

// recordOwnersBelow records the registry entries at or below f.
func (h *ObjectGraphHandler) recordOwnersBelow(ctx context.Context, f fqn.Fqn) error {
	t := TxnFrom(ctx)
	if t == nil {
		return nil
	}
	prev := h.reg.ownedBelow(f)
	return t.record(func() {
		for id, owner := range prev {
			h.reg.restore(id, owner, true)
		}
	})
}

func (h *ObjectGraphHandler) alias(ctx context.Context, f, owner fqn.Fqn, v any) error {
	var id string
	err := h.withGuard(owner, func(g *Guard) error {
		if _, err := h.d.IncrementRefCount(ctx, g, owner, f); err != nil {
			return err
		}
		id = h.d.Instance(owner).IndirectFqn()
		return nil
	})
	if err != nil {
		return err
	}
	h.store.Put(f, ClassKey, className(v))
	return h.withGuard(f, func(g *Guard) error {
		return h.d.SetRefFqn(ctx, g, f, id)
	})
}

// Get returns the object attached at f. Reads of an alias are served from
// the canonical holder.
func (h *ObjectGraphHandler) Get(f fqn.Fqn) (any, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	inst := h.d.Instance(f)
	if inst == nil {
		return nil, false
	}
	if !inst.IsAlias() {
		return h.store.Get(f, ValueKey)
	}
	// The alias is read too, even though the value lives on the holder.
	h.store.Visit(f)
	return h.store.Get(h.resolve(inst), ValueKey)
}

// resolve panics on a dangling alias: the index and the metadata disagree.
func (h *ObjectGraphHandler) resolve(alias *Instance) fqn.Fqn {
	target, ok := h.d.ResolveIndirectFqn(alias.RefFqn())
	if !ok {
		panic(fmt.Sprintf("pojo: dangling alias %s", alias.RefFqn()))
	}
	return target
}

// Remove detaches the object at f and removes f's subtree, returning the
// detached object. Objects below f are detached first. A holder other
// paths still alias is moved to one of them instead of being lost.
//
// With evict set, nodes are dropped with tree.Store.Evict, which can fail
// with a retryable timeout.
func (h *ObjectGraphHandler) Remove(ctx context.Context, f fqn.Fqn, evict bool) (any, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.track(ctx, f); err != nil {
		return nil, false, err
	}
	return h.removeLocked(ctx, f, evict)
}

// Evict is TryEvict for callers that do not need to know whether f was
// pinned. It implements the region evictor.
func (h *ObjectGraphHandler) Evict(ctx context.Context, f fqn.Fqn) error {
	_, err := h.TryEvict(ctx, f)
	return err
}

// TryEvict drops an unreferenced object at f, or plain data at f, from
// memory, and reports whether it did. Aliases, referenced holders and
// nodes with objects below them are left in place. Only f itself is
// evicted; nodes below it stay with their regions. TryEvict never waits
// for the handler: when a Put or Remove is running it fails with a
// retryable timeout.
func (h *ObjectGraphHandler) TryEvict(ctx context.Context, f fqn.Fqn) (bool, error) {
	if !h.mu.TryLock() {
		return false, errors.Newf(errors.CodeTimeout, "pojo: object graph busy, cannot evict %s now", f)
	}
	defer h.mu.Unlock()

	inst := h.d.Instance(f)
	if inst == nil {
		if !h.store.Exists(f) {
			return false, nil
		}
		return true, h.store.Evict(ctx, f)
	}
	if inst.IsAlias() || inst.IsReferenced() || h.hasObjectsBelow(f) {
		h.log.Debug("object pinned, not evicting", "fqn", f.String())
		return false, nil
	}
	_, _, err := h.removeLocked(ctx, f, true)
	return err == nil, err
}

func (h *ObjectGraphHandler) hasObjectsBelow(f fqn.Fqn) bool {
	nodes := h.store.Subtree(f)
	return len(nodes) > 1 && slices.ContainsFunc(nodes[1:], func(n fqn.Fqn) bool {
		return h.d.Instance(n) != nil
	})
}

func (h *ObjectGraphHandler) removeLocked(ctx context.Context, f fqn.Fqn, evict bool) (any, bool, error) {
	inst := h.d.Instance(f)
	switch {
	case inst == nil:
		if !h.store.Exists(f) {
			return nil, false, nil
		}
		if err := h.removeBelow(ctx, f, evict); err != nil {
			return nil, false, err
		}
		return nil, true, h.drop(ctx, f, evict)

	case inst.IsAlias():
		original := h.resolve(inst)
		value, _ := h.store.Peek(original, ValueKey)
		err := h.withGuard(original, func(g *Guard) error {
			_, err := h.d.DecrementRefCount(ctx, g, original, f)
			return err
		})
		if err != nil {
			return nil, false, err
		}
		err = h.withGuard(f, func(g *Guard) error { return h.d.RemoveRefFqn(ctx, g, f) })
		if err != nil {
			return nil, false, err
		}
		if err := h.removeBelow(ctx, f, evict); err != nil {
			return nil, false, err
		}
		return value, true, h.drop(ctx, f, evict)
	}

	value := inst.Value()
	if inst.IsReferenced() {
		moved, err := h.relocate(ctx, f, inst, evict)
		if err != nil || moved {
			return value, err == nil, err
		}
	}
	if err := h.removeBelow(ctx, f, evict); err != nil {
		return nil, false, err
	}
	if evict {
		// Drop first: a failed eviction must leave the object intact.
		if err := h.drop(ctx, f, true); err != nil {
			return nil, false, err
		}
	} else {
		err := h.withGuard(f, func(g *Guard) error { return h.d.RemoveInstance(ctx, g, f) })
		if err != nil {
			return nil, false, err
		}
	}
	if owner, ok := h.reg.Owner(value); ok && owner.Equal(f) {
		if err := h.recordOwner(ctx, value); err != nil {
			return nil, false, err
		}
		h.reg.Unregister(value)
	}
	if !evict {
		return value, true, h.drop(ctx, f, false)
	}
	return value, true, nil
}

// relocate moves the referenced holder f to the first referencing path
// outside f's subtree. When every reference comes from inside the subtree
// the references are dropped and relocate reports false; f is then removed
// like an unreferenced holder.
func (h *ObjectGraphHandler) relocate(ctx context.Context, f fqn.Fqn, inst *Instance, evict bool) (bool, error) {
	refs := inst.ReferencingFqns()
	k := slices.IndexFunc(refs, func(r fqn.Fqn) bool { return !r.IsChildOrEquals(f) })
	if k < 0 {
		for _, r := range refs {
			err := h.withGuard(f, func(g *Guard) error {
				_, err := h.d.DecrementRefCount(ctx, g, f, r)
				return err
			})
			if err != nil {
				return false, err
			}
			err = h.withGuard(r, func(g *Guard) error { return h.d.RemoveInstance(ctx, g, r) })
			if err != nil {
				return false, err
			}
		}
		return false, nil
	}

	target := refs[k]
	if err := h.track(ctx, target); err != nil {
		return false, err
	}
	err := h.withGuard(f, func(g *Guard) error {
		_, err := h.d.DecrementRefCount(ctx, g, f, target)
		return err
	})
	if err != nil {
		return false, err
	}
	err = h.withGuard(target, func(g *Guard) error { return h.d.RemoveInstance(ctx, g, target) })
	if err != nil {
		return false, err
	}
	if err := h.copySubtree(ctx, f, target); err != nil {
		return false, err
	}
	if err := h.recordOwnersBelow(ctx, f); err != nil {
		return false, err
	}
	h.reg.Rebase(f, target)
	h.log.Debug("relocated object holder", "from", f.String(), "to", target.String())
	return true, h.drop(ctx, f, evict)
}

// copySubtree copies every node below from to the same relative path below
// to, parents first. Metadata follows the move: references from inside the
// subtree are rebased, indirect ids are re-pointed and holders outside the
// subtree learn the new paths of their aliases.
func (h *ObjectGraphHandler) copySubtree(ctx context.Context, from, to fqn.Fqn) error {
	for _, src := range h.store.Subtree(from) {
		dst := src.Rebase(from, to)
		data, ok := h.store.Snapshot(src)
		if !ok {
			continue
		}
		meta, _ := data[InstanceKey].(*Instance)
		delete(data, InstanceKey)

		if !src.Equal(from) && h.d.Instance(dst) != nil {
			if _, _, err := h.removeLocked(ctx, dst, false); err != nil {
				return err
			}
		}
		if len(data) > 0 {
			h.store.PutAll(dst, data)
		} else {
			h.store.CreateNode(dst)
		}
		if meta == nil {
			continue
		}

		next := meta.Clone()
		next.rebase(from, to)
		err := h.withGuard(dst, func(g *Guard) error { return h.d.PutInstance(ctx, g, dst, next) })
		if err != nil {
			return err
		}
		if next.IndirectFqn() != "" {
			if err := h.d.SetIndirectFqn(ctx, next.IndirectFqn(), dst); err != nil {
				return err
			}
		}
		if next.IsAlias() {
			canon, ok := h.d.ResolveIndirectFqn(next.RefFqn())
			if ok && !canon.IsChildOrEquals(from) {
				err := h.withGuard(canon, func(g *Guard) error {
					return h.d.RebaseReferencing(ctx, g, canon, src, dst)
				})
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// removeBelow detaches the objects strictly below f, deepest first.
func (h *ObjectGraphHandler) removeBelow(ctx context.Context, f fqn.Fqn, evict bool) error {
	nodes := h.store.Subtree(f)
	if len(nodes) < 2 {
		return nil
	}
	for _, n := range slices.Backward(nodes[1:]) {
		if h.d.Instance(n) == nil {
			continue
		}
		if _, _, err := h.removeLocked(ctx, n, evict); err != nil {
			return err
		}
	}
	return nil
}

// drop removes f's subtree from the store. With evict set only f is
// evicted: the nodes below it are tracked by their regions and go when
// those regions say so.
func (h *ObjectGraphHandler) drop(ctx context.Context, f fqn.Fqn, evict bool) error {
	if evict {
		return h.store.Evict(ctx, f)
	}
	h.store.Remove(f)
	return nil
}
