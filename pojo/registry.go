package pojo

import (
	"reflect"
	"sync"

	"github.com/IvanBrykalov/pojocache/fqn"
)

// Registry maps attached objects to the path holding them. It belongs to
// one ObjectGraphHandler and only knows objects attached through it; an
// entry lives until the object is detached.
type Registry struct {
	mu     sync.RWMutex
	owners map[any]fqn.Fqn
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{owners: make(map[any]fqn.Fqn)}
}

// identity returns the key under which v is tracked. Only non-nil
// pointers have an identity; other values are never shared.
func identity(v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return nil, false
	}
	return v, true
}

// Owner returns the path v is attached at.
func (r *Registry) Owner(v any) (fqn.Fqn, bool) {
	id, ok := identity(v)
	if !ok {
		return fqn.Fqn{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.owners[id]
	return f, ok
}

// Register records f as v's owner. It reports false for values without an
// identity.
func (r *Registry) Register(v any, f fqn.Fqn) bool {
	id, ok := identity(v)
	if !ok {
		return false
	}
	r.mu.Lock()
	r.owners[id] = f
	r.mu.Unlock()
	return true
}

// Unregister forgets v.
func (r *Registry) Unregister(v any) {
	if id, ok := identity(v); ok {
		r.mu.Lock()
		delete(r.owners, id)
		r.mu.Unlock()
	}
}

// Rebase moves every owner at or below from under to.
func (r *Registry) Rebase(from, to fqn.Fqn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, f := range r.owners {
		if f.IsChildOrEquals(from) {
			r.owners[id] = f.Rebase(from, to)
		}
	}
}

// Len returns the number of tracked objects.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owners)
}

// ownedBelow returns the tracked objects owned at or below f, keyed by
// identity.
func (r *Registry) ownedBelow(f fqn.Fqn) map[any]fqn.Fqn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[any]fqn.Fqn)
	for id, o := range r.owners {
		if o.IsChildOrEquals(f) {
			out[id] = o
		}
	}
	return out
}

// restore sets the owner of id back to f, or forgets id when ok is false.
func (r *Registry) restore(id any, f fqn.Fqn, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ok {
		r.owners[id] = f
	} else {
		delete(r.owners, id)
	}
}
