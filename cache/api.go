package cache

import (
	"context"

	"github.com/IvanBrykalov/pojocache/eviction"
	"github.com/IvanBrykalov/pojocache/fqn"
	"github.com/IvanBrykalov/pojocache/pojo"
)

// Cache is a tree-structured cache of plain data and attached objects
// whose nodes are evicted per region.
// All methods are safe for concurrent use by multiple goroutines.
type Cache interface {
	// Put stores key→v on node f, creating f and its ancestors as needed.
	Put(f fqn.Fqn, key string, v any) error

	// Get returns the value of key on node f and counts as a visit of f.
	Get(f fqn.Fqn, key string) (any, bool)

	// RemoveKey deletes key from node f.
	RemoveKey(f fqn.Fqn, key string) (any, bool)

	// Remove deletes f's subtree, detaching the objects in it.
	Remove(ctx context.Context, f fqn.Fqn) (bool, error)

	// Exists reports whether node f exists.
	Exists(f fqn.Fqn) bool

	// Len returns the number of data nodes, excluding the root and the
	// object-graph bookkeeping area.
	Len() int

	// Attach stores object v at f. If v is already attached elsewhere f
	// becomes an alias of that path and shared is true.
	Attach(ctx context.Context, f fqn.Fqn, v any) (shared bool, err error)

	// Find returns the object attached at f, following aliases.
	Find(f fqn.Fqn) (any, bool)

	// Detach removes the object at f and f's subtree and returns the
	// object. A holder that other paths alias is moved to one of them.
	Detach(ctx context.Context, f fqn.Fqn) (any, error)

	// Evict drops f from memory the way the eviction timer would.
	Evict(ctx context.Context, f fqn.Fqn) error

	// LockNode holds f's node lock until the returned function is called.
	// Eviction of a locked node fails and is retried on later passes.
	LockNode(ctx context.Context, f fqn.Fqn) (unlock func(), err error)

	// Regions returns the region manager.
	Regions() *eviction.RegionManager

	// RunEviction runs one eviction pass over every region.
	RunEviction(ctx context.Context)

	// Begin returns a context carrying a new transaction. Object metadata
	// written under that context is undone by Txn.Rollback.
	Begin(ctx context.Context) (context.Context, *pojo.Txn)

	// Start runs the eviction timer in the background until Close.
	Start(ctx context.Context) error

	// Close stops the timer and marks the cache closed.
	Close() error
}
