// Package tree is an in-memory hierarchical store: nodes addressed by
// fqn.Fqn, each holding a small key/value map. It is the node store the
// cache facade, the eviction regions and the object-graph layer run on.
//
// All methods are safe for concurrent use. Listener callbacks run after
// the store lock is released, in the order the mutations happened.
package tree

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/jmgilman/go/errors"

	"github.com/IvanBrykalov/pojocache/fqn"
	"github.com/IvanBrykalov/pojocache/internal/util"
)

// DefaultLockTimeout bounds how long Evict waits for a node lock.
const DefaultLockTimeout = 100 * time.Millisecond

// Listener observes node lifecycle changes.
type Listener interface {
	NodeCreated(f fqn.Fqn)
	// NodeModified reports a data change; delta is the change in the
	// node's element count (0 for an overwrite).
	NodeModified(f fqn.Fqn, delta int)
	NodeVisited(f fqn.Fqn)
	NodeRemoved(f fqn.Fqn)
	NodeEvicted(f fqn.Fqn)
}

// Options configures a Store. Zero values are safe:
//   - LockTimeout <= 0 => DefaultLockTimeout
//   - nil Logger       => discard
type Options struct {
	LockTimeout time.Duration
	Logger      *slog.Logger
}

// Stats are cumulative operation counters.
type Stats struct {
	Reads, Writes, Removes, Evictions uint64
}

// Store is the in-memory tree.
type Store struct {
	mu        sync.RWMutex
	root      *node
	nodes     int
	listeners []Listener

	timeout time.Duration
	log     *slog.Logger

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	reads     util.PaddedAtomicUint64
	writes    util.PaddedAtomicUint64
	removes   util.PaddedAtomicUint64
	evictions util.PaddedAtomicUint64
}

// New creates an empty store holding only the root node.
func New(opts Options) *Store {
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		root:    newNode(fqn.Root, nil),
		nodes:   1,
		timeout: opts.LockTimeout,
		log:     opts.Logger,
	}
}

// AddListener registers l for all subsequent changes.
func (s *Store) AddListener(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// notification is a deferred listener call.
type notification func(Listener)

// fire delivers ns to every listener. Must be called without s.mu held.
func (s *Store) fire(ns []notification) {
	if len(ns) == 0 {
		return
	}
	s.mu.RLock()
	ls := slices.Clone(s.listeners)
	s.mu.RUnlock()
	for _, l := range ls {
		for _, n := range ns {
			n(l)
		}
	}
}

func created(f fqn.Fqn) notification { return func(l Listener) { l.NodeCreated(f) } }
func visited(f fqn.Fqn) notification { return func(l Listener) { l.NodeVisited(f) } }
func removed(f fqn.Fqn) notification { return func(l Listener) { l.NodeRemoved(f) } }
func evicted(f fqn.Fqn) notification { return func(l Listener) { l.NodeEvicted(f) } }
func modified(f fqn.Fqn, delta int) notification {
	return func(l Listener) { l.NodeModified(f, delta) }
}

// findLocked walks from the root to f.
func (s *Store) findLocked(f fqn.Fqn) *node {
	n := s.root
	for i := 0; i < f.Len() && n != nil; i++ {
		n = n.child(f.Get(i))
	}
	return n
}

// ensureLocked returns the node at f, creating missing ancestors.
func (s *Store) ensureLocked(f fqn.Fqn, ns *[]notification) *node {
	n := s.root
	for i := 0; i < f.Len(); i++ {
		c := n.child(f.Get(i))
		if c == nil {
			c = newNode(f.Ancestor(i+1), n)
			n.addChild(c)
			s.nodes++
			*ns = append(*ns, created(c.fqn))
		}
		n = c
	}
	return n
}

// CreateNode makes sure f exists and reports whether it was created.
func (s *Store) CreateNode(f fqn.Fqn) bool {
	var ns []notification
	s.mu.Lock()
	s.ensureLocked(f, &ns)
	s.mu.Unlock()
	s.fire(ns)
	return len(ns) > 0
}

// Put stores key → v on f, creating f and its ancestors as needed. It
// returns the previous value, if any.
func (s *Store) Put(f fqn.Fqn, key string, v any) (any, bool) {
	var ns []notification
	s.mu.Lock()
	n := s.ensureLocked(f, &ns)
	if n.data == nil {
		n.data = make(map[string]any)
	}
	old, existed := n.data[key]
	n.data[key] = v
	delta := 1
	if existed {
		delta = 0
	}
	ns = append(ns, modified(f, delta))
	s.mu.Unlock()

	s.writes.Add(1)
	s.fire(ns)
	return old, existed
}

// PutAll merges data into f, creating f as needed.
func (s *Store) PutAll(f fqn.Fqn, data map[string]any) {
	var ns []notification
	s.mu.Lock()
	n := s.ensureLocked(f, &ns)
	if n.data == nil {
		n.data = make(map[string]any, len(data))
	}
	added := 0
	for k, v := range data {
		if _, ok := n.data[k]; !ok {
			added++
		}
		n.data[k] = v
	}
	ns = append(ns, modified(f, added))
	s.mu.Unlock()

	s.writes.Add(1)
	s.fire(ns)
}

// PutInternal stores key → v on f without notifying listeners. It is
// meant for bookkeeping that is not cache data, such as object metadata.
func (s *Store) PutInternal(f fqn.Fqn, key string, v any) (any, bool) {
	var discard []notification
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.ensureLocked(f, &discard)
	if n.data == nil {
		n.data = make(map[string]any)
	}
	old, existed := n.data[key]
	n.data[key] = v
	return old, existed
}

// RemoveKeyInternal is RemoveKey without notifying listeners.
func (s *Store) RemoveKeyInternal(f fqn.Fqn, key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.findLocked(f)
	if n == nil {
		return nil, false
	}
	v, ok := n.data[key]
	delete(n.data, key)
	return v, ok
}

// Snapshot is Data without the visit.
func (s *Store) Snapshot(f fqn.Fqn) (map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := s.findLocked(f)
	if n == nil {
		return nil, false
	}
	return n.snapshot(), true
}

// Get returns the value stored under key on f and counts a visit of f.
func (s *Store) Get(f fqn.Fqn, key string) (any, bool) {
	s.mu.RLock()
	n := s.findLocked(f)
	var (
		v  any
		ok bool
	)
	if n != nil {
		v, ok = n.data[key]
	}
	s.mu.RUnlock()

	s.reads.Add(1)
	if n != nil {
		s.fire([]notification{visited(f)})
	}
	return v, ok
}

// Visit counts a visit of f without reading it. It reports whether f
// exists.
func (s *Store) Visit(f fqn.Fqn) bool {
	s.mu.RLock()
	n := s.findLocked(f)
	s.mu.RUnlock()
	if n == nil {
		return false
	}
	s.reads.Add(1)
	s.fire([]notification{visited(f)})
	return true
}

// Peek is Get without the visit.
func (s *Store) Peek(f fqn.Fqn, key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := s.findLocked(f)
	if n == nil {
		return nil, false
	}
	v, ok := n.data[key]
	return v, ok
}

// Data returns a copy of f's data and counts a visit.
func (s *Store) Data(f fqn.Fqn) (map[string]any, bool) {
	s.mu.RLock()
	n := s.findLocked(f)
	var data map[string]any
	if n != nil {
		data = n.snapshot()
	}
	s.mu.RUnlock()

	s.reads.Add(1)
	if n == nil {
		return nil, false
	}
	s.fire([]notification{visited(f)})
	return data, true
}

// RemoveKey deletes key from f and returns the removed value.
func (s *Store) RemoveKey(f fqn.Fqn, key string) (any, bool) {
	s.mu.Lock()
	n := s.findLocked(f)
	if n == nil {
		s.mu.Unlock()
		return nil, false
	}
	v, ok := n.data[key]
	if ok {
		delete(n.data, key)
	}
	s.mu.Unlock()

	if ok {
		s.writes.Add(1)
		s.fire([]notification{modified(f, -1)})
	}
	return v, ok
}

// Remove deletes f and its whole subtree. Removing the root clears the
// tree but keeps the root node.
func (s *Store) Remove(f fqn.Fqn) bool {
	s.mu.Lock()
	n := s.findLocked(f)
	if n == nil {
		s.mu.Unlock()
		return false
	}
	var ns []notification
	for _, x := range n.postOrder(nil) {
		if x == s.root {
			x.data = nil
			continue
		}
		ns = append(ns, removed(x.fqn))
	}
	s.detachLocked(n)
	s.mu.Unlock()

	s.removes.Add(1)
	s.fire(ns)
	return true
}

// Image is a copy of a subtree taken by Capture. Values are shared, not
// deep-copied.
type Image struct {
	nodes []imageNode
}

type imageNode struct {
	fqn  fqn.Fqn
	data map[string]any
}

// Capture copies f's subtree, parents first. It returns nil if f does not
// exist.
func (s *Store) Capture(f fqn.Fqn) *Image {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := s.findLocked(f)
	if n == nil {
		return nil
	}
	nodes := n.preOrder(nil)
	img := &Image{nodes: make([]imageNode, len(nodes))}
	for i, x := range nodes {
		img.nodes[i] = imageNode{fqn: x.fqn, data: x.snapshot()}
	}
	return img
}

// Restore replaces f's subtree with img; a nil img removes f. Listeners see
// the current nodes removed and the image's nodes created, with every key
// of a restored node counted as an element.
func (s *Store) Restore(f fqn.Fqn, img *Image) {
	var ns []notification
	s.mu.Lock()
	if n := s.findLocked(f); n != nil {
		for _, x := range n.postOrder(nil) {
			if x != s.root {
				ns = append(ns, removed(x.fqn))
			}
		}
		if n == s.root {
			n.data = nil
		}
		s.detachLocked(n)
	}
	if img != nil {
		for _, in := range img.nodes {
			x := s.ensureLocked(in.fqn, &ns)
			x.data = nil
			if len(in.data) > 0 {
				x.data = maps.Clone(in.data)
				ns = append(ns, modified(in.fqn, len(in.data)))
			}
		}
	}
	s.mu.Unlock()

	s.writes.Add(1)
	s.fire(ns)
}

// detachLocked unlinks n's subtree from the tree.
func (s *Store) detachLocked(n *node) {
	if n == s.root {
		s.nodes = 1
		s.root.children = nil
		return
	}
	s.nodes -= len(n.postOrder(nil))
	delete(n.parent.children, n.fqn.LastElement())
}

// Exists reports whether f is a node of the tree.
func (s *Store) Exists(f fqn.Fqn) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findLocked(f) != nil
}

// ChildrenNames returns the names of f's children, sorted.
func (s *Store) ChildrenNames(f fqn.Fqn) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := s.findLocked(f)
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.children))
	for name := range n.children {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Subtree returns f and its descendants, parents before children.
func (s *Store) Subtree(f fqn.Fqn) []fqn.Fqn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := s.findLocked(f)
	if n == nil {
		return nil
	}
	nodes := n.preOrder(nil)
	out := make([]fqn.Fqn, len(nodes))
	for i, x := range nodes {
		out[i] = x.fqn
	}
	return out
}

// NumberOfNodes counts the nodes of the tree, root included.
func (s *Store) NumberOfNodes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodes
}

// Stats returns a snapshot of the operation counters.
func (s *Store) Stats() Stats {
	return Stats{
		Reads:     s.reads.Load(),
		Writes:    s.writes.Load(),
		Removes:   s.removes.Load(),
		Evictions: s.evictions.Load(),
	}
}

// LockNode acquires f's node lock, waiting until ctx is done. The returned
// function releases it. While held, Evict on f fails with a timeout.
func (s *Store) LockNode(ctx context.Context, f fqn.Fqn) (func(), error) {
	s.mu.RLock()
	n := s.findLocked(f)
	s.mu.RUnlock()
	if n == nil {
		return nil, errors.Newf(errors.CodeNotFound, "tree: node %s does not exist", f)
	}
	if err := n.lock.Acquire(ctx, 1); err != nil {
		return nil, errors.Wrapf(err, errors.CodeTimeout, "tree: lock %s", f)
	}
	return func() { n.lock.Release(1) }, nil
}

// Evict drops f from memory. A node with children only loses its data; a
// leaf is removed. The root and absent nodes are ignored. Evict fails with
// a retryable timeout if f's node lock cannot be acquired in time.
func (s *Store) Evict(ctx context.Context, f fqn.Fqn) error {
	if f.IsRoot() {
		return nil
	}
	s.mu.RLock()
	n := s.findLocked(f)
	s.mu.RUnlock()
	if n == nil {
		return nil
	}

	lctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := n.lock.Acquire(lctx, 1); err != nil {
		return errors.Wrapf(err, errors.CodeTimeout, "tree: evict %s: node lock not acquired within %s", f, s.timeout)
	}
	defer n.lock.Release(1)

	s.mu.Lock()
	if s.findLocked(f) != n {
		// Removed or replaced while waiting.
		s.mu.Unlock()
		return nil
	}
	if len(n.children) > 0 {
		n.data = nil
	} else {
		s.detachLocked(n)
	}
	s.mu.Unlock()

	s.evictions.Add(1)
	s.log.Debug("evicted node", "fqn", f.String())
	s.fire([]notification{evicted(f)})
	return nil
}
