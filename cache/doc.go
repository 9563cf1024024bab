// Package cache provides a tree-structured in-memory cache: nodes are
// addressed by fqn.Fqn and hold small key/value maps or attached objects.
// Nodes are evicted per region by pluggable policies, and objects stored
// at several paths share one copy.
//
// Design
//
//   - Storage: an in-memory tree (internal/tree). Every node has a lock
//     that eviction must acquire; LockNode holds it to keep a node in
//     memory while it is being worked on.
//
//   - Regions: a region binds a subtree to an eviction policy (FIFO, LRU,
//     LFU, MRU or ElementSize, see package policy). Node lifecycle changes
//     become events on the governing region's bounded queue; writers block
//     while that queue is full. Paths outside every configured region fall
//     back to the default region /_default_, which must exist.
//
//   - Timer: Start runs a pass over every region each WakeUpInterval. A
//     pass drains the region's events into its queue and evicts what the
//     policy selects. Nodes that cannot be evicted (locked, or the object
//     graph is busy) are retried on later passes.
//
//   - Objects: Attach stores an object at a path. Attaching an object that
//     is already attached elsewhere turns the second path into an alias;
//     Find on the alias returns the same object. Detaching the holder moves
//     the object to one of its aliases. Aliased objects are never evicted.
//
//   - Metrics: Options.Metrics receives per-region eviction signals and
//     Hit/Miss for reads. NoopMetrics is used by default; metrics/prom
//     exports them to Prometheus.
//
// Basic usage
//
//	c, err := cache.New(cache.Options{})
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//	_ = c.Put(fqn.Parse("/users/42"), "name", "joe")
//	v, ok := c.Get(fqn.Parse("/users/42"), "name")
//
// With regions
//
//	c, err := cache.New(cache.Options{Regions: []byte(`
//	regions:
//	  - name: /_default_
//	    policy: lru
//	    maxNodes: 5000
//	    timeToLiveSeconds: 1000
//	  - name: /sessions
//	    policy: fifo
//	    maxNodes: 100
//	`)})
//	_ = c.Start(ctx)
//
// Shared objects
//
//	addr := &Address{City: "Oslo"}
//	_, _ = c.Attach(ctx, fqn.Parse("/people/joe/addr"), addr)
//	shared, _ := c.Attach(ctx, fqn.Parse("/people/ann/addr"), addr) // shared == true
//	_, _ = c.Detach(ctx, fqn.Parse("/people/joe"))                   // addr moves to ann
//
// See package config for the region document format.
package cache
