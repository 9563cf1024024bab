package cache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jmgilman/go/errors"

	"github.com/IvanBrykalov/pojocache/config"
	"github.com/IvanBrykalov/pojocache/eviction"
	"github.com/IvanBrykalov/pojocache/fqn"
	"github.com/IvanBrykalov/pojocache/internal/tree"
	"github.com/IvanBrykalov/pojocache/pojo"
)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New(errors.CodeUnavailable, "cache: closed")

// cache wires the node store, the eviction regions, the timer and the
// object graph together.
type cache struct {
	store   *tree.Store
	graph   *pojo.ObjectGraphHandler
	regions *eviction.RegionManager
	timer   *eviction.TimerTask
	metrics Metrics
	log     *slog.Logger
	closed  atomic.Bool

	mu   sync.Mutex // guards stop/done
	stop context.CancelFunc
	done chan struct{}
}

// New constructs a cache with the provided Options. It fails if the region
// document is invalid.
// Defaults:
//   - nil Metrics  -> NoopMetrics
//   - nil Logger   -> discard
//   - nil Regions  -> a default region with Options.DefaultPolicy
func New(opt Options) (Cache, error) {
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Logger == nil {
		opt.Logger = slog.New(slog.DiscardHandler)
	}

	var doc *config.Document
	if opt.Regions != nil {
		var err error
		if doc, err = config.Parse(opt.Regions); err != nil {
			return nil, err
		}
		if opt.WakeUpInterval <= 0 {
			opt.WakeUpInterval = doc.WakeUpInterval()
		}
		if opt.EventQueueSize <= 0 {
			opt.EventQueueSize = doc.EventQueueSize
		}
	}

	store := tree.New(tree.Options{LockTimeout: opt.LockTimeout, Logger: opt.Logger})
	d := pojo.NewDelegate(store, pojo.NewLocks(opt.LockStripes), opt.Logger)
	graph := pojo.NewObjectGraphHandler(store, d, nil, opt.Logger)

	regions := eviction.NewRegionManager(eviction.Deps{
		Evictor: eviction.EvictorFunc(graph.Evict),
		Clock:   opt.Clock,
		Logger:  opt.Logger,
		Metrics: opt.Metrics,
	}, opt.EventQueueSize)
	if doc != nil {
		if err := doc.Apply(regions); err != nil {
			return nil, err
		}
	} else if _, err := regions.CreateRegion(eviction.DefaultRegion, opt.defaultPolicy()); err != nil {
		return nil, err
	}
	store.AddListener(eviction.NewListener(regions, pojo.InternalFqn))

	return &cache{
		store:   store,
		graph:   graph,
		regions: regions,
		timer:   eviction.NewTimerTask(regions, opt.WakeUpInterval),
		metrics: opt.Metrics,
		log:     opt.Logger,
	}, nil
}

// ---- Cache implementation ----

func userPath(f fqn.Fqn) error {
	if f.IsChildOrEquals(pojo.InternalFqn) {
		return errors.Newf(errors.CodeInvalidInput, "cache: %s is reserved", f)
	}
	return nil
}

// Put stores key→v on f. Keys of the object-graph layer are rejected.
func (c *cache) Put(f fqn.Fqn, key string, v any) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if err := userPath(f); err != nil {
		return err
	}
	if pojo.IsReservedKey(key) {
		return errors.Newf(errors.CodeInvalidInput, "cache: key %q is reserved", key)
	}
	c.store.Put(f, key, v)
	return nil
}

// Get returns the value of key on f and a presence flag.
func (c *cache) Get(f fqn.Fqn, key string) (any, bool) {
	if c.closed.Load() || userPath(f) != nil {
		return nil, false
	}
	v, ok := c.store.Get(f, key)
	c.hitOrMiss(ok)
	return v, ok
}

// RemoveKey deletes key from f.
func (c *cache) RemoveKey(f fqn.Fqn, key string) (any, bool) {
	if c.closed.Load() || userPath(f) != nil || pojo.IsReservedKey(key) {
		return nil, false
	}
	return c.store.RemoveKey(f, key)
}

// Remove deletes f's subtree and reports whether f existed.
func (c *cache) Remove(ctx context.Context, f fqn.Fqn) (bool, error) {
	if c.closed.Load() {
		return false, ErrClosed
	}
	if err := userPath(f); err != nil {
		return false, err
	}
	_, ok, err := c.graph.Remove(ctx, f, false)
	return ok, err
}

// Exists reports whether f is a node of the cache.
func (c *cache) Exists(f fqn.Fqn) bool {
	return userPath(f) == nil && c.store.Exists(f)
}

// Len returns the number of data nodes.
func (c *cache) Len() int {
	return c.store.NumberOfNodes() - 1 - len(c.store.Subtree(pojo.InternalFqn))
}

// Attach stores object v at f.
func (c *cache) Attach(ctx context.Context, f fqn.Fqn, v any) (bool, error) {
	if c.closed.Load() {
		return false, ErrClosed
	}
	return c.graph.Put(ctx, f, v)
}

// Find returns the object attached at f.
func (c *cache) Find(f fqn.Fqn) (any, bool) {
	if c.closed.Load() {
		return nil, false
	}
	v, ok := c.graph.Get(f)
	c.hitOrMiss(ok)
	return v, ok
}

// Detach removes the object at f. Detaching a node without an object
// removes the node and returns nil.
func (c *cache) Detach(ctx context.Context, f fqn.Fqn) (any, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if err := userPath(f); err != nil {
		return nil, err
	}
	v, ok, err := c.graph.Remove(ctx, f, false)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Newf(errors.CodeNotFound, "cache: node %s does not exist", f)
	}
	return v, nil
}

// Evict drops f from memory. Aliased objects are kept. The eviction is
// reported to f's region so that its queue forgets the node.
func (c *cache) Evict(ctx context.Context, f fqn.Fqn) error {
	if err := userPath(f); err != nil {
		return err
	}
	evicted, err := c.graph.TryEvict(ctx, f)
	if err != nil || !evicted {
		return err
	}
	return c.regions.NodeRemoved(ctx, f)
}

// LockNode holds f's node lock.
func (c *cache) LockNode(ctx context.Context, f fqn.Fqn) (func(), error) {
	if err := userPath(f); err != nil {
		return nil, err
	}
	return c.store.LockNode(ctx, f)
}

// Regions returns the region manager.
func (c *cache) Regions() *eviction.RegionManager { return c.regions }

// RunEviction runs one eviction pass over every region.
func (c *cache) RunEviction(ctx context.Context) { c.timer.ProcessRegions(ctx) }

// Begin returns a context carrying a new transaction.
func (c *cache) Begin(ctx context.Context) (context.Context, *pojo.Txn) {
	t := pojo.NewTxn(c.store)
	return pojo.WithTxn(ctx, t), t
}

// Start runs the eviction timer until ctx is done or Close is called.
func (c *cache) Start(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		return errors.New(errors.CodeConflict, "cache: eviction timer already started")
	}

	ctx, c.stop = context.WithCancel(ctx)
	done := make(chan struct{})
	c.done = done
	go func() {
		defer close(done)
		_ = c.timer.Run(ctx)
	}()
	c.log.Debug("eviction timer started", "interval", c.timer.Interval())
	return nil
}

// Close stops the eviction timer, waits for a running pass to finish and
// marks the cache as closed. Future writes fail with ErrClosed.
func (c *cache) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.mu.Unlock()
	if stop != nil {
		stop()
		<-done
	}
	return nil
}

// ---- helpers ----

func (c *cache) hitOrMiss(ok bool) {
	if ok {
		c.metrics.Hit()
	} else {
		c.metrics.Miss()
	}
}
