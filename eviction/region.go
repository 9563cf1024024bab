package eviction

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmgilman/go/errors"

	"github.com/IvanBrykalov/pojocache/fqn"
	"github.com/IvanBrykalov/pojocache/internal/util"
)

const (
	// DefaultEventQueueCapacity bounds the pending events of one region.
	DefaultEventQueueCapacity = 200_000

	// The fill level is sampled every highWaterCheckInterval puts.
	highWaterCheckInterval = 1000
	highWaterRatio         = 0.98
)

// Region binds a subtree to an eviction policy. Producers enqueue node
// events concurrently; one algorithm pass at a time consumes them.
type Region struct {
	fqn  fqn.Fqn
	cfg  Config
	algo Algorithm

	events chan Event
	puts   util.PaddedAtomicUint64
	// overHighWater is set while the last sample was above the mark, so
	// the warning is logged once per crossing.
	overHighWater atomic.Bool

	log *slog.Logger

	// mu serializes algorithm passes.
	mu sync.Mutex
}

func newRegion(f fqn.Fqn, cfg Config, d Deps, capacity int) *Region {
	if capacity <= 0 {
		capacity = DefaultEventQueueCapacity
	}
	return &Region{
		fqn:    f,
		cfg:    cfg,
		algo:   cfg.NewAlgorithm(d),
		events: make(chan Event, capacity),
		log:    d.Logger.With("region", f.String()),
	}
}

// Fqn returns the region root.
func (r *Region) Fqn() fqn.Fqn { return r.fqn }

// Config returns the policy configuration.
func (r *Region) Config() Config { return r.cfg }

// Algorithm returns the region's algorithm.
func (r *Region) Algorithm() Algorithm { return r.algo }

// PutNodeEvent enqueues ev, blocking while the queue is full. It only
// fails when ctx is done first; events are never dropped.
func (r *Region) PutNodeEvent(ctx context.Context, ev Event) error {
	select {
	case r.events <- ev:
	default:
		select {
		case r.events <- ev:
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), errors.CodeTimeout,
				"eviction: region %s event queue full", r.fqn)
		}
	}
	if r.puts.Add(1)%highWaterCheckInterval == 0 {
		r.checkHighWater()
	}
	return nil
}

func (r *Region) checkHighWater() {
	size, capacity := len(r.events), cap(r.events)
	if float64(size) < highWaterRatio*float64(capacity) {
		r.overHighWater.Store(false)
		return
	}
	if r.overHighWater.CompareAndSwap(false, true) {
		r.log.Warn("eviction event queue nearly full; increase the capacity or the wake-up frequency",
			"size", size, "capacity", capacity)
	}
}

// TakeLastEvent polls the next event without blocking.
func (r *Region) TakeLastEvent() (Event, bool) {
	select {
	case ev := <-r.events:
		return ev, true
	default:
		return Event{}, false
	}
}

// NodeEventQueueSize returns the number of pending events.
func (r *Region) NodeEventQueueSize() int { return len(r.events) }

// EventQueueCapacity returns the bound of the event queue.
func (r *Region) EventQueueCapacity() int { return cap(r.events) }

// MarkNodeCurrentlyInUse keeps f from being evicted until it is unmarked
// or timeout elapses (0 = no timeout).
func (r *Region) MarkNodeCurrentlyInUse(ctx context.Context, f fqn.Fqn, timeout time.Duration) error {
	return r.PutNodeEvent(ctx, Event{Fqn: f, Type: MarkInUseEvent, InUseTimeout: timeout})
}

// UnmarkNodeCurrentlyInUse clears an in-use mark on f.
func (r *Region) UnmarkNodeCurrentlyInUse(ctx context.Context, f fqn.Fqn) error {
	return r.PutNodeEvent(ctx, Event{Fqn: f, Type: UnmarkUseEvent})
}

// Process runs one algorithm pass. Passes on the same region never overlap.
func (r *Region) Process(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.algo.Process(ctx, r)
}

// ResetEvictionQueues discards pending events and the algorithm's queue.
func (r *Region) ResetEvictionQueues() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		if _, ok := r.TakeLastEvent(); !ok {
			break
		}
	}
	r.algo.ResetEvictionQueue()
}

func (r *Region) String() string {
	return r.fqn.String() + " (" + r.cfg.PolicyName() + ")"
}
