package eviction

import (
	"context"
	"log/slog"
	"time"

	"github.com/IvanBrykalov/pojocache/fqn"
)

// Algorithm drains a region's events into its queue and evicts what the
// policy says should go. One instance serves exactly one region and is
// driven by one goroutine at a time.
type Algorithm interface {
	// Process runs one pass: drain events, retry parked evictions, prune.
	Process(ctx context.Context, src EventSource) error
	// ResetEvictionQueue forgets all tracked entries.
	ResetEvictionQueue()
	EvictionQueue() Queue
}

// EventSource is the consumer side of a region's event queue.
type EventSource interface {
	Fqn() fqn.Fqn
	// TakeLastEvent polls the next event without blocking.
	TakeLastEvent() (Event, bool)
}

// Strategy is the policy-specific part of an algorithm.
type Strategy interface {
	// ShouldEvictNode reports whether e is to be evicted now. It must not
	// fail and must not mutate the queue.
	ShouldEvictNode(e *NodeEntry) bool
}

// Pruner is implemented by strategies that replace the default prune
// phase, e.g. to run several passes over differently ordered views.
type Pruner interface {
	PruneEvictionQueue(ctx context.Context, b *Base) error
}

// Base is the shared algorithm skeleton. Policies supply a queue and a
// Strategy; Base does event dispatch, the recycle queue and pruning.
type Base struct {
	queue    Queue
	strategy Strategy
	recycle  *recycleQueue

	evictor Evictor
	clock   Clock
	log     *slog.Logger
	metrics Metrics

	region string
	// changed is set when an event touched order-relevant state since the
	// last resort.
	changed bool
}

var _ Algorithm = (*Base)(nil)

// NewBase builds an algorithm over q driven by s.
func NewBase(q Queue, s Strategy, d Deps) *Base {
	d = d.withDefaults()
	return &Base{
		queue:    q,
		strategy: s,
		recycle:  newRecycleQueue(DefaultRecycleQueueCapacity),
		evictor:  d.Evictor,
		clock:    d.Clock,
		log:      d.Logger,
		metrics:  d.Metrics,
	}
}

// EvictionQueue returns the queue the algorithm maintains.
func (b *Base) EvictionQueue() Queue { return b.queue }

// RecycleQueueSize returns the number of paths waiting for a retry.
func (b *Base) RecycleQueueSize() int { return b.recycle.Len() }

// Now returns the algorithm clock in UnixNano.
func (b *Base) Now() int64 { return b.clock.NowUnixNano() }

// ResetEvictionQueue clears the queue. Parked retries are kept.
func (b *Base) ResetEvictionQueue() {
	b.queue.Clear()
	b.changed = false
}

// Process implements Algorithm.
func (b *Base) Process(ctx context.Context, src EventSource) error {
	b.region = src.Fqn().String()
	if err := b.processQueues(src); err != nil {
		return err
	}
	b.emptyRecycleQueue(ctx)
	var err error
	if p, ok := b.strategy.(Pruner); ok {
		err = p.PruneEvictionQueue(ctx, b)
	} else {
		err = b.prune(ctx)
	}
	b.metrics.QueueSize(b.region, b.queue.NumberOfNodes(), b.queue.NumberOfElements())
	return err
}

func (b *Base) processQueues(src EventSource) error {
	n := 0
	for {
		ev, ok := src.TakeLastEvent()
		if !ok {
			break
		}
		n++
		if err := b.dispatch(ev); err != nil {
			return err
		}
	}
	b.metrics.EventsProcessed(b.region, n)

	if sq, ok := b.queue.(SortedQueue); ok && b.changed {
		start := time.Now()
		sq.ResortEvictionQueue()
		d := time.Since(start)
		b.metrics.Resorted(b.region, d)
		b.log.Debug("resorted eviction queue",
			"region", b.region, "nodes", sq.NumberOfNodes(), "duration", d)
	}
	b.changed = false
	return nil
}

func (b *Base) dispatch(ev Event) error {
	switch ev.Type {
	case AddNodeEvent:
		b.processAddedNode(ev.Fqn, ev.ElementDelta, ev.ResetElementCount)
	case RemoveNodeEvent:
		b.processRemovedNode(ev.Fqn)
	case VisitNodeEvent:
		b.processVisitedNode(ev.Fqn)
	case AddElementEvent:
		b.processAddedElement(ev.Fqn, delta(ev))
	case RemoveElementEvent:
		b.processRemovedElement(ev.Fqn, delta(ev))
	case MarkInUseEvent:
		b.processMarkInUse(ev.Fqn, ev.InUseTimeout)
	case UnmarkUseEvent:
		b.processUnmarkInUse(ev.Fqn)
	default:
		return illegalEvent(ev)
	}
	return nil
}

func delta(ev Event) int {
	if ev.ElementDelta <= 0 {
		return 1
	}
	return ev.ElementDelta
}

func (b *Base) processAddedNode(f fqn.Fqn, elements int, reset bool) {
	now := b.Now()
	// A repeated add of a tracked path counts as a visit.
	if e := b.queue.NodeEntry(f); e != nil {
		if reset {
			e.SetNumberOfElements(elements)
		} else if elements != 0 {
			e.SetNumberOfElements(e.NumberOfElements() + elements)
		}
		b.touch(e, now)
		return
	}

	e := NewNodeEntry(f)
	e.SetCreationTimeStamp(now)
	e.SetModifiedTimeStamp(now)
	e.SetNumberOfNodeVisits(1)
	e.SetNumberOfElements(elements)
	b.queue.AddNodeEntry(e)
	b.changed = true
}

func (b *Base) processRemovedNode(f fqn.Fqn) {
	e := b.queue.NodeEntry(f)
	if e == nil {
		b.log.Debug("removed node not in eviction queue", "region", b.region, "fqn", f.String())
		return
	}
	b.queue.RemoveNodeEntry(e)
}

func (b *Base) processVisitedNode(f fqn.Fqn) {
	e := b.queue.NodeEntry(f)
	if e == nil {
		b.log.Debug("visited node not in eviction queue, adding", "region", b.region, "fqn", f.String())
		b.processAddedNode(f, 1, false)
		return
	}
	b.touch(e, b.Now())
}

func (b *Base) processAddedElement(f fqn.Fqn, n int) {
	e := b.queue.NodeEntry(f)
	if e == nil {
		b.processAddedNode(f, n, false)
		return
	}
	e.SetNumberOfElements(e.NumberOfElements() + n)
	b.touch(e, b.Now())
}

func (b *Base) processRemovedElement(f fqn.Fqn, n int) {
	e := b.queue.NodeEntry(f)
	if e == nil {
		b.log.Warn("element removed from node not in eviction queue", "region", b.region, "fqn", f.String())
		return
	}
	e.SetNumberOfElements(max(e.NumberOfElements()-n, 0))
	b.touch(e, b.Now())
}

func (b *Base) processMarkInUse(f fqn.Fqn, timeout time.Duration) {
	e := b.queue.NodeEntry(f)
	if e == nil {
		return
	}
	var deadline int64
	if timeout > 0 {
		deadline = b.Now() + int64(timeout)
	}
	e.SetCurrentlyInUse(true, deadline)
}

func (b *Base) processUnmarkInUse(f fqn.Fqn) {
	if e := b.queue.NodeEntry(f); e != nil {
		e.SetCurrentlyInUse(false, 0)
	}
}

// touch counts a visit to e.
func (b *Base) touch(e *NodeEntry, now int64) {
	e.SetNumberOfNodeVisits(e.NumberOfNodeVisits() + 1)
	e.SetModifiedTimeStamp(now)
	if r, ok := b.queue.(Reorderer); ok {
		r.Visit(e)
	}
	b.changed = true
}

// emptyRecycleQueue retries parked paths in FIFO order and stops at the
// first one that still fails.
func (b *Base) emptyRecycleQueue(ctx context.Context) {
	for {
		f, ok := b.recycle.peek()
		if !ok {
			return
		}
		if err := b.evictor.Evict(ctx, f); err != nil {
			b.log.Debug("recycled eviction failed again", "region", b.region, "fqn", f.String(), "error", err)
			return
		}
		b.recycle.pop()
		if e := b.queue.NodeEntry(f); e != nil {
			b.queue.RemoveNodeEntry(e)
		}
		b.metrics.Evicted(b.region)
	}
}

// prune walks candidates in eviction order and stops at the first one the
// strategy keeps.
func (b *Base) prune(ctx context.Context) error {
	now := b.Now()
	for e := range b.queue.Entries() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if b.SkipInUse(e, now) {
			continue
		}
		if !b.strategy.ShouldEvictNode(e) {
			return nil
		}
		if !b.EvictNode(ctx, e) {
			return nil
		}
	}
	return nil
}

// SkipInUse reports whether e is in use at now and must be skipped. An
// expired in-use mark is cleared as a side effect.
func (b *Base) SkipInUse(e *NodeEntry, now int64) bool {
	if !e.inUse {
		return false
	}
	if e.IsCurrentlyInUse(now) {
		return true
	}
	e.SetCurrentlyInUse(false, 0)
	return false
}

// EvictNode removes e from the queue and evicts it. A failed eviction
// parks the path on the recycle queue. EvictNode reports false when the
// recycle queue is full; e is then put back and the pass should stop.
func (b *Base) EvictNode(ctx context.Context, e *NodeEntry) bool {
	b.queue.RemoveNodeEntry(e)
	err := b.evictor.Evict(ctx, e.Fqn())
	if err == nil {
		b.metrics.Evicted(b.region)
		return true
	}

	b.metrics.EvictionFailed(b.region)
	b.log.Warn("eviction failed, will retry",
		"region", b.region, "fqn", e.Key(), "error", err)
	if b.recycle.push(e.Fqn()) {
		return true
	}
	b.log.Warn("recycle queue full, keeping node in eviction queue",
		"region", b.region, "fqn", e.Key(), "capacity", b.recycle.capacity)
	b.queue.AddNodeEntry(e)
	return false
}
