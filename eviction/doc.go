// Package eviction implements region-based eviction for the cache tree.
//
// Design
//
//   - Regions: a Region binds a subtree root to a policy Config and owns a
//     bounded event queue. RegionManager resolves a path to the region with
//     the longest matching root, falling back to the "/_default_" region.
//     Region roots never nest.
//
//   - Events: mutations are reported as Events (add, remove, visit,
//     element add/remove, in-use mark/unmark). Producers block when the
//     queue is full; events are delayed, never dropped.
//
//   - Algorithms: Base is the shared skeleton. One pass drains the region's
//     events into the policy's Queue, retries evictions parked on the
//     recycle queue, then prunes from the front of the queue while the
//     policy's Strategy says so. Failed evictions are parked, not lost.
//
//   - Queues: LinkedList gives O(1) reorder for FIFO/MRU/LRU, SortedList
//     gives sorted order with deferred (tombstoned) removal for LFU and
//     ElementSize. Concrete policies live under the policy package.
//
//   - Driving: TimerTask runs each region on a fixed period. Passes over one
//     region never overlap; an algorithm error resets only that region.
//
// Thread-safety
//
// RegionManager, Region event injection and TimerTask are safe for
// concurrent use. Queues, entries and algorithms are owned by the pass that
// runs them and are not.
package eviction
