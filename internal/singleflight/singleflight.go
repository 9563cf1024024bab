// Package singleflight coalesces concurrent eviction passes over the same
// region so that a timer tick and an explicit flush never run the region's
// algorithm twice at once.
package singleflight

import (
	"context"
	"sync"
)

// Group runs fn at most once per key at a time. Callers arriving while a
// call for the key is in flight wait for, and share, its result.
//
// Concurrency notes:
//   - The first caller for a key becomes the leader and runs fn.
//   - Followers wait on c.done. Publishing err happens-before close(c.done).
//   - Cancelling ctx in a follower unblocks only that follower; the leader
//     keeps running fn with its own context.
type Group[K comparable] struct {
	mu sync.Mutex
	m  map[K]*call
}

type call struct {
	done chan struct{} // closed when err is published
	err  error
}

// Do runs fn once for key. Concurrent calls with the same key wait for the
// shared result. shared reports whether the result came from another
// caller's run of fn.
func (g *Group[K]) Do(ctx context.Context, key K, fn func() error) (shared bool, err error) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[K]*call)
	}
	if c, ok := g.m[key]; ok {
		done := c.done
		g.mu.Unlock()

		select {
		case <-done:
			return true, c.err
		case <-ctx.Done():
			return true, ctx.Err()
		}
	}

	c := &call{done: make(chan struct{})}
	g.m[key] = c
	g.mu.Unlock()

	c.err = fn()
	close(c.done)

	g.mu.Lock()
	delete(g.m, key)
	g.mu.Unlock()

	return false, c.err
}
