package cache

import (
	"context"
	"math/rand"
	"runtime"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/pojocache/eviction/evictiontest"
	"github.com/IvanBrykalov/pojocache/fqn"
)

// A mixed workload of concurrent data writes, object attaches and detaches
// while eviction passes run. Should pass under `-race` without detector
// reports, panics or deadlocks.
func TestRace_Mixed(t *testing.T) {
	c := newCache(t, Options{
		Clock: evictiontest.NewClock(time.Unix(1_000, 0)),
		Regions: []byte(`
regions:
  - name: /_default_
    policy: lru
    maxNodes: 64
    timeToLiveSeconds: 60
  - name: /objects
    policy: fifo
    maxNodes: 16
`),
	})

	objs := make([]*account, 8)
	for i := range objs {
		objs[i] = &account{ID: i}
	}

	const opsPerWorker = 500
	workers := 2 * runtime.GOMAXPROCS(0)
	ctx := context.Background()
	var stop atomic.Bool

	var evictor errgroup.Group
	evictor.Go(func() error {
		for !stop.Load() {
			c.RunEviction(ctx)
			runtime.Gosched()
		}
		return nil
	})

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			r := rand.New(rand.NewSource(int64(w) * 9973))
			for i := 0; i < opsPerWorker; i++ {
				data := fqn.New("data", strconv.Itoa(r.Intn(128)))
				obj := fqn.New("objects", strconv.Itoa(r.Intn(32)))
				switch r.Intn(100) {
				case 0, 1, 2, 3, 4: // ~5% Remove
					if _, err := c.Remove(ctx, data); err != nil {
						return err
					}
				case 5, 6, 7, 8, 9, 10, 11, 12, 13, 14: // ~10% Attach
					if _, err := c.Attach(ctx, obj, objs[r.Intn(len(objs))]); err != nil {
						return err
					}
				case 15, 16, 17, 18, 19: // ~5% Detach
					_, _ = c.Detach(ctx, obj)
				case 20, 21, 22, 23, 24, 25, 26, 27, 28, 29: // ~10% Put
					if err := c.Put(data, "k", i); err != nil {
						return err
					}
				case 30, 31, 32, 33, 34, 35, 36, 37, 38, 39: // ~10% Find
					c.Find(obj)
				default: // ~60% Get
					c.Get(data, "k")
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	stop.Store(true)
	_ = evictor.Wait()

	// Every alias left must still resolve.
	for i := 0; i < 32; i++ {
		f := fqn.New("objects", strconv.Itoa(i))
		if c.graph.Delegate().RefFqn(f) == "" {
			continue
		}
		if _, ok := c.Find(f); !ok {
			t.Fatalf("alias %s does not resolve", f)
		}
	}
}
