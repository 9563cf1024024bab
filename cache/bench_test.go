package cache

import (
	"context"
	"math/rand"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/IvanBrykalov/pojocache/fqn"
	"github.com/IvanBrykalov/pojocache/policy/lru"
)

// benchmarkMix exercises a read/write mix against a warm cache.
// It uses parallel workers (RunParallel spawns GOMAXPROCS goroutines).
// Paths are built up front so the loop measures the store, the listener
// and the region queues rather than string formatting.
func benchmarkMix(b *testing.B, readsPct int) {
	const keys = 1 << 14 // power of two for fast &-mask
	c := newCache(b, Options{
		DefaultPolicy:  lru.Config{MaxNodes: keys / 2},
		EventQueueSize: 1 << 20,
	})
	paths := make([]fqn.Fqn, keys)
	for i := range paths {
		paths[i] = fqn.New("bench", strconv.Itoa(i))
	}
	for _, f := range paths[:keys/2] {
		_ = c.Put(f, "k", "v")
	}
	ctx := context.Background()
	c.RunEviction(ctx)

	b.ReportAllocs()
	b.ResetTimer()

	var seed int64 = 1
	var ops atomic.Int64
	b.RunParallel(func(pb *testing.PB) {
		// Independent RNG stream for each worker.
		r := rand.New(rand.NewSource(atomic.AddInt64(&seed, 1)))
		i := 0
		for pb.Next() {
			f := paths[i&(keys-1)]
			if r.Intn(100) < readsPct {
				c.Get(f, "k")
			} else {
				_ = c.Put(f, "k", "v")
			}
			// Drain the region queues now and then so writers never block.
			if ops.Add(1)%50_000 == 0 {
				c.RunEviction(ctx)
			}
			i++
		}
	})
}

func BenchmarkCache_90r10w(b *testing.B) { benchmarkMix(b, 90) }
func BenchmarkCache_50r50w(b *testing.B) { benchmarkMix(b, 50) }

// BenchmarkCache_AttachShared measures aliasing one object at many paths.
func BenchmarkCache_AttachShared(b *testing.B) {
	c := newCache(b, Options{EventQueueSize: 1 << 20})
	ctx := context.Background()
	obj := &account{ID: 1}
	_, _ = c.Attach(ctx, fqn.New("holder"), obj)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f := fqn.New("alias", strconv.Itoa(i&1023))
		if _, err := c.Attach(ctx, f, obj); err != nil {
			b.Fatal(err)
		}
		if i%50_000 == 0 {
			c.RunEviction(ctx)
		}
	}
}
