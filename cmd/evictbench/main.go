// Command evictbench runs a synthetic workload against region-based eviction
// and exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IvanBrykalov/pojocache/cache"
	"github.com/IvanBrykalov/pojocache/fqn"
	pmet "github.com/IvanBrykalov/pojocache/metrics/prom"
	"github.com/IvanBrykalov/pojocache/policy"
)

type payload struct{ ID uint64 }

func main() {
	// ---- Flags ----
	var (
		regionsFile = flag.String("regions", "", "YAML region document; empty = one default region from -policy")
		policyName  = flag.String("policy", "lru", "default region policy: fifo | lru | lfu | mru | elementsize")
		maxNodes    = flag.Int("max_nodes", 100_000, "default region maxNodes")
		ttl         = flag.Duration("ttl", time.Minute, "default region timeToLive (lru)")
		wakeUp      = flag.Duration("wakeup", time.Second, "eviction timer period")
		queueSize   = flag.Int("queue", 0, "event queue capacity per region (0 = default)")

		workers   = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration  = flag.Duration("duration", 10*time.Second, "benchmark duration")
		readPct   = flag.Int("reads", 80, "read percentage [0..100]")
		attachPct = flag.Int("attach", 5, "share of writes that attach a shared object [0..100]")

		keys  = flag.Int("keys", 1_000_000, "keyspace size")
		zipfS = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed  = flag.Int64("seed", time.Now().UnixNano(), "random seed")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			log.Printf("pprof: serving at %s", *pprofAddr)
			log.Println(http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	// ---- Prometheus metrics (on DefaultServeMux) ----
	metrics := pmet.New(nil, "pojocache", "bench", nil)
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Printf("metrics: serving at %s", *metricsAddr)
		log.Println(http.ListenAndServe(*metricsAddr, nil))
	}()

	// ---- Build cache ----
	opt := cache.Options{
		WakeUpInterval: *wakeUp,
		EventQueueSize: *queueSize,
		Metrics:        metrics,
		Logger:         logger,
	}
	if *regionsFile != "" {
		data, err := os.ReadFile(*regionsFile)
		if err != nil {
			log.Fatalf("read regions: %v", err)
		}
		opt.Regions = data
	} else {
		cfg, err := policy.New(*policyName, policy.Params{
			MaxNodes:           maxNodes,
			MaxElementsPerNode: ptr(8),
			TimeToLive:         ttl,
		})
		if err != nil {
			log.Fatalf("policy: %v", err)
		}
		opt.DefaultPolicy = cfg
	}
	c, err := cache.New(opt)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()
	if err := c.Start(ctx); err != nil {
		log.Fatalf("start: %v", err)
	}

	// ---- Snapshot flags for goroutines ----
	readPctVal := *readPct
	attachPctVal := *attachPct
	keysMax := uint64(*keys - 1)
	seedBase := *seed
	zipfSVal := *zipfS
	zipfVVal := *zipfV
	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}

	// A small pool of objects attached at many paths.
	shared := make([]*payload, 64)
	for i := range shared {
		shared[i] = &payload{ID: uint64(i)}
	}

	// ---- Load generation ----
	var reads, writes, attaches, hits, misses, total uint64

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := 0; w < workersN; w++ {
		go func(id int) {
			defer wg.Done()

			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			localR := rand.New(rand.NewSource(seedBase + int64(id)*9973))
			localZipf := rand.NewZipf(localR, zipfSVal, zipfVVal, keysMax)

			pathByZipf := func(prefix string) fqn.Fqn {
				k := localZipf.Uint64()
				return fqn.New(prefix, strconv.FormatUint(k%256, 10), strconv.FormatUint(k, 10))
			}

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				atomic.AddUint64(&total, 1)
				if int(localR.Int31n(100)) < readPctVal {
					atomic.AddUint64(&reads, 1)
					if _, ok := c.Get(pathByZipf("data"), "v"); ok {
						atomic.AddUint64(&hits, 1)
					} else {
						atomic.AddUint64(&misses, 1)
					}
					continue
				}
				if int(localR.Int31n(100)) < attachPctVal {
					atomic.AddUint64(&attaches, 1)
					if _, err := c.Attach(ctx, pathByZipf("objects"), shared[localR.Intn(len(shared))]); err != nil && ctx.Err() == nil {
						logger.Warn("attach failed", "error", err)
					}
					continue
				}
				atomic.AddUint64(&writes, 1)
				_ = c.Put(pathByZipf("data"), "v", localR.Int())
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)
	_ = c.Close() // wait for a running eviction pass

	// ---- Report ----
	ops := atomic.LoadUint64(&total)
	readsN := atomic.LoadUint64(&reads)
	hitsN := atomic.LoadUint64(&hits)

	hitRate := 0.0
	if readsN > 0 {
		hitRate = float64(hitsN) / float64(readsN) * 100
	}

	fmt.Printf("policy=%s max_nodes=%d workers=%d keys=%d dur=%v seed=%d\n",
		*policyName, *maxNodes, workersN, *keys, elapsed, seedBase)
	fmt.Printf("ops=%d (%.0f ops/s)  reads=%d  writes=%d  attaches=%d\n",
		ops, float64(ops)/elapsed.Seconds(), readsN, atomic.LoadUint64(&writes), atomic.LoadUint64(&attaches))
	fmt.Printf("hits=%d  misses=%d  hit-rate=%.2f%%\n", hitsN, atomic.LoadUint64(&misses), hitRate)
	fmt.Printf("Len()=%d\n", c.Len())
	for _, r := range c.Regions().Regions() {
		q := r.Algorithm().EvictionQueue()
		fmt.Printf("region %s (%s): nodes=%d pending_events=%d\n",
			r.Fqn(), r.Config().PolicyName(), q.NumberOfNodes(), r.NodeEventQueueSize())
	}
}

func ptr[T any](v T) *T { return &v }
