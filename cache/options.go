package cache

import (
	"log/slog"
	"time"

	"github.com/IvanBrykalov/pojocache/eviction"
	"github.com/IvanBrykalov/pojocache/policy/lru"
)

// DefaultMaxNodes bounds the default region when no configuration is
// given.
const DefaultMaxNodes = 10_000

// Metrics exposes cache-level observability hooks on top of the per-region
// eviction hooks. A NoopMetrics implementation is provided and used by
// default.
type Metrics interface {
	eviction.Metrics
	Hit()
	Miss()
}

// Options configures the cache. Zero values are safe; defaults are applied
// in New():
//   - nil Regions and nil DefaultPolicy => one default LRU region
//   - WakeUpInterval <= 0  => document value, else eviction.DefaultWakeUpInterval
//   - EventQueueSize <= 0  => document value, else eviction.DefaultEventQueueCapacity
//   - nil Metrics          => NoopMetrics
//   - nil Logger           => discard
//   - nil Clock            => eviction.SystemClock
type Options struct {
	// Regions is a YAML region document, see package config. It must
	// define the default region.
	Regions []byte

	// DefaultPolicy configures the default region when Regions is nil.
	// nil => lru.Config{MaxNodes: DefaultMaxNodes}.
	DefaultPolicy eviction.Config

	// WakeUpInterval is the eviction timer period.
	WakeUpInterval time.Duration

	// EventQueueSize bounds the pending events of each region. Writers
	// block while their region's queue is full.
	EventQueueSize int

	// LockTimeout bounds how long an eviction waits for a node lock.
	LockTimeout time.Duration

	// LockStripes is the size of the object metadata lock table
	// (rounded up to a power of two; 0 = auto).
	LockStripes int

	// Observability
	Metrics Metrics
	Logger  *slog.Logger

	// Clock allows overriding the time source (tests).
	Clock eviction.Clock
}

func (o Options) defaultPolicy() eviction.Config {
	if o.DefaultPolicy != nil {
		return o.DefaultPolicy
	}
	return lru.Config{MaxNodes: DefaultMaxNodes}
}
