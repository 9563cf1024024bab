package eviction

import (
	"context"
	"log/slog"
	"time"

	"github.com/IvanBrykalov/pojocache/fqn"
)

// Config is the policy-specific configuration of one region. Each policy
// package provides an implementation that also builds the region's
// algorithm.
type Config interface {
	// PolicyName identifies the policy, e.g. "lru".
	PolicyName() string
	// Validate rejects missing or inconsistent parameters.
	Validate() error
	// NewAlgorithm creates a fresh algorithm instance for one region.
	NewAlgorithm(d Deps) Algorithm
}

// Evictor physically evicts a node. Implementations may fail, e.g. with a
// lock timeout; the algorithm retries failed paths on later passes.
type Evictor interface {
	Evict(ctx context.Context, f fqn.Fqn) error
}

// EvictorFunc adapts a function to Evictor.
type EvictorFunc func(ctx context.Context, f fqn.Fqn) error

func (fn EvictorFunc) Evict(ctx context.Context, f fqn.Fqn) error { return fn(ctx, f) }

// Clock provides time in UnixNano and the wake-up ticker; useful for
// deterministic tests.
type Clock interface {
	NowUnixNano() int64
	// NewTicker returns a ticker and the channel it publishes on, like
	// time.NewTicker.
	NewTicker(d time.Duration) (Ticker, <-chan time.Time)
}

// Ticker is the part of time.Ticker the timer task uses.
type Ticker interface {
	Stop()
}

// SystemClock reads time.Now.
type SystemClock struct{}

func (SystemClock) NowUnixNano() int64 { return time.Now().UnixNano() }

func (SystemClock) NewTicker(d time.Duration) (Ticker, <-chan time.Time) {
	t := time.NewTicker(d)
	return t, t.C
}

// Deps are the collaborators shared by regions and algorithms.
// Zero values are safe except Evictor; defaults are applied by
// NewRegionManager:
//   - nil Clock   => SystemClock
//   - nil Logger  => discard
//   - nil Metrics => NoopMetrics
type Deps struct {
	Evictor Evictor
	Clock   Clock
	Logger  *slog.Logger
	Metrics Metrics
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = SystemClock{}
	}
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}
	if d.Metrics == nil {
		d.Metrics = NoopMetrics{}
	}
	return d
}
