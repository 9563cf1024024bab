package eviction

import (
	"context"
	"log/slog"
	"time"

	"github.com/IvanBrykalov/pojocache/internal/singleflight"
)

// DefaultWakeUpInterval is the period between eviction passes.
const DefaultWakeUpInterval = 5 * time.Second

// TimerTask periodically runs every region's algorithm.
type TimerTask struct {
	regions  *RegionManager
	interval time.Duration
	clock    Clock
	log      *slog.Logger
	metrics  Metrics

	// flights coalesces concurrent passes over the same region.
	flights singleflight.Group[string]
}

// NewTimerTask creates a task over the manager's regions. A non-positive
// interval selects DefaultWakeUpInterval.
func NewTimerTask(m *RegionManager, interval time.Duration) *TimerTask {
	if interval <= 0 {
		interval = DefaultWakeUpInterval
	}
	return &TimerTask{
		regions:  m,
		interval: interval,
		clock:    m.deps.Clock,
		log:      m.deps.Logger,
		metrics:  m.deps.Metrics,
	}
}

// Interval returns the wake-up period.
func (t *TimerTask) Interval() time.Duration { return t.interval }

// Run processes all regions every interval until ctx is done.
func (t *TimerTask) Run(ctx context.Context) error {
	ticker, tick := t.clock.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			t.ProcessRegions(ctx)
		}
	}
}

// ProcessRegions runs one pass over every region. A failing region is
// reset and does not stop the others.
func (t *TimerTask) ProcessRegions(ctx context.Context) {
	for _, r := range t.regions.Regions() {
		if ctx.Err() != nil {
			return
		}
		_ = t.ProcessRegion(ctx, r)
	}
}

// ProcessRegion runs one pass over r, or joins the pass already running.
// When the algorithm fails, the error is logged and r's queues are reset.
func (t *TimerTask) ProcessRegion(ctx context.Context, r *Region) error {
	shared, err := t.flights.Do(ctx, r.Fqn().String(), func() error {
		return r.Process(ctx)
	})
	if err == nil || shared || ctx.Err() != nil {
		return err
	}
	t.log.Error("eviction pass failed, resetting region queues",
		"region", r.Fqn().String(), "policy", r.Config().PolicyName(), "error", err)
	r.ResetEvictionQueues()
	t.metrics.RegionReset(r.Fqn().String())
	return err
}
