// Package prom exports cache and eviction metrics to Prometheus.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/pojocache/cache"
)

// Adapter implements cache.Metrics and exports Prometheus counters/gauges
// labelled by region. Safe for concurrent use; all Prometheus metric types
// are goroutine-safe.
type Adapter struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	evicts    *prometheus.CounterVec
	failures  *prometheus.CounterVec
	events    *prometheus.CounterVec
	resets    *prometheus.CounterVec
	nodes     *prometheus.GaugeVec
	elements  *prometheus.GaugeVec
	resorting *prometheus.HistogramVec
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	region := []string{"region"}
	a := &Adapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "hits_total",
			Help:        "Cache reads that found a value",
			ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "misses_total",
			Help:        "Cache reads that found nothing",
			ConstLabels: constLabels,
		}),
		evicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "evictions_total",
			Help:        "Nodes evicted, by region",
			ConstLabels: constLabels,
		}, region),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "eviction_failures_total",
			Help:        "Evictions that failed and were parked for retry, by region",
			ConstLabels: constLabels,
		}, region),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "events_processed_total",
			Help:        "Node events drained from region queues",
			ConstLabels: constLabels,
		}, region),
		resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "region_resets_total",
			Help:        "Eviction queues dropped after an algorithm failure",
			ConstLabels: constLabels,
		}, region),
		nodes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "queue_nodes",
			Help:        "Nodes tracked by the region's eviction queue",
			ConstLabels: constLabels,
		}, region),
		elements: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "queue_elements",
			Help:        "Elements tracked by the region's eviction queue",
			ConstLabels: constLabels,
		}, region),
		resorting: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "resort_duration_seconds",
			Help:        "Time spent re-sorting sorted eviction queues",
			ConstLabels: constLabels,
			Buckets:     prometheus.ExponentialBuckets(1e-5, 4, 10),
		}, region),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.failures, a.events, a.resets, a.nodes, a.elements, a.resorting)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

func (a *Adapter) Evicted(region string)        { a.evicts.WithLabelValues(region).Inc() }
func (a *Adapter) EvictionFailed(region string) { a.failures.WithLabelValues(region).Inc() }
func (a *Adapter) RegionReset(region string)    { a.resets.WithLabelValues(region).Inc() }

func (a *Adapter) EventsProcessed(region string, n int) {
	a.events.WithLabelValues(region).Add(float64(n))
}

// QueueSize updates the gauges for the region's queue.
func (a *Adapter) QueueSize(region string, nodes, elements int) {
	a.nodes.WithLabelValues(region).Set(float64(nodes))
	a.elements.WithLabelValues(region).Set(float64(elements))
}

func (a *Adapter) Resorted(region string, d time.Duration) {
	a.resorting.WithLabelValues(region).Observe(d.Seconds())
}

// Compile-time check: ensure Adapter implements cache.Metrics.
var _ cache.Metrics = (*Adapter)(nil)
