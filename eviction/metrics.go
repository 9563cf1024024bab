package eviction

import "time"

// Metrics exposes eviction observability hooks, labelled by region.
// NoopMetrics is used by default.
type Metrics interface {
	Evicted(region string)
	EvictionFailed(region string)
	EventsProcessed(region string, n int)
	QueueSize(region string, nodes, elements int)
	Resorted(region string, d time.Duration)
	RegionReset(region string)
}

// NoopMetrics is a drop-in Metrics implementation that does nothing.
type NoopMetrics struct{}

func (NoopMetrics) Evicted(string)                 {}
func (NoopMetrics) EvictionFailed(string)          {}
func (NoopMetrics) EventsProcessed(string, int)    {}
func (NoopMetrics) QueueSize(string, int, int)     {}
func (NoopMetrics) Resorted(string, time.Duration) {}
func (NoopMetrics) RegionReset(string)             {}

var _ Metrics = NoopMetrics{}
